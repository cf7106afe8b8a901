package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/guttosm/nsepulse/internal/domain/models"
	"github.com/guttosm/nsepulse/internal/logger"
	"github.com/guttosm/nsepulse/internal/storage"
)

const (
	fileSuffix  = ".csv"
	maxParallel = 8

	// dirSourcePrefix keeps directory-mode entries in the upload log apart
	// from HTTP uploads that happen to share a file name.
	dirSourcePrefix = "dir:"
)

// ErrPersistence wraps a rejected bulk write. The whole upload fails even when
// individual rows were valid.
var ErrPersistence = errors.New("persistence failed")

// CacheInvalidator drops cached aggregates once new records are committed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Ingester runs the parse → validate → normalize → accumulate pipeline for one
// upload and hands the valid records to the repository in a single batch.
// It keeps no per-upload state, so one Ingester serves concurrent uploads.
type Ingester struct {
	repo  storage.StockRepository
	cache CacheInvalidator
	now   func() time.Time
	newID func() uuid.UUID
}

// NewIngester builds an Ingester. cache may be nil.
func NewIngester(repo storage.StockRepository, cache CacheInvalidator) *Ingester {
	return &Ingester{
		repo:  repo,
		cache: cache,
		now:   time.Now,
		newID: uuid.New,
	}
}

// Ingest consumes r as one upload named source.
//
// Behavior:
//   - Header problems (ErrEmptyInput, *MissingColumnsError) abort before any row is read.
//   - Invalid rows are collected in the report; they never stop the stream.
//   - A read error or ctx cancellation aborts with nothing persisted.
//   - Valid records are written with one InsertAll call; none when there are no valid rows.
//   - A rejected write returns an error wrapping ErrPersistence and no report.
//   - Every completed run is recorded in the upload log, even with zero valid rows.
func (i *Ingester) Ingest(ctx context.Context, r io.Reader, source string) (*Report, error) {
	start := i.now()
	log := logger.L().With().Str("source", source).Logger()

	rr, err := NewRowReader(r)
	if err != nil {
		log.Error().Err(err).Msg("upload rejected")
		return nil, err
	}

	acc := NewAccumulator()
	for row, err := range rr.Rows(ctx) {
		if err != nil {
			log.Error().Err(err).Msg("upload aborted")
			return nil, err
		}
		acc.Add(row)
	}

	report := acc.Report()
	pending := acc.Pending()
	if len(pending) > 0 {
		if err := i.repo.InsertAll(ctx, pending); err != nil {
			log.Error().Err(err).Int("records", len(pending)).Msg("bulk insert failed")
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	i.afterCommit(ctx, source, report)

	log.Info().
		Int("total", report.Total).
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Dur("elapsed", i.now().Sub(start)).
		Msg("upload processed")

	return &report, nil
}

// afterCommit records the upload and, when rows were written, clears cached
// aggregates. The records are already committed, so failures here are logged
// rather than returned.
func (i *Ingester) afterCommit(ctx context.Context, source string, report Report) {
	entry := models.UploadLog{
		ID:         i.newID(),
		Source:     source,
		Total:      report.Total,
		Successful: report.Successful,
		Failed:     report.Failed,
		IngestedAt: i.now().UTC(),
	}
	if err := i.repo.RecordUpload(ctx, entry); err != nil {
		logger.L().Warn().Err(err).Str("source", source).Msg("record upload log failed")
	}
	if i.cache != nil && report.Successful > 0 {
		if err := i.cache.Invalidate(ctx); err != nil {
			logger.L().Warn().Err(err).Msg("cache invalidation failed")
		}
	}
}

// IngestFile ingests the file at path under the name source. The file is
// removed once the upload succeeds or is rejected as unreadable CSV
// (IsInputError). Persistence and other failures leave it in place.
func (i *Ingester) IngestFile(ctx context.Context, path, source string) (*Report, error) {
	report, err := i.ingestPath(ctx, path, source)
	if err != nil && !IsInputError(err) {
		return nil, err
	}
	if rmErr := os.Remove(path); rmErr != nil {
		logger.L().Warn().Err(rmErr).Str("path", path).Msg("remove uploaded file failed")
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

// IsInputError reports whether err means the input itself is not a usable
// CSV: empty, malformed, duplicate or missing header columns.
func IsInputError(err error) bool {
	var mce *MissingColumnsError
	return errors.As(err, &mce) ||
		errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrMalformedInput)
}

func (i *Ingester) ingestPath(ctx context.Context, path, source string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	return i.Ingest(ctx, f, source)
}

// ProcessDirectory ingests every *.csv file in dir as an independent upload.
//
// Parameters:
//   - dir:      directory containing the CSV files.
//   - parallel: files processed concurrently (0 = min(NumCPU, 8)).
//   - force:    ingest files already present in the upload log.
//
// Behavior:
//   - Files are logged as "dir:<name>", so HTTP uploads never shadow them.
//   - Input files are never deleted in this mode.
//   - The first failing file cancels the rest and its error is returned.
func ProcessDirectory(ctx context.Context, dir string, ing *Ingester, parallel int, force bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return fmt.Errorf("no %s files found in %s", fileSuffix, dir)
	}

	limit := parallel
	if limit <= 0 {
		limit = min(runtime.NumCPU(), maxParallel)
	}
	limit = min(limit, maxParallel)

	logger.L().Info().Int("files", len(files)).Str("dir", dir).Int("max_parallel", limit).Msg("ingestion start")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for idx, path := range files {
		g.Go(func() error {
			base := filepath.Base(path)
			source := dirSourcePrefix + base

			// Idempotency: skip if already ingested, unless force
			seen, err := ing.repo.HasUpload(gctx, source)
			if err != nil {
				return fmt.Errorf("file %s: check upload log: %w", path, err)
			}
			if seen && !force {
				logger.L().Info().Int("idx", idx+1).Int("total", len(files)).Str("file", base).Bool("skipped", true).Msg("already ingested")
				return nil
			}

			report, err := ing.ingestPath(gctx, path, source)
			if err != nil {
				return fmt.Errorf("file %s: %w", path, err)
			}
			logger.L().Info().
				Int("idx", idx+1).
				Int("total", len(files)).
				Str("file", base).
				Int("successful", report.Successful).
				Int("failed", report.Failed).
				Msg("file done")
			return nil
		})
	}

	return g.Wait()
}
