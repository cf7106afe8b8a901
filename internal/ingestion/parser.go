package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// Column names of the daily equity CSV.
const (
	ColDate               = "Date"
	ColSymbol             = "Symbol"
	ColSeries             = "Series"
	ColPrevClose          = "Prev Close"
	ColOpen               = "Open"
	ColHigh               = "High"
	ColLow                = "Low"
	ColLast               = "Last"
	ColClose              = "Close"
	ColVWAP               = "VWAP"
	ColVolume             = "Volume"
	ColTurnover           = "Turnover"
	ColTrades             = "Trades"
	ColDeliverableVolume  = "Deliverable Volume"
	ColPercentDeliverable = "%Deliverable"
)

// RequiredColumns is the header set every upload must declare. Order is only
// used for reporting; the file may list columns in any order.
var RequiredColumns = []string{
	ColDate,
	ColSymbol,
	ColSeries,
	ColPrevClose,
	ColOpen,
	ColHigh,
	ColLow,
	ColLast,
	ColClose,
	ColVWAP,
	ColVolume,
	ColTurnover,
	ColTrades,
	ColDeliverableVolume,
	ColPercentDeliverable,
}

var (
	// ErrEmptyInput is returned when the stream ends before a header row.
	ErrEmptyInput = errors.New("empty input: no header row")
	// ErrMalformedInput wraps CSV syntax errors; the upload is aborted and nothing is persisted.
	ErrMalformedInput = errors.New("malformed CSV input")
)

// MissingColumnsError reports required header columns absent from the file.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// RawRow maps a header name to the raw cell text of one data row.
// Columns missing from a short record are absent from the map.
type RawRow map[string]string

// Value returns the trimmed cell for column, or "" when absent.
func (r RawRow) Value(column string) string {
	return strings.TrimSpace(r[column])
}

// RowReader streams data rows out of a comma-separated file whose first line
// is the header. Only the current record is held in memory.
type RowReader struct {
	cr     *csv.Reader
	header []string
}

// NewRowReader reads and checks the header row before any data row is touched.
//
// Behavior:
//   - Header names are trimmed and a leading UTF-8 BOM is dropped.
//   - Returns ErrEmptyInput if the stream has no header.
//   - Returns ErrMalformedInput if a non-empty column name repeats.
//   - Returns *MissingColumnsError if any RequiredColumns entry is absent.
func NewRowReader(r io.Reader) (*RowReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // short rows are a validation concern, not a parse error
	cr.ReuseRecord = true

	rec, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInput
		}
		return nil, fmt.Errorf("%w: read header: %w", ErrMalformedInput, err)
	}

	header := make([]string, len(rec))
	for i, h := range rec {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		header[i] = strings.TrimSpace(h)
	}

	if dup := duplicateColumn(header); dup != "" {
		return nil, fmt.Errorf("%w: duplicate column %q", ErrMalformedInput, dup)
	}
	if missing := missingColumns(header); len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	return &RowReader{cr: cr, header: header}, nil
}

// Header returns a copy of the observed header.
func (r *RowReader) Header() []string {
	return append([]string(nil), r.header...)
}

// Rows returns the lazy sequence of data rows. The sequence stops after the
// first error, which is either ctx.Err() or a wrapped ErrMalformedInput.
// Cells beyond the header width are ignored.
func (r *RowReader) Rows(ctx context.Context) iter.Seq2[RawRow, error] {
	return func(yield func(RawRow, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			rec, err := r.cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("%w: %w", ErrMalformedInput, err))
				return
			}

			row := make(RawRow, len(r.header))
			for i, h := range r.header {
				if i >= len(rec) {
					break
				}
				row[h] = rec[i]
			}

			if !yield(row, nil) {
				return
			}
		}
	}
}

func missingColumns(header []string) []string {
	seen := make(map[string]struct{}, len(header))
	for _, h := range header {
		seen[h] = struct{}{}
	}

	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := seen[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// duplicateColumn returns the first non-empty name that appears twice.
func duplicateColumn(header []string) string {
	seen := make(map[string]struct{}, len(header))
	for _, h := range header {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			return h
		}
		seen[h] = struct{}{}
	}
	return ""
}
