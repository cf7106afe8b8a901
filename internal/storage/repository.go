package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guttosm/nsepulse/internal/domain/models"
	pq "github.com/lib/pq"
)

// AverageField names a stock_records column that may be averaged.
type AverageField string

const (
	AverageClose AverageField = "close"
	AverageVWAP  AverageField = "vwap"
)

// ErrUnsupportedField is returned by AggregateAverage for columns outside the whitelist.
var ErrUnsupportedField = errors.New("unsupported average field")

// StockRepository defines contract for DB operations.
type StockRepository interface {
	InsertAll(ctx context.Context, records []models.StockRecord) error
	FindHighestVolume(ctx context.Context, filter models.Filter) (*models.StockRecord, error)
	AggregateAverage(ctx context.Context, field AverageField, filter models.Filter) (*float64, error)
	HasUpload(ctx context.Context, source string) (bool, error)
	RecordUpload(ctx context.Context, entry models.UploadLog) error
}

type stockRepository struct {
	db *sql.DB
}

func NewStockRepository(db *sql.DB) StockRepository {
	return &stockRepository{db: db}
}

const recordColumns = "date, symbol, series, prev_close, open, high, low, last, close, vwap, volume, turnover, trades, deliverable_volume, percent_deliverable"

// InsertAll writes every record in one transaction using COPY.
// Either the whole batch commits or nothing does. An empty batch is a no-op.
func (r *stockRepository) InsertAll(ctx context.Context, records []models.StockRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Small optimization for bulk load
	if _, err := tx.ExecContext(ctx, `SET LOCAL synchronous_commit = OFF`); err != nil {
		_ = tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"stock_records",
		"date",
		"symbol",
		"series",
		"prev_close",
		"open",
		"high",
		"low",
		"last",
		"close",
		"vwap",
		"volume",
		"turnover",
		"trades",
		"deliverable_volume",
		"percent_deliverable",
	))
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.Date,
			rec.Symbol,
			rec.Series,
			rec.PrevClose,
			rec.Open,
			rec.High,
			rec.Low,
			rec.Last,
			rec.Close,
			rec.VWAP,
			rec.Volume,
			rec.Turnover,
			rec.Trades,
			nullInt(rec.DeliverableVolume),
			nullFloat(rec.PercentDeliverable),
		); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// FindHighestVolume returns the record with the largest volume matching filter,
// or nil when nothing matches. Ties go to the earliest date, then symbol.
func (r *stockRepository) FindHighestVolume(ctx context.Context, filter models.Filter) (*models.StockRecord, error) {
	where, args := whereClause(filter)
	query := fmt.Sprintf(`
		SELECT %s
		FROM stock_records
		%s
		ORDER BY volume DESC, date ASC, symbol ASC
		LIMIT 1
	`, recordColumns, where)

	var (
		rec         models.StockRecord
		deliverable sql.NullInt64
		percent     sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&rec.Date,
		&rec.Symbol,
		&rec.Series,
		&rec.PrevClose,
		&rec.Open,
		&rec.High,
		&rec.Low,
		&rec.Last,
		&rec.Close,
		&rec.VWAP,
		&rec.Volume,
		&rec.Turnover,
		&rec.Trades,
		&deliverable,
		&percent,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if deliverable.Valid {
		v := deliverable.Int64
		rec.DeliverableVolume = &v
	}
	if percent.Valid {
		v := percent.Float64
		rec.PercentDeliverable = &v
	}
	rec.Date = rec.Date.UTC()

	return &rec, nil
}

// AggregateAverage returns AVG(field) over matching records, or nil when none match.
func (r *stockRepository) AggregateAverage(ctx context.Context, field AverageField, filter models.Filter) (*float64, error) {
	switch field {
	case AverageClose, AverageVWAP:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedField, field)
	}

	where, args := whereClause(filter)
	query := fmt.Sprintf(`SELECT AVG(%s) FROM stock_records %s`, field, where)

	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&avg); err != nil {
		return nil, err
	}

	// AVG over zero rows is NULL.
	if !avg.Valid {
		return nil, nil
	}
	v := avg.Float64
	return &v, nil
}

// HasUpload checks if a source was already ingested.
func (r *stockRepository) HasUpload(ctx context.Context, source string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM upload_log WHERE source = $1)`, source).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// RecordUpload stores the outcome of one completed ingestion.
func (r *stockRepository) RecordUpload(ctx context.Context, entry models.UploadLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO upload_log (id, source, total_records, successful_records, failed_records, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.Source, entry.Total, entry.Successful, entry.Failed, entry.IngestedAt)
	return err
}

// whereClause builds the WHERE fragment for filter with positional placeholders.
// It returns an empty string when the filter has no constraints.
func whereClause(filter models.Filter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Start != nil {
		args = append(args, dateOnly(*filter.Start))
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.End != nil {
		args = append(args, dateOnly(*filter.End))
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}
	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		conditions = append(conditions, fmt.Sprintf("symbol = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
