package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/guttosm/nsepulse/internal/domain/models"
)

type dummyErr struct{}

func (dummyErr) Error() string { return "dummy" }

func newMockRepo(t *testing.T) (*stockRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	repo := &stockRepository{db: db}
	cleanup := func() { _ = db.Close() }
	return repo, mock, cleanup
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var recordCols = []string{
	"date", "symbol", "series", "prev_close", "open", "high", "low", "last", "close",
	"vwap", "volume", "turnover", "trades", "deliverable_volume", "percent_deliverable",
}

func TestWhereClause(t *testing.T) {
	start := day(2015, 1, 1)
	end := day(2015, 1, 31)

	cases := []struct {
		name     string
		filter   models.Filter
		wantSQL  string
		wantArgs int
	}{
		{name: "empty", filter: models.Filter{}, wantSQL: "", wantArgs: 0},
		{name: "symbol only", filter: models.Filter{Symbol: "TCS"}, wantSQL: "WHERE symbol = $1", wantArgs: 1},
		{name: "start only", filter: models.Filter{Start: &start}, wantSQL: "WHERE date >= $1", wantArgs: 1},
		{name: "full", filter: models.Filter{Start: &start, End: &end, Symbol: "TCS"}, wantSQL: "WHERE date >= $1 AND date <= $2 AND symbol = $3", wantArgs: 3},
		{name: "end and symbol", filter: models.Filter{End: &end, Symbol: "INFY"}, wantSQL: "WHERE date <= $1 AND symbol = $2", wantArgs: 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sql, args := whereClause(tc.filter)
			if sql != tc.wantSQL {
				t.Fatalf("sql=%q, want %q", sql, tc.wantSQL)
			}
			if len(args) != tc.wantArgs {
				t.Fatalf("args=%d, want %d", len(args), tc.wantArgs)
			}
		})
	}
}

func TestFindHighestVolume_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	selectRegex := `SELECT .* FROM stock_records\s+WHERE date >= \$1 AND date <= \$2 AND symbol = \$3\s+ORDER BY volume DESC, date ASC, symbol ASC\s+LIMIT 1`
	start := day(2015, 1, 1)
	end := day(2015, 1, 31)
	filter := models.Filter{Start: &start, End: &end, Symbol: "TCS"}

	t.Run("found with nulls", func(t *testing.T) {
		rows := sqlmock.NewRows(recordCols).
			AddRow(day(2015, 1, 2), "TCS", "EQ", 1300.0, 1310.0, 1320.0, 1290.0, 1305.0, 1308.0, 1307.5, int64(100000), 1.3e8, int64(500), nil, nil)
		mock.ExpectQuery(selectRegex).WithArgs(start, end, "TCS").WillReturnRows(rows)

		rec, err := repo.FindHighestVolume(context.Background(), filter)
		if err != nil || rec == nil {
			t.Fatalf("unexpected rec=%+v err=%v", rec, err)
		}
		if rec.Volume != 100000 || rec.Symbol != "TCS" || rec.VWAP != 1307.5 {
			t.Fatalf("unexpected record: %+v", rec)
		}
		if rec.DeliverableVolume != nil || rec.PercentDeliverable != nil {
			t.Fatalf("expected null optionals, got %+v", rec)
		}
	})

	t.Run("found with optionals", func(t *testing.T) {
		rows := sqlmock.NewRows(recordCols).
			AddRow(day(2015, 1, 5), "TCS", "EQ", 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, int64(7), 1.0, int64(1), int64(3), 0.43)
		mock.ExpectQuery(selectRegex).WithArgs(start, end, "TCS").WillReturnRows(rows)

		rec, err := repo.FindHighestVolume(context.Background(), filter)
		if err != nil || rec == nil {
			t.Fatalf("unexpected rec=%+v err=%v", rec, err)
		}
		if rec.DeliverableVolume == nil || *rec.DeliverableVolume != 3 {
			t.Fatalf("deliverable volume: %+v", rec.DeliverableVolume)
		}
		if rec.PercentDeliverable == nil || *rec.PercentDeliverable != 0.43 {
			t.Fatalf("percent deliverable: %+v", rec.PercentDeliverable)
		}
	})

	t.Run("no rows", func(t *testing.T) {
		mock.ExpectQuery(selectRegex).WithArgs(start, end, "TCS").WillReturnRows(sqlmock.NewRows(recordCols))
		rec, err := repo.FindHighestVolume(context.Background(), filter)
		if err != nil || rec != nil {
			t.Fatalf("want nil,nil got rec=%+v err=%v", rec, err)
		}
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery(selectRegex).WithArgs(start, end, "TCS").WillReturnError(dummyErr{})
		if _, err := repo.FindHighestVolume(context.Background(), filter); err == nil {
			t.Fatalf("expected error")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAggregateAverage_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	start := day(2015, 1, 1)
	end := day(2015, 1, 31)

	cases := []struct {
		name    string
		field   AverageField
		filter  models.Filter
		regex   string
		args    []interface{}
		value   interface{}
		wantNil bool
	}{
		{
			name:   "close with symbol",
			field:  AverageClose,
			filter: models.Filter{Start: &start, End: &end, Symbol: "TCS"},
			regex:  regexp.QuoteMeta(`SELECT AVG(close) FROM stock_records WHERE date >= $1 AND date <= $2 AND symbol = $3`),
			args:   []interface{}{start, end, "TCS"},
			value:  1308.25,
		},
		{
			name:   "vwap all symbols",
			field:  AverageVWAP,
			filter: models.Filter{Start: &start, End: &end},
			regex:  regexp.QuoteMeta(`SELECT AVG(vwap) FROM stock_records WHERE date >= $1 AND date <= $2`),
			args:   []interface{}{start, end},
			value:  1307.5,
		},
		{
			name:    "no matching rows",
			field:   AverageClose,
			filter:  models.Filter{Symbol: "NONE"},
			regex:   regexp.QuoteMeta(`SELECT AVG(close) FROM stock_records WHERE symbol = $1`),
			args:    []interface{}{"NONE"},
			value:   nil,
			wantNil: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock.ExpectQuery(tc.regex).
				WithArgs(toDriverArgs(tc.args)...).
				WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(tc.value))

			out, err := repo.AggregateAverage(context.Background(), tc.field, tc.filter)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if tc.wantNil {
				if out != nil {
					t.Fatalf("want nil, got %v", *out)
				}
				return
			}
			if out == nil || *out != tc.value.(float64) {
				t.Fatalf("got %v, want %v", out, tc.value)
			}
		})
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func toDriverArgs(in []interface{}) []driver.Value {
	out := make([]driver.Value, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func TestAggregateAverage_UnsupportedField(t *testing.T) {
	repo, _, done := newMockRepo(t)
	defer done()

	_, err := repo.AggregateAverage(context.Background(), AverageField("volume; DROP TABLE stock_records"), models.Filter{})
	if !errors.Is(err, ErrUnsupportedField) {
		t.Fatalf("want ErrUnsupportedField, got %v", err)
	}
}

func TestUploadLog_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM upload_log WHERE source = $1)")).
		WithArgs("nifty.csv").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.HasUpload(context.Background(), "nifty.csv")
	if err != nil || !ok {
		t.Fatalf("HasUpload: ok=%v err=%v", ok, err)
	}

	at := time.Date(2025, 9, 11, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO upload_log \(id, source, total_records, successful_records, failed_records, ingested_at\)`).
		WithArgs(sqlmock.AnyArg(), "nifty.csv", 10, 9, 1, at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	err = repo.RecordUpload(context.Background(), models.UploadLog{
		ID: uuid.New(), Source: "nifty.csv", Total: 10, Successful: 9, Failed: 1, IngestedAt: at,
	})
	if err != nil {
		t.Fatalf("RecordUpload: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewStockRepository_Construct(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	if r := NewStockRepository(db); r == nil {
		t.Fatalf("expected non-nil repository")
	}
}

func sampleRecords() []models.StockRecord {
	dv := int64(45000)
	return []models.StockRecord{
		{Date: day(2015, 1, 1), Symbol: "TCS", Series: "EQ", PrevClose: 1300, Open: 1310, High: 1320, Low: 1290, Last: 1305, Close: 1308, VWAP: 1307.5, Volume: 100000, Turnover: 1.3e8, Trades: 500},
		{Date: day(2015, 1, 2), Symbol: "TCS", Series: "EQ", PrevClose: 1308, Open: 1309, High: 1330, Low: 1300, Last: 1322, Close: 1325, VWAP: 1318, Volume: 90000, Turnover: 1.2e8, Trades: 450, DeliverableVolume: &dv},
	}
}

func TestInsertAll_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
	// pq.CopyIn builds a plain COPY statement, so sqlmock sees an ordinary prepare + execs.
	prep := mock.ExpectPrepare(".*")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0)) // final flush
	mock.ExpectCommit()

	if err := repo.InsertAll(context.Background(), sampleRecords()); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertAll_EmptyBatchIsNoop(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	if err := repo.InsertAll(context.Background(), nil); err != nil {
		t.Fatalf("InsertAll(nil): %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected no database calls: %v", err)
	}
}

func TestInsertAll_ErrorOnBegin(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin().WillReturnError(dummyErr{})
	if err := repo.InsertAll(context.Background(), sampleRecords()); err == nil {
		t.Fatalf("expected error on begin")
	}
}

func TestInsertAll_ErrorOnRowExecRollsBack(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(".*")
	prep.ExpectExec().WillReturnError(dummyErr{})
	mock.ExpectRollback()

	if err := repo.InsertAll(context.Background(), sampleRecords()); err == nil {
		t.Fatalf("expected error on row exec")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertAll_ErrorOnFinalExec(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(".*")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(".*").WillReturnError(dummyErr{})
	mock.ExpectRollback()

	if err := repo.InsertAll(context.Background(), sampleRecords()[:1]); err == nil {
		t.Fatalf("expected error on final exec")
	}
}
