package ingestion

import "github.com/guttosm/nsepulse/internal/domain/models"

// ReasonValidationFailed is attached to every rejected row.
const ReasonValidationFailed = "Validation failed"

// RowFailure pairs a rejected raw row with the reason it was rejected.
type RowFailure struct {
	Row    RawRow
	Reason string
}

// Report summarizes one upload. Total always equals Successful + Failed.
type Report struct {
	Total      int
	Successful int
	Failed     int
	Errors     []RowFailure
}

// Accumulator routes each row to the pending-insert list or the failure list.
// It keeps no state linking one row to another.
type Accumulator struct {
	successful int
	failed     int
	errors     []RowFailure
	pending    []models.StockRecord
}

func NewAccumulator() *Accumulator {
	return &Accumulator{errors: []RowFailure{}}
}

// Add validates row and either normalizes it into the pending list or records
// it as a failure. It reports whether the row was accepted.
func (a *Accumulator) Add(row RawRow) bool {
	if !Validate(row) {
		a.failed++
		a.errors = append(a.errors, RowFailure{Row: row, Reason: ReasonValidationFailed})
		return false
	}
	a.pending = append(a.pending, Normalize(row))
	a.successful++
	return true
}

// Pending returns the normalized records awaiting the bulk insert.
func (a *Accumulator) Pending() []models.StockRecord {
	return a.pending
}

func (a *Accumulator) Report() Report {
	return Report{
		Total:      a.successful + a.failed,
		Successful: a.successful,
		Failed:     a.failed,
		Errors:     a.errors,
	}
}
