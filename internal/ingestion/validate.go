package ingestion

import "fmt"

var (
	floatColumns = []string{ColPrevClose, ColOpen, ColHigh, ColLow, ColLast, ColClose, ColVWAP, ColTurnover}
	intColumns   = []string{ColVolume, ColTrades}
)

// Validate reports whether row can be persisted: a valid Date, a non-empty
// Symbol, every price/value column a finite non-negative float and Volume and
// Trades non-negative integers. Deliverable Volume and %Deliverable never
// affect the outcome.
func Validate(row RawRow) bool {
	return checkRow(row) == nil
}

// checkRow returns the first rule row breaks.
func checkRow(row RawRow) error {
	if _, err := parseDate(row.Value(ColDate)); err != nil {
		return fmt.Errorf("%s: %w", ColDate, err)
	}
	if row.Value(ColSymbol) == "" {
		return fmt.Errorf("%s: %w", ColSymbol, errEmptyField)
	}
	for _, c := range floatColumns {
		if _, err := parseFloat(row.Value(c)); err != nil {
			return fmt.Errorf("%s: %w", c, err)
		}
	}
	for _, c := range intColumns {
		if _, err := parseInt(row.Value(c)); err != nil {
			return fmt.Errorf("%s: %w", c, err)
		}
	}
	return nil
}
