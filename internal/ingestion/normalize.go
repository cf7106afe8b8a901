package ingestion

import "github.com/guttosm/nsepulse/internal/domain/models"

// Normalize converts a row that already passed Validate into a StockRecord.
//
// Column mapping:
//
//	Date                → Date (UTC midnight)
//	Symbol, Series      → Symbol, Series (trimmed, Series unchecked)
//	Prev Close … VWAP   → float64 prices
//	Volume, Trades      → int64 (Trades falls back to 0 if unparsable)
//	Turnover            → float64
//	Deliverable Volume  → *int64, nil when empty
//	%Deliverable        → *float64, nil when empty
func Normalize(row RawRow) models.StockRecord {
	date, _ := parseDate(row.Value(ColDate))

	rec := models.StockRecord{
		Date:               date,
		Symbol:             row.Value(ColSymbol),
		Series:             row.Value(ColSeries),
		PrevClose:          floatOrZero(row, ColPrevClose),
		Open:               floatOrZero(row, ColOpen),
		High:               floatOrZero(row, ColHigh),
		Low:                floatOrZero(row, ColLow),
		Last:               floatOrZero(row, ColLast),
		Close:              floatOrZero(row, ColClose),
		VWAP:               floatOrZero(row, ColVWAP),
		Turnover:           floatOrZero(row, ColTurnover),
		DeliverableVolume:  optionalInt(row.Value(ColDeliverableVolume)),
		PercentDeliverable: optionalFloat(row.Value(ColPercentDeliverable)),
	}
	rec.Volume, _ = parseInt(row.Value(ColVolume))

	// Lenient: zero instead of a failure.
	if n, err := parseInt(row.Value(ColTrades)); err == nil {
		rec.Trades = n
	}

	return rec
}

func floatOrZero(row RawRow, column string) float64 {
	v, _ := parseFloat(row.Value(column))
	return v
}
