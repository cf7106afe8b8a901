package ingestion

import "testing"

func TestNormalize(t *testing.T) {
	rec := Normalize(tcsRawRow())

	if rec.Date.Format("2006-01-02") != "2015-01-01" || rec.Date.Location().String() != "UTC" {
		t.Fatalf("date=%v", rec.Date)
	}
	if rec.Symbol != "TCS" || rec.Series != "EQ" {
		t.Fatalf("symbol/series=%q/%q", rec.Symbol, rec.Series)
	}
	if rec.Close != 1308 || rec.VWAP != 1307.5 || rec.Turnover != 1.3e8 {
		t.Fatalf("prices=%+v", rec)
	}
	if rec.Volume != 100000 || rec.Trades != 500 {
		t.Fatalf("volume=%d trades=%d", rec.Volume, rec.Trades)
	}
	if rec.DeliverableVolume != nil || rec.PercentDeliverable != nil {
		t.Fatalf("optionals should be nil: %v %v", rec.DeliverableVolume, rec.PercentDeliverable)
	}

	row := tcsRawRow()
	row[ColDeliverableVolume] = "4200"
	row[ColPercentDeliverable] = "0.42"
	rec = Normalize(row)
	if rec.DeliverableVolume == nil || *rec.DeliverableVolume != 4200 {
		t.Fatalf("deliverable volume=%v", rec.DeliverableVolume)
	}
	if rec.PercentDeliverable == nil || *rec.PercentDeliverable != 0.42 {
		t.Fatalf("percent deliverable=%v", rec.PercentDeliverable)
	}
}
