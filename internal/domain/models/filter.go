package models

import (
	"fmt"
	"time"
)

// Filter narrows aggregate queries to an inclusive date range and, optionally,
// a single symbol. Nil bounds are open; an empty Symbol means all symbols.
type Filter struct {
	Start  *time.Time
	End    *time.Time
	Symbol string
}

// Key renders the filter as a stable string, used to build cache keys.
func (f Filter) Key() string {
	return fmt.Sprintf("%s|%s|%s", dateKey(f.Start), dateKey(f.End), f.Symbol)
}

func dateKey(t *time.Time) string {
	if t == nil {
		return "*"
	}
	return t.Format("2006-01-02")
}
