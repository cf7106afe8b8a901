package ingestion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Field parsers shared by Validate and Normalize. A row accepted by Validate
// must convert without loss in Normalize, so both go through these helpers.

var errEmptyField = errors.New("empty value")

// dateLayouts lists the accepted spellings of the Date column.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02-Jan-2006",
	"2-Jan-2006",
	"2006/01/02",
}

// parseDate returns the calendar date at UTC midnight.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errEmptyField
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// parseFloat accepts finite, non-negative decimal numbers.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, errEmptyField
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %q", s)
	}
	return v, nil
}

// parseInt accepts non-negative base-10 integers.
func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, errEmptyField
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %q", s)
	}
	return v, nil
}

// optionalInt maps empty or unparsable input to nil.
func optionalInt(s string) *int64 {
	v, err := parseInt(s)
	if err != nil {
		return nil
	}
	return &v
}

// optionalFloat maps empty or unparsable input to nil.
func optionalFloat(s string) *float64 {
	v, err := parseFloat(s)
	if err != nil {
		return nil
	}
	return &v
}
