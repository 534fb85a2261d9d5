package numerator

import (
	"fmt"
	"regexp"
	"time"
)

// PeriodKey is the YYYYMM scope within which numbers are allocated.
type PeriodKey string

const periodDateLayout = "2006-01-02"

var periodKeyPattern = regexp.MustCompile(`^\d{4}(0[1-9]|1[0-2])$`)

// PeriodKeyFromDate derives the period key of a business date.
func PeriodKeyFromDate(date time.Time) PeriodKey {
	return PeriodKey(date.Format("200601"))
}

// ParsePeriodDate parses a "YYYY-MM-DD" business date and returns its period key.
func ParsePeriodDate(date string) (PeriodKey, error) {
	t, err := time.Parse(periodDateLayout, date)
	if err != nil {
		return "", fmt.Errorf("parse business date %q: %w", date, err)
	}
	return PeriodKeyFromDate(t), nil
}

// ParsePeriodKey validates a raw YYYYMM value.
func ParsePeriodKey(raw string) (PeriodKey, error) {
	if !periodKeyPattern.MatchString(raw) {
		return "", fmt.Errorf("invalid period key %q", raw)
	}
	return PeriodKey(raw), nil
}

// Start returns the first instant of the period (UTC).
func (p PeriodKey) Start() time.Time {
	t, err := time.Parse("200601", string(p))
	if err != nil {
		return time.Time{}
	}
	return t
}

// String implements fmt.Stringer.
func (p PeriodKey) String() string {
	return string(p)
}
