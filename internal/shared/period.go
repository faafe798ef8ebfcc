package shared

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period identifies a fiscal month used by allocation and payroll runs.
type Period struct {
	Month time.Month
	Year  int
}

// ErrInvalidPeriod indicates a period outside the supported range.
var ErrInvalidPeriod = errors.New("invalid period")

// NewPeriod validates month and year bounds.
func NewPeriod(month time.Month, year int) (Period, error) {
	if month < time.January || month > time.December {
		return Period{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if year < 2000 || year > 2200 {
		return Period{}, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	return Period{Month: month, Year: year}, nil
}

// ParsePeriod reads the YYYY-MM form used on the API and task payloads.
func ParsePeriod(code string) (Period, error) {
	parts := strings.SplitN(code, "-", 2)
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, code)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, code)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, code)
	}
	return NewPeriod(time.Month(month), year)
}

// String renders the YYYY-MM code.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Bounds returns the half-open [start, end) interval covering the period in UTC.
func (p Period) Bounds() (time.Time, time.Time) {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	start, end := p.Bounds()
	u := t.UTC()
	return !u.Before(start) && u.Before(end)
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Month == 0 && p.Year == 0
}
