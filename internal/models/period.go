// Package models provides the core data structures for kline synchronization:
// calendar periods, canonical OHLCV bars, sync tasks, and task outcomes.
package models

import (
	"fmt"
	"time"
)

// Granularity selects how a date range is decomposed into sync periods.
type Granularity string

const (
	// Monthly produces one period per calendar month.
	Monthly Granularity = "monthly"

	// Daily produces one period per calendar day.
	Daily Granularity = "daily"
)

// ParseGranularity converts a CLI period string into a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case Monthly, Daily:
		return Granularity(s), nil
	default:
		return "", fmt.Errorf("unsupported period %q (use: monthly, daily)", s)
	}
}

// ErrInvalidRange is returned when a period range's start month is after
// its end month. This is a caller misconfiguration and aborts the run
// before any task is built.
var ErrInvalidRange = fmt.Errorf("period range start is after end")

// Month is a calendar month boundary for a sync range, e.g. 2024-01.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a YYYY-MM string into a Month.
func ParseMonth(s string) (Month, error) {
	t, err := time.ParseInLocation("2006-01", s, time.UTC)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q (want YYYY-MM): %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// After reports whether m is a later month than other.
func (m Month) After(other Month) bool {
	if m.Year != other.Year {
		return m.Year > other.Year
	}
	return m.Month > other.Month
}

// String returns the month in YYYY-MM form.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// PeriodSpec identifies one calendar slice of a sync run: either a whole
// month or a single day, depending on Granularity. Day is zero for
// monthly periods. The covered time window is half-open [Start, End).
type PeriodSpec struct {
	Granularity Granularity
	Year        int
	Month       time.Month
	Day         int
}

// Start returns the UTC instant at which the period begins.
func (p PeriodSpec) Start() time.Time {
	day := p.Day
	if p.Granularity == Monthly {
		day = 1
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// End returns the UTC instant at which the period ends (exclusive).
func (p PeriodSpec) End() time.Time {
	if p.Granularity == Monthly {
		return p.Start().AddDate(0, 1, 0)
	}
	return p.Start().AddDate(0, 0, 1)
}

// StartMS returns the period start as UTC epoch milliseconds.
func (p PeriodSpec) StartMS() int64 {
	return p.Start().UnixMilli()
}

// EndMS returns the exclusive period end as UTC epoch milliseconds.
func (p PeriodSpec) EndMS() int64 {
	return p.End().UnixMilli()
}

// DateString returns the date component used in archive URLs and catalog
// filenames: YYYY-MM for monthly periods, YYYY-MM-DD for daily ones.
func (p PeriodSpec) DateString() string {
	if p.Granularity == Monthly {
		return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
	}
	return fmt.Sprintf("%04d-%02d-%02d", p.Year, int(p.Month), p.Day)
}

// String implements fmt.Stringer for log output.
func (p PeriodSpec) String() string {
	return fmt.Sprintf("%s/%s", p.Granularity, p.DateString())
}

// EnumeratePeriods expands an inclusive [start, end] month range into the
// ordered, gap-free period sequence to synchronize. Monthly granularity
// yields one period per month; daily granularity yields one period per
// day, with the end boundary expanded to the last day of the end month.
//
// The function is pure and deterministic: callers may re-derive the same
// sequence at any time, which is what makes a sync run resumable.
func EnumeratePeriods(start, end Month, g Granularity) ([]PeriodSpec, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}

	var periods []PeriodSpec
	switch g {
	case Monthly:
		cur := time.Date(start.Year, start.Month, 1, 0, 0, 0, 0, time.UTC)
		last := time.Date(end.Year, end.Month, 1, 0, 0, 0, 0, time.UTC)
		for !cur.After(last) {
			periods = append(periods, PeriodSpec{
				Granularity: Monthly,
				Year:        cur.Year(),
				Month:       cur.Month(),
			})
			cur = cur.AddDate(0, 1, 0)
		}
	case Daily:
		cur := time.Date(start.Year, start.Month, 1, 0, 0, 0, 0, time.UTC)
		// AddDate(0, 1, -1) lands on the last day of the end month,
		// so leap-year Februaries come out right.
		last := time.Date(end.Year, end.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
		for !cur.After(last) {
			periods = append(periods, PeriodSpec{
				Granularity: Daily,
				Year:        cur.Year(),
				Month:       cur.Month(),
				Day:         cur.Day(),
			})
			cur = cur.AddDate(0, 0, 1)
		}
	default:
		return nil, fmt.Errorf("unsupported granularity %q", g)
	}

	return periods, nil
}
