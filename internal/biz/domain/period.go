package domain

import (
	"fmt"
	"time"
)

// Period is a time bucket over which a leaderboard is computed.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// Periods lists all supported periods in display order.
func Periods() []Period {
	return []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime}
}

// ParsePeriod parses a period name
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Valid checks if the period is one of the supported buckets
func (p Period) Valid() bool {
	_, err := ParsePeriod(string(p))
	return err == nil
}

// Start returns the beginning of the bucket containing now, evaluated in
// loc. Daily is the start of the calendar day, weekly the start of the
// ISO week (Monday), monthly the first of the month. All-time returns
// the zero time, meaning unbounded.
func (p Period) Start(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)

	switch p {
	case PeriodDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	case PeriodWeekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		// Weekday is Sunday-based; shift so Monday opens the week.
		offset := (int(t.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	}
	return time.Time{}
}
