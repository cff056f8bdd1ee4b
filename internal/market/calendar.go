package market

import (
	"fmt"
	"time"
)

// Calendar evaluates the market-open predicate in the venue's local time:
// weekdays only, inside the [open, close) clock window.
type Calendar struct {
	loc      *time.Location
	openMin  int // minutes since local midnight
	closeMin int
}

// NewCalendar builds a calendar for the given IANA timezone and "15:04"
// open/close clock strings.
func NewCalendar(timezone, open, close string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load market timezone: %w", err)
	}
	openMin, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("market open: %w", err)
	}
	closeMin, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("market close: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("market close %s must be after open %s", close, open)
	}
	return &Calendar{loc: loc, openMin: openMin, closeMin: closeMin}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IsOpen reports whether the venue is trading at t.
func (c *Calendar) IsOpen(t time.Time) bool {
	lt := t.In(c.loc)
	switch lt.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	m := lt.Hour()*60 + lt.Minute()
	return m >= c.openMin && m < c.closeMin
}

// Day returns the venue-local calendar day of t, used for session bookkeeping.
func (c *Calendar) Day(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

// Location returns the venue's time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// NextOpen returns the first instant at or after t when the market is open.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	lt := t.In(c.loc)
	if c.IsOpen(lt) {
		return lt
	}
	for i := 0; i < 8; i++ {
		day := lt.AddDate(0, 0, i)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), c.openMin/60, c.openMin%60, 0, 0, c.loc)
		if candidate.Before(lt) {
			continue
		}
		switch candidate.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		return candidate
	}
	return lt // unreachable with a sane configuration
}
