package services

import (
	"fmt"
	"time"
)

// Week is an ISO 8601 week: weeks start on Monday 00:00 and week 1 is the week
// containing the year's first Thursday. Year is the ISO week-year, which differs
// from the calendar year for up to three days at either end of December/January.
type Week struct {
	Year   int
	Number int
}

// WeekOf returns the ISO week containing t, evaluated in loc (UTC when nil).
func WeekOf(t time.Time, loc *time.Location) Week {
	if loc == nil {
		loc = time.UTC
	}
	year, week := t.In(loc).ISOWeek()
	return Week{Year: year, Number: week}
}

// Start is Monday 00:00:00 of the week in loc.
func (w Week) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	// Jan 4 is always in ISO week 1.
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset)
	return monday.AddDate(0, 0, (w.Number-1)*7)
}

func (w Week) Before(o Week) bool {
	if w.Year != o.Year {
		return w.Year < o.Year
	}
	return w.Number < o.Number
}

func (w Week) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Number)
}

// Clock provides time to the ledger so tests can pin week boundaries.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
