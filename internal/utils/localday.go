package utils

import (
	"time"

	"github.com/julianstephens/keepup/internal/constants"
)

// LocalDay is a calendar day in a specific location. The date is kept as
// UTC midnight so day arithmetic never depends on the zone's DST rules;
// the location is only consulted by Start.
type LocalDay struct {
	date time.Time
	loc  *time.Location
}

func newLocalDay(y int, m time.Month, d int, loc *time.Location) LocalDay {
	return LocalDay{date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), loc: loc}
}

// StripToLocalDay discards the time of day of t as seen in loc.
// A nil loc uses t's own location.
func StripToLocalDay(t time.Time, loc *time.Location) LocalDay {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.In(loc).Date()
	return newLocalDay(y, m, d, loc)
}

// ParseDateKey parses a YYYY-MM-DD key as a day in loc
func ParseDateKey(key string, loc *time.Location) (LocalDay, error) {
	t, err := time.Parse(constants.DateFormat, key)
	if err != nil {
		return LocalDay{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return newLocalDay(t.Year(), t.Month(), t.Day(), loc), nil
}

// IsSameLocalDay reports whether a and b share year, month and day
func IsSameLocalDay(a, b LocalDay) bool {
	return a.date.Equal(b.date)
}

// DayDifference returns the number of calendar days from `from` to `to`
func DayDifference(from, to LocalDay) int {
	return int(to.date.Sub(from.date) / (24 * time.Hour))
}

// DateKey returns the canonical YYYY-MM-DD representation of day
func DateKey(day LocalDay) string {
	return day.date.Format(constants.DateFormat)
}

// Key is shorthand for DateKey(d)
func (d LocalDay) Key() string {
	return DateKey(d)
}

// Start returns the first instant of the day in its location. That is local
// midnight, or the end of the DST gap in zones that skip midnight.
func (d LocalDay) Start() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	y, m, day := d.date.Date()
	t := time.Date(y, m, day, 0, 0, 0, 0, d.loc)
	if ty, tm, td := t.Date(); ty == y && tm == m && td == day {
		return t
	}
	// Midnight does not exist and t landed on the previous evening
	if _, end := t.ZoneBounds(); !end.IsZero() {
		return end.In(d.loc)
	}
	return t
}

// AddDays moves the day by n calendar days
func (d LocalDay) AddDays(n int) LocalDay {
	return LocalDay{date: d.date.AddDate(0, 0, n), loc: d.loc}
}

// StartOfWeek returns the Monday of the ISO week containing d
func (d LocalDay) StartOfWeek() LocalDay {
	offset := (int(d.date.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// MonthIndex returns a month counter that increases by one per calendar month
func (d LocalDay) MonthIndex() int {
	y, m, _ := d.date.Date()
	return y*12 + int(m) - 1
}

func (d LocalDay) Before(other LocalDay) bool {
	return d.date.Before(other.date)
}

func (d LocalDay) After(other LocalDay) bool {
	return d.date.After(other.date)
}

func (d LocalDay) IsZero() bool {
	return d.loc == nil && d.date.IsZero()
}

func (d LocalDay) String() string {
	return d.Key()
}
