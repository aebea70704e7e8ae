package utils

import (
	"fmt"
	"strings"
	"time"
)

// IsLocalZone reports whether tz names the system zone
func IsLocalZone(tz string) bool {
	return tz == "" || strings.EqualFold(tz, "local")
}

// LoadLocation resolves an IANA zone name. Empty and "Local" mean the system zone.
func LoadLocation(tz string) (*time.Location, error) {
	if IsLocalZone(tz) {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// NowInTimezone returns the current instant in tz
func NowInTimezone(tz string) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().In(loc), nil
}

// TodayIn returns the local day containing now in tz
func TodayIn(tz string, now time.Time) (LocalDay, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return LocalDay{}, err
	}
	return StripToLocalDay(now, loc), nil
}

// ZoneLabel describes loc at t, e.g. "Europe/London (BST, UTC+01:00)"
func ZoneLabel(loc *time.Location, t time.Time) string {
	name, offset := t.In(loc).Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%s (%s, UTC%c%02d:%02d)", loc, name, sign, offset/3600, offset%3600/60)
}
