package utils

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatRelative renders t relative to now: "just now", "3 minutes ago",
// "yesterday", "5 days ago", falling back to an absolute date after a week.
// Days are counted in 24 hour blocks, not calendar days.
func FormatRelative(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < 5*time.Second:
		return "just now"
	case diff < 24*time.Hour:
		return humanize.RelTime(t, now, "ago", "from now")
	}

	days := int(diff / (24 * time.Hour))
	switch {
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return FormatAbsoluteDate(t)
	}
}

// FormatAbsoluteDate renders t as "24th June 2025"
func FormatAbsoluteDate(t time.Time) string {
	return fmt.Sprintf("%s %s %d", humanize.Ordinal(t.Day()), t.Month().String(), t.Year())
}
