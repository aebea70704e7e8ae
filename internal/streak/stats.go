package streak

import (
	"time"

	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/utils"
)

// DayMark is one cell of a habit's week row
type DayMark struct {
	Day  string
	Done bool
}

// HabitSummary holds per-habit statistics for a range
type HabitSummary struct {
	Habit              models.Habit
	CompletionsInRange int
	WeekRow            []DayMark
}

// Summary aggregates streak statistics across a user's habits
type Summary struct {
	RangeDays          int
	Today              string
	ActiveStreaks      int
	LongestStreak      int
	CompletionsInRange int
	Habits             []HabitSummary
}

// Summarize computes statistics over the last rangeDays local days ending
// today. Completions are bucketed by the local day of their creation instant;
// those whose habit is not in habits are ignored.
func Summarize(habits []models.Habit, completions []models.Completion, now time.Time, loc *time.Location, rangeDays int) Summary {
	if rangeDays < 1 {
		rangeDays = constants.StatsRangeShort
	}
	if loc == nil {
		loc = now.Location()
	}

	today := utils.StripToLocalDay(now, loc)
	start := today.AddDays(-(rangeDays - 1))
	inRange := func(d utils.LocalDay) bool {
		return !d.Before(start) && !d.After(today)
	}

	daysByHabit := make(map[string]map[string]bool)
	summary := Summary{
		RangeDays: rangeDays,
		Today:     today.Key(),
		Habits:    make([]HabitSummary, 0, len(habits)),
	}

	known := make(map[string]bool, len(habits))
	for _, h := range habits {
		known[h.ID] = true
	}

	for _, c := range completions {
		// Completions of deleted habits are left behind by other clients
		if !known[c.HabitID] {
			continue
		}
		day := utils.StripToLocalDay(c.CreatedAt, loc)
		set, ok := daysByHabit[c.HabitID]
		if !ok {
			set = make(map[string]bool)
			daysByHabit[c.HabitID] = set
		}
		set[day.Key()] = true

		if inRange(day) {
			summary.CompletionsInRange++
		}
	}

	for _, h := range habits {
		if h.StreakCount > 0 {
			summary.ActiveStreaks++
		}
		if h.StreakCount > summary.LongestStreak {
			summary.LongestStreak = h.StreakCount
		}

		set := daysByHabit[h.ID]
		hs := HabitSummary{Habit: h}
		for d := 0; d < rangeDays; d++ {
			if set[start.AddDays(d).Key()] {
				hs.CompletionsInRange++
			}
		}

		weekStart := today.AddDays(-(constants.WeekRowDays - 1))
		hs.WeekRow = make([]DayMark, 0, constants.WeekRowDays)
		for d := 0; d < constants.WeekRowDays; d++ {
			key := weekStart.AddDays(d).Key()
			hs.WeekRow = append(hs.WeekRow, DayMark{Day: key, Done: set[key]})
		}

		summary.Habits = append(summary.Habits, hs)
	}

	return summary
}
