package stats

import (
	"fmt"
	"slices"
	"strings"

	"github.com/julianstephens/keepup/internal/cli"
	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/streak"
)

type StreaksCmd struct {
	Range int `short:"r" help:"Range in days (7, 30 or 90)." default:"7"`
}

func (c *StreaksCmd) Validate() error {
	if !slices.Contains(constants.StatsRanges, c.Range) {
		return fmt.Errorf("range must be one of %v", constants.StatsRanges)
	}
	return nil
}

func (c *StreaksCmd) Run(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		return err
	}

	summary, err := ctx.Tracker.Stats(ctx.Ctx, sess, ctx.Now(), c.Range)
	if err != nil {
		return err
	}

	ctx.Printf("%s", Render(summary))
	return nil
}

// Render formats a summary as totals followed by one row per habit
func Render(s streak.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", cli.HeaderStyle.Render(fmt.Sprintf("Last %d days", s.RangeDays)))
	fmt.Fprintf(&b, "  Active streaks:  %d\n", s.ActiveStreaks)
	fmt.Fprintf(&b, "  Longest streak:  %s\n", cli.Streak(s.LongestStreak))
	fmt.Fprintf(&b, "  Completions:     %d\n\n", s.CompletionsInRange)

	if len(s.Habits) == 0 {
		b.WriteString("No habits yet.\n")
		return b.String()
	}

	width := 0
	for _, h := range s.Habits {
		width = max(width, len([]rune(h.Habit.Title)))
	}

	for _, h := range s.Habits {
		var row strings.Builder
		for _, m := range h.WeekRow {
			row.WriteString(cli.DayMark(m.Done))
		}
		title := h.Habit.Title + strings.Repeat(" ", width-len([]rune(h.Habit.Title)))
		fmt.Fprintf(&b, "  %s  %s  %s  %s\n",
			cli.TitleStyle.Render(title),
			row.String(),
			cli.MutedStyle.Render(fmt.Sprintf("%d in range", h.CompletionsInRange)),
			cli.Streak(h.Habit.StreakCount),
		)
	}
	return b.String()
}
