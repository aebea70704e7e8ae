package habits

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"

	"github.com/julianstephens/keepup/internal/cli"
	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/streak"
	"github.com/julianstephens/keepup/internal/utils"
	"github.com/julianstephens/keepup/internal/validation"
)

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a new habit."`
	List   HabitListCmd   `cmd:"" help:"List habits, newest first."`
	Done   HabitDoneCmd   `cmd:"" help:"Mark a habit as completed now."`
	Check  HabitCheckCmd  `cmd:"" help:"Show whether a habit could be completed at a given time."`
	Delete HabitDeleteCmd `cmd:"" help:"Delete a habit and its completions."`
	Repair HabitRepairCmd `cmd:"" help:"Recompute streaks from completion history."`
}

type HabitAddCmd struct {
	Title       string `arg:"" optional:"" help:"Habit title."`
	Description string `short:"d" help:"What the habit is about."`
	Frequency   string `short:"f" help:"daily, weekly, monthly or \"every N days|weeks|months\"." default:"daily"`
	Every       int    `help:"Custom interval. Overrides --frequency together with --unit."`
	Unit        string `help:"Custom interval unit (days|weeks|months)."`
}

func (c *HabitAddCmd) Validate() error {
	if c.Every != 0 && c.Unit == "" {
		return fmt.Errorf("--every requires --unit")
	}
	if c.Unit != "" && c.Every == 0 {
		return fmt.Errorf("--unit requires --every")
	}
	if c.Unit != "" {
		if _, err := models.ParseFrequencyUnit(c.Unit); err != nil {
			return err
		}
	}
	return nil
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		return err
	}

	in := validation.HabitInput{
		Title:       c.Title,
		Description: c.Description,
		Frequency:   c.Frequency,
	}
	if c.Every != 0 {
		in.Frequency = fmt.Sprintf("every %d %s", c.Every, c.Unit)
	}
	if in.Title == "" || in.Description == "" {
		if err := ctx.Prompt.Habit(&in); err != nil {
			return err
		}
	}

	h, err := ctx.Tracker.CreateHabit(ctx.Ctx, sess, in, ctx.Now())
	if err != nil {
		return err
	}

	ctx.Printf("%s Added habit: %s (%s)\n", cli.SuccessStyle.Render("✓"), h.Title, h.Frequency)
	return nil
}

type HabitListCmd struct {
	IDs bool `name:"ids" help:"Show habit IDs."`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		return err
	}

	habits, err := ctx.Tracker.ListHabits(ctx.Ctx, sess)
	if err != nil {
		return err
	}

	ctx.Printf("%s", RenderList(habits, ctx.Now(), c.IDs))
	return nil
}

// RenderList formats habits one per line with streak and last completion
func RenderList(habits []models.Habit, now time.Time, showIDs bool) string {
	if len(habits) == 0 {
		return "No habits yet. Add one with 'keepup habit add'.\n"
	}

	var b strings.Builder
	for _, h := range habits {
		last := "never"
		if h.LastCompleted != nil {
			last = utils.FormatRelative(*h.LastCompleted, now)
		}
		fmt.Fprintf(&b, "%s  %s  %s\n", cli.TitleStyle.Render(h.Title), cli.MutedStyle.Render(h.Frequency.String()), cli.Streak(h.StreakCount))
		if h.Description != "" {
			fmt.Fprintf(&b, "  %s\n", h.Description)
		}
		fmt.Fprintf(&b, "  %s\n", cli.MutedStyle.Render("Last completed: "+last))
		if showIDs {
			fmt.Fprintf(&b, "  %s\n", cli.MutedStyle.Render("ID: "+h.ID))
		}
	}
	return b.String()
}

type HabitDoneCmd struct {
	Habit string `arg:"" help:"Habit title or ID."`
}

func (c *HabitDoneCmd) Run(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		return err
	}

	res, err := ctx.Tracker.Complete(ctx.Ctx, sess, c.Habit, ctx.Now())
	if err != nil {
		return err
	}

	if res.Reconciled {
		ctx.Printf("%s\n", cli.WarnStyle.Render("Streak was out of sync with history and has been recomputed."))
	}
	if res.Decision.ResetOccurred {
		ctx.Printf("%s Completed %s. Streak restarted: %s\n", cli.SuccessStyle.Render("✓"), res.Habit.Title, cli.Streak(res.Habit.StreakCount))
		return nil
	}
	ctx.Printf("%s Completed %s. Streak: %s\n", cli.SuccessStyle.Render("✓"), res.Habit.Title, cli.Streak(res.Habit.StreakCount))
	return nil
}

type HabitCheckCmd struct {
	Habit string `arg:"" help:"Habit title or ID."`
	At    string `help:"When to evaluate, e.g. \"tomorrow 9am\" or \"2024-04-10 18:00\"." default:"now"`
}

func (c *HabitCheckCmd) Run(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		return err
	}

	at, err := ParseInstant(c.At, ctx.Now(), ctx.Tracker.Location())
	if err != nil {
		return err
	}

	h, d, err := ctx.Tracker.Check(ctx.Ctx, sess, c.Habit, at)
	if err != nil {
		return err
	}

	ctx.Printf("%s at %s\n", cli.TitleStyle.Render(h.Title), at.Format("Mon 2006-01-02 15:04 MST"))
	ctx.Printf("  %s\n", describeDecision(h, d))
	return nil
}

func describeDecision(h models.Habit, d streak.Decision) string {
	if !d.IsAccepted() {
		if d.Reason == constants.ReasonAlreadyCompletedThisPeriod {
			return cli.WarnStyle.Render("Already completed for this period")
		}
		return cli.WarnStyle.Render("Already completed today")
	}
	switch {
	case d.Inconsistent:
		return fmt.Sprintf("Allowed. Stored streak is inconsistent and would be recomputed first (stored %d)", h.StreakCount)
	case d.ResetOccurred:
		return fmt.Sprintf("Allowed. The streak of %d would reset to %s", h.StreakCount, cli.Streak(d.NextStreak))
	default:
		return fmt.Sprintf("Allowed. Streak would become %s", cli.Streak(d.NextStreak))
	}
}

// ParseInstant parses natural language times relative to now in loc
func ParseInstant(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "now") {
		return now.In(loc), nil
	}

	cfg := &dateparser.Configuration{
		CurrentTime:     now.In(loc),
		DefaultTimezone: loc,
	}
	result, err := dateparser.Parse(cfg, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not understand time %q: %w", s, err)
	}
	return result.Time.In(loc), nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit title or ID."`
	Yes   bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		return err
	}

	h, err := ctx.Tracker.Find(ctx.Ctx, sess, c.Habit)
	if err != nil {
		return err
	}

	if !c.Yes {
		ok, err := ctx.Prompt.Confirm(fmt.Sprintf("Delete %q and all of its completions?", h.Title))
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Cancelled.")
			return nil
		}
	}

	if _, err := ctx.Tracker.DeleteHabit(ctx.Ctx, sess, h.ID); err != nil {
		return err
	}

	ctx.Printf("%s Deleted habit: %s\n", cli.SuccessStyle.Render("✓"), h.Title)
	return nil
}

type HabitRepairCmd struct {
	Habit string `arg:"" optional:"" help:"Habit title or ID. Omit to repair every habit flagged by an audit."`
}

func (c *HabitRepairCmd) Run(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		return err
	}

	refs := []string{c.Habit}
	if c.Habit == "" {
		audit, err := ctx.Tracker.Audit(ctx.Ctx, sess)
		if err != nil {
			return err
		}
		refs = audit.Repairable()
		if len(refs) == 0 {
			ctx.Println("All streaks match their history.")
			return nil
		}
	}

	var errs []error
	for _, ref := range refs {
		res, err := ctx.Tracker.Reconcile(ctx.Ctx, sess, ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !res.Changed {
			ctx.Printf("%s %s: streak already matches history (%d)\n", cli.SuccessStyle.Render("✓"), res.Before.Title, res.Before.StreakCount)
			continue
		}
		ctx.Printf("%s %s: streak %d -> %d\n", cli.SuccessStyle.Render("✓"), res.After.Title, res.Before.StreakCount, res.After.StreakCount)
	}
	return errors.Join(errs...)
}
