// Package tracker implements the habit operations a signed-in user performs:
// creating and deleting habits, completing them under the streak rules,
// repairing streaks from history and computing statistics.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/keepup/internal/changes"
	"github.com/julianstephens/keepup/internal/constants"
	apperrors "github.com/julianstephens/keepup/internal/errors"
	"github.com/julianstephens/keepup/internal/logger"
	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/session"
	"github.com/julianstephens/keepup/internal/storage"
	"github.com/julianstephens/keepup/internal/streak"
	"github.com/julianstephens/keepup/internal/utils"
	"github.com/julianstephens/keepup/internal/validation"
)

var (
	ErrHabitNotFound              = apperrors.ErrHabitNotFound
	ErrAlreadyCompletedToday      = apperrors.ErrAlreadyCompletedToday
	ErrAlreadyCompletedThisPeriod = apperrors.ErrAlreadyCompletedThisPeriod
)

// Tracker runs habit operations against a store. Local days are computed in loc.
type Tracker struct {
	store  storage.Provider
	loc    *time.Location
	broker *changes.Broker
}

// New creates a Tracker. broker may be nil.
func New(store storage.Provider, loc *time.Location, broker *changes.Broker) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	return &Tracker{store: store, loc: loc, broker: broker}
}

// Location returns the timezone local days are computed in
func (t *Tracker) Location() *time.Location {
	return t.loc
}

// CompletionResult describes an accepted completion
type CompletionResult struct {
	Habit      models.Habit
	Completion models.Completion
	Decision   streak.Decision
	// Reconciled is set when the stored streak was re-derived from history first
	Reconciled bool
	Attempts   int
}

// RepairResult is the habit state before and after re-deriving its streak
type RepairResult struct {
	Before  models.Habit
	After   models.Habit
	Changed bool
}

func (t *Tracker) publish(collection, op, id, userID string) {
	if t.broker == nil {
		return
	}
	t.broker.Publish(changes.Event{Collection: collection, Op: op, ID: id, UserID: userID})
}

// CreateHabit validates the input and stores a new habit with no streak
func (t *Tracker) CreateHabit(ctx context.Context, sess *session.Session, in validation.HabitInput, now time.Time) (models.Habit, error) {
	in, freq, err := validation.Habit(in)
	if err != nil {
		return models.Habit{}, err
	}

	h := models.Habit{
		ID:          uuid.NewString(),
		UserID:      sess.UserID(),
		Title:       in.Title,
		Description: in.Description,
		Frequency:   freq,
		CreatedAt:   now,
	}
	if err := t.store.AddHabit(ctx, h); err != nil {
		return models.Habit{}, err
	}

	logger.Info("Habit created", "habit", h.ID, "frequency", h.Frequency.String())
	t.publish(constants.CollectionHabits, constants.OpCreate, h.ID, h.UserID)
	return h, nil
}

// ListHabits returns the user's habits, newest first
func (t *Tracker) ListHabits(ctx context.Context, sess *session.Session) ([]models.Habit, error) {
	return t.store.ListHabits(ctx, sess.UserID())
}

// Find resolves a habit by ID, falling back to a case-insensitive title match
func (t *Tracker) Find(ctx context.Context, sess *session.Session, ref string) (models.Habit, error) {
	if _, err := uuid.Parse(ref); err == nil {
		h, err := t.store.GetHabit(ctx, sess.UserID(), ref)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return models.Habit{}, err
		}
	}

	h, err := t.store.GetHabitByTitle(ctx, sess.UserID(), ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Habit{}, fmt.Errorf("%w: %q", ErrHabitNotFound, ref)
		}
		return models.Habit{}, err
	}
	return h, nil
}

// DeleteHabit removes a habit and its completions
func (t *Tracker) DeleteHabit(ctx context.Context, sess *session.Session, ref string) (models.Habit, error) {
	h, err := t.Find(ctx, sess, ref)
	if err != nil {
		return models.Habit{}, err
	}
	if err := t.store.DeleteHabit(ctx, sess.UserID(), h.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Habit{}, fmt.Errorf("%w: %q", ErrHabitNotFound, ref)
		}
		return models.Habit{}, err
	}

	logger.Info("Habit deleted", "habit", h.ID)
	t.publish(constants.CollectionHabits, constants.OpDelete, h.ID, h.UserID)
	return h, nil
}

// Complete records a completion of the habit at now. The completion and the
// streak update are written together; if another writer changed the habit
// in between, the decision is re-evaluated against the fresh state.
func (t *Tracker) Complete(ctx context.Context, sess *session.Session, ref string, now time.Time) (CompletionResult, error) {
	h, err := t.Find(ctx, sess, ref)
	if err != nil {
		return CompletionResult{}, err
	}

	today := utils.StripToLocalDay(now, t.loc)

	for attempt := 1; attempt <= constants.MaxCompletionAttempts; attempt++ {
		if attempt > 1 {
			if h, err = t.store.GetHabit(ctx, sess.UserID(), h.ID); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return CompletionResult{}, fmt.Errorf("%w: %q", ErrHabitNotFound, ref)
				}
				return CompletionResult{}, err
			}
		}

		// The lower bound is local midnight so a completion late last night
		// (but today in UTC) does not block today.
		recent, err := t.store.ListCompletions(ctx, storage.CompletionFilter{
			UserID:  sess.UserID(),
			HabitID: h.ID,
			Since:   today.Start(),
			Limit:   1,
		})
		if err != nil {
			return CompletionResult{}, fmt.Errorf("failed to check today's completions: %w", err)
		}
		if len(recent) > 0 {
			return CompletionResult{}, ErrAlreadyCompletedToday
		}

		state := h.State()
		decision := t.evaluate(state, h.Frequency, now)
		reconciled := false
		if decision.Inconsistent {
			derived, err := t.derive(ctx, h)
			if err != nil {
				return CompletionResult{}, err
			}
			logger.Warn("Habit streak inconsistent with history, reconciling",
				"habit", h.ID, "stored", state.StreakCount, "derived", derived.StreakCount)
			decision = t.evaluate(derived, h.Frequency, now)
			reconciled = true
		}

		if !decision.IsAccepted() {
			if decision.Reason == constants.ReasonAlreadyCompletedThisPeriod {
				return CompletionResult{}, ErrAlreadyCompletedThisPeriod
			}
			return CompletionResult{}, ErrAlreadyCompletedToday
		}

		completed := now
		c := models.Completion{
			ID:        uuid.NewString(),
			HabitID:   h.ID,
			UserID:    sess.UserID(),
			DayKey:    today.Key(),
			CreatedAt: now,
		}
		next := models.StreakState{StreakCount: decision.NextStreak, LastCompleted: &completed}

		err = t.store.RecordCompletion(ctx, c, state, next)
		switch {
		case err == nil:
			h.StreakCount, h.LastCompleted = next.StreakCount, next.LastCompleted
			logger.Info("Habit completed", "habit", h.ID, "streak", h.StreakCount,
				"reset", decision.ResetOccurred, "attempt", attempt)
			t.publish(constants.CollectionCompletions, constants.OpCreate, c.ID, c.UserID)
			t.publish(constants.CollectionHabits, constants.OpUpdate, h.ID, h.UserID)
			return CompletionResult{Habit: h, Completion: c, Decision: decision, Reconciled: reconciled, Attempts: attempt}, nil
		case errors.Is(err, storage.ErrDuplicateCompletion):
			return CompletionResult{}, ErrAlreadyCompletedToday
		case errors.Is(err, storage.ErrNotFound):
			return CompletionResult{}, fmt.Errorf("%w: %q", ErrHabitNotFound, ref)
		case errors.Is(err, storage.ErrStaleHabit):
			logger.Debug("Habit changed during completion, retrying", "habit", h.ID, "attempt", attempt)
			continue
		default:
			return CompletionResult{}, err
		}
	}

	return CompletionResult{}, fmt.Errorf("gave up after %d attempts: %w", constants.MaxCompletionAttempts, storage.ErrStaleHabit)
}

// Check evaluates a completion at an arbitrary instant without writing anything
func (t *Tracker) Check(ctx context.Context, sess *session.Session, ref string, at time.Time) (models.Habit, streak.Decision, error) {
	h, err := t.Find(ctx, sess, ref)
	if err != nil {
		return models.Habit{}, streak.Decision{}, err
	}
	return h, t.evaluate(h.State(), h.Frequency, at), nil
}

func (t *Tracker) evaluate(state models.StreakState, freq models.Frequency, now time.Time) streak.Decision {
	return streak.Evaluate(streak.Input{
		CurrentStreak: state.StreakCount,
		LastCompleted: state.LastCompleted,
		Frequency:     freq,
		Now:           now,
		Location:      t.loc,
	})
}

// derive recomputes a habit's streak state from its completion history
func (t *Tracker) derive(ctx context.Context, h models.Habit) (models.StreakState, error) {
	completions, err := t.store.ListCompletions(ctx, storage.CompletionFilter{UserID: h.UserID, HabitID: h.ID})
	if err != nil {
		return models.StreakState{}, fmt.Errorf("failed to load completion history: %w", err)
	}
	count, last := streak.Derive(streak.CompletionInstants(completions), h.Frequency, t.loc)
	return models.StreakState{StreakCount: count, LastCompleted: last}, nil
}

// Reconcile re-derives a habit's streak from its completion history and
// stores the result when it differs.
func (t *Tracker) Reconcile(ctx context.Context, sess *session.Session, ref string) (RepairResult, error) {
	h, err := t.Find(ctx, sess, ref)
	if err != nil {
		return RepairResult{}, err
	}

	derived, err := t.derive(ctx, h)
	if err != nil {
		return RepairResult{}, err
	}

	res := RepairResult{Before: h, After: h}
	res.After.StreakCount, res.After.LastCompleted = derived.StreakCount, derived.LastCompleted
	res.Changed = !sameState(h.State(), derived)
	if !res.Changed {
		return res, nil
	}

	if err := t.store.UpdateHabit(ctx, res.After); err != nil {
		return RepairResult{}, err
	}
	logger.Info("Habit streak repaired", "habit", h.ID, "from", h.StreakCount, "to", derived.StreakCount)
	t.publish(constants.CollectionHabits, constants.OpUpdate, h.ID, h.UserID)
	return res, nil
}

func sameState(a, b models.StreakState) bool {
	if a.StreakCount != b.StreakCount {
		return false
	}
	if a.LastCompleted == nil || b.LastCompleted == nil {
		return a.LastCompleted == nil && b.LastCompleted == nil
	}
	return a.LastCompleted.Equal(*b.LastCompleted)
}

// Stats summarizes the user's habits over the last rangeDays local days.
// Habits and completions are fetched concurrently.
func (t *Tracker) Stats(ctx context.Context, sess *session.Session, now time.Time, rangeDays int) (streak.Summary, error) {
	if rangeDays < 1 {
		rangeDays = constants.StatsRangeShort
	}
	window := max(rangeDays, constants.WeekRowDays)
	since := utils.StripToLocalDay(now, t.loc).AddDays(-(window - 1)).Start()

	var habits []models.Habit
	var completions []models.Completion

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		habits, err = t.store.ListHabits(gctx, sess.UserID())
		return err
	})
	g.Go(func() error {
		var err error
		completions, err = t.store.ListCompletions(gctx, storage.CompletionFilter{UserID: sess.UserID(), Since: since})
		return err
	})
	if err := g.Wait(); err != nil {
		return streak.Summary{}, fmt.Errorf("failed to load statistics: %w", err)
	}

	return streak.Summarize(habits, completions, now, t.loc, rangeDays), nil
}

// Audit checks the user's stored habits for conflicts the tracker cannot act on cleanly
func (t *Tracker) Audit(ctx context.Context, sess *session.Session) (validation.ValidationResult, error) {
	habits, err := t.store.ListHabits(ctx, sess.UserID())
	if err != nil {
		return validation.ValidationResult{}, err
	}

	counts := make(map[string]int, len(habits))
	for _, h := range habits {
		if h.StreakCount == 0 {
			continue
		}
		recent, err := t.store.ListCompletions(ctx, storage.CompletionFilter{UserID: h.UserID, HabitID: h.ID, Limit: 1})
		if err != nil {
			return validation.ValidationResult{}, err
		}
		counts[h.ID] = len(recent)
	}

	return validation.ValidateHabits(habits, counts), nil
}
