package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/keepup/internal/changes"
	"github.com/julianstephens/keepup/internal/constants"
	apperrors "github.com/julianstephens/keepup/internal/errors"
	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/session"
	"github.com/julianstephens/keepup/internal/storage"
	"github.com/julianstephens/keepup/internal/storage/sqlite"
	"github.com/julianstephens/keepup/internal/validation"
)

type fixture struct {
	ctx     context.Context
	store   *sqlite.Store
	tracker *Tracker
	sess    *session.Session
	loc     *time.Location
}

func setup(t *testing.T, loc *time.Location) *fixture {
	t.Helper()
	ctx := context.Background()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "keepup.db"))
	require.NoError(t, store.Init(ctx))
	t.Cleanup(func() { store.Close() })

	user := models.User{ID: "u1", Email: "ada@example.com", PasswordHash: "x", CreatedAt: time.Now()}
	require.NoError(t, store.CreateUser(ctx, user))

	return &fixture{
		ctx:     ctx,
		store:   store,
		tracker: New(store, loc, nil),
		sess:    &session.Session{User: user},
		loc:     loc,
	}
}

func (f *fixture) habit(t *testing.T, title, frequency string) models.Habit {
	t.Helper()
	h, err := f.tracker.CreateHabit(f.ctx, f.sess, validation.HabitInput{
		Title: title, Description: "desc", Frequency: frequency,
	}, time.Date(2024, 1, 1, 0, 0, 0, 0, f.loc))
	require.NoError(t, err)
	return h
}

func (f *fixture) at(month time.Month, day, hour int) time.Time {
	return time.Date(2024, month, day, hour, 0, 0, 0, f.loc)
}

func TestCreateHabitValidation(t *testing.T) {
	f := setup(t, time.UTC)

	_, err := f.tracker.CreateHabit(f.ctx, f.sess, validation.HabitInput{Title: " ", Frequency: "daily"}, time.Now())
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 2)

	h := f.habit(t, "Read", "every 2 days")
	assert.Equal(t, 0, h.StreakCount)
	assert.Nil(t, h.LastCompleted)
	assert.Equal(t, constants.UnitDays, h.Frequency.Unit)
	assert.Equal(t, 2, h.Frequency.Every)
}

func TestCompleteDaily(t *testing.T) {
	f := setup(t, time.UTC)
	h := f.habit(t, "Read", "daily")

	res, err := f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, 10, 8))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Habit.StreakCount)
	assert.Equal(t, "2024-04-10", res.Completion.DayKey)
	assert.Equal(t, 1, res.Attempts)

	_, err = f.tracker.Complete(f.ctx, f.sess, "read", f.at(4, 10, 20))
	assert.ErrorIs(t, err, ErrAlreadyCompletedToday)

	res, err = f.tracker.Complete(f.ctx, f.sess, "Read", f.at(4, 11, 7))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Habit.StreakCount)
	assert.False(t, res.Decision.ResetOccurred)

	res, err = f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, 13, 7))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Habit.StreakCount)
	assert.True(t, res.Decision.ResetOccurred)

	stored, err := f.store.GetHabit(f.ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.StreakCount)
	require.NotNil(t, stored.LastCompleted)
	assert.True(t, stored.LastCompleted.Equal(f.at(4, 13, 7)))
}

func TestCompleteWeekly(t *testing.T) {
	f := setup(t, time.UTC)
	h := f.habit(t, "Review", "weekly")

	// 2024-04-08 is a Monday
	_, err := f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, 8, 9))
	require.NoError(t, err)

	_, err = f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, 10, 9))
	assert.ErrorIs(t, err, ErrAlreadyCompletedThisPeriod)

	res, err := f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, 19, 9))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Habit.StreakCount)

	res, err = f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(5, 6, 9))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Habit.StreakCount)
	assert.True(t, res.Decision.ResetOccurred)
}

func TestCompleteUsesLocalMidnight(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	f := setup(t, loc)
	h := f.habit(t, "Journal", "daily")

	// 23:30 local is already the next day in UTC
	late := time.Date(2024, 4, 9, 23, 30, 0, 0, loc)
	_, err = f.tracker.Complete(f.ctx, f.sess, h.ID, late)
	require.NoError(t, err)

	res, err := f.tracker.Complete(f.ctx, f.sess, h.ID, time.Date(2024, 4, 10, 8, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Habit.StreakCount)
	assert.Equal(t, "2024-04-10", res.Completion.DayKey)
}

func TestCompleteAcrossMidnightDSTGap(t *testing.T) {
	// Santiago jumps from 2024-09-08 00:00 straight to 01:00
	loc, err := time.LoadLocation("America/Santiago")
	require.NoError(t, err)
	f := setup(t, loc)
	h := f.habit(t, "Journal", "daily")

	first, err := f.tracker.Complete(f.ctx, f.sess, h.ID, time.Date(2024, 9, 7, 23, 30, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, "2024-09-07", first.Completion.DayKey)

	res, err := f.tracker.Complete(f.ctx, f.sess, h.ID, time.Date(2024, 9, 8, 1, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Habit.StreakCount)
	assert.Equal(t, "2024-09-08", res.Completion.DayKey)

	_, err = f.tracker.Complete(f.ctx, f.sess, h.ID, time.Date(2024, 9, 8, 20, 0, 0, 0, loc))
	assert.ErrorIs(t, err, ErrAlreadyCompletedToday)

	stats, err := f.tracker.Stats(f.ctx, f.sess, time.Date(2024, 9, 8, 21, 0, 0, 0, loc), 7)
	require.NoError(t, err)
	require.Len(t, stats.Habits, 1)
	row := stats.Habits[0].WeekRow
	require.Len(t, row, 7)
	assert.Equal(t, "2024-09-07", row[5].Day)
	assert.Equal(t, "2024-09-08", row[6].Day)
	assert.True(t, row[5].Done && row[6].Done)
}

func TestCompleteReconcilesInconsistentStreak(t *testing.T) {
	f := setup(t, time.UTC)
	h := f.habit(t, "Run", "daily")

	_, err := f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, 8, 9))
	require.NoError(t, err)
	_, err = f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, 9, 9))
	require.NoError(t, err)

	// Simulate the half-written state of a two-step write
	broken, err := f.store.GetHabit(f.ctx, "u1", h.ID)
	require.NoError(t, err)
	broken.StreakCount = 5
	broken.LastCompleted = nil
	require.NoError(t, f.store.UpdateHabit(f.ctx, broken))

	res, err := f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, 10, 9))
	require.NoError(t, err)
	assert.True(t, res.Reconciled)
	assert.Equal(t, 3, res.Habit.StreakCount)
}

type staleOnceStore struct {
	storage.Provider
	failures int
	calls    int
}

func (s *staleOnceStore) RecordCompletion(ctx context.Context, c models.Completion, expected, next models.StreakState) error {
	s.calls++
	if s.calls <= s.failures {
		return storage.ErrStaleHabit
	}
	return s.Provider.RecordCompletion(ctx, c, expected, next)
}

func TestCompleteRetriesStaleHabit(t *testing.T) {
	f := setup(t, time.UTC)
	h := f.habit(t, "Read", "daily")

	flaky := &staleOnceStore{Provider: f.store, failures: 1}
	tr := New(flaky, time.UTC, nil)

	res, err := tr.Complete(f.ctx, f.sess, h.ID, f.at(4, 10, 8))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, res.Habit.StreakCount)

	h2 := f.habit(t, "Write", "daily")
	always := &staleOnceStore{Provider: f.store, failures: constants.MaxCompletionAttempts}
	_, err = New(always, time.UTC, nil).Complete(f.ctx, f.sess, h2.ID, f.at(4, 10, 8))
	assert.ErrorIs(t, err, storage.ErrStaleHabit)
	assert.Equal(t, constants.MaxCompletionAttempts, always.calls)
}

func TestFindAndDelete(t *testing.T) {
	f := setup(t, time.UTC)
	h := f.habit(t, "Read", "daily")
	_, err := f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, 10, 8))
	require.NoError(t, err)

	got, err := f.tracker.Find(f.ctx, f.sess, "READ")
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)

	_, err = f.tracker.Find(f.ctx, f.sess, "Nope")
	assert.ErrorIs(t, err, ErrHabitNotFound)

	other := &session.Session{User: models.User{ID: "u2"}}
	_, err = f.tracker.Find(f.ctx, other, h.ID)
	assert.ErrorIs(t, err, ErrHabitNotFound, "habits of other users are invisible")

	deleted, err := f.tracker.DeleteHabit(f.ctx, f.sess, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, deleted.ID)

	remaining, err := f.store.ListCompletions(f.ctx, storage.CompletionFilter{HabitID: h.ID})
	require.NoError(t, err)
	assert.Empty(t, remaining)

	_, err = f.tracker.DeleteHabit(f.ctx, f.sess, h.ID)
	assert.ErrorIs(t, err, ErrHabitNotFound)
}

func TestCheckDoesNotWrite(t *testing.T) {
	f := setup(t, time.UTC)
	h := f.habit(t, "Read", "daily")
	_, err := f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, 10, 8))
	require.NoError(t, err)

	_, d, err := f.tracker.Check(f.ctx, f.sess, h.ID, f.at(4, 11, 8))
	require.NoError(t, err)
	assert.True(t, d.IsAccepted())
	assert.Equal(t, 2, d.NextStreak)

	_, d, err = f.tracker.Check(f.ctx, f.sess, h.ID, f.at(4, 10, 22))
	require.NoError(t, err)
	assert.False(t, d.IsAccepted())
	assert.Equal(t, constants.ReasonAlreadyCompletedToday, d.Reason)

	stored, err := f.store.GetHabit(f.ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.StreakCount)
}

func TestReconcileAndAudit(t *testing.T) {
	f := setup(t, time.UTC)
	h := f.habit(t, "Read", "daily")
	for day := 8; day <= 10; day++ {
		_, err := f.tracker.Complete(f.ctx, f.sess, h.ID, f.at(4, day, 8))
		require.NoError(t, err)
	}

	res, err := f.tracker.Reconcile(f.ctx, f.sess, h.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	broken := res.Before
	broken.StreakCount = 9
	broken.LastCompleted = nil
	require.NoError(t, f.store.UpdateHabit(f.ctx, broken))

	audit, err := f.tracker.Audit(f.ctx, f.sess)
	require.NoError(t, err)
	assert.Equal(t, []string{h.ID}, audit.Repairable())

	res, err = f.tracker.Reconcile(f.ctx, f.sess, h.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 9, res.Before.StreakCount)
	assert.Equal(t, 3, res.After.StreakCount)
	require.NotNil(t, res.After.LastCompleted)
	assert.True(t, res.After.LastCompleted.Equal(f.at(4, 10, 8)))

	audit, err = f.tracker.Audit(f.ctx, f.sess)
	require.NoError(t, err)
	assert.False(t, audit.HasConflicts())
}

func TestStats(t *testing.T) {
	f := setup(t, time.UTC)
	read := f.habit(t, "Read", "daily")
	f.habit(t, "Run", "daily")

	for day := 8; day <= 10; day++ {
		_, err := f.tracker.Complete(f.ctx, f.sess, read.ID, f.at(4, day, 8))
		require.NoError(t, err)
	}

	summary, err := f.tracker.Stats(f.ctx, f.sess, f.at(4, 10, 20), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ActiveStreaks)
	assert.Equal(t, 3, summary.LongestStreak)
	assert.Equal(t, 3, summary.CompletionsInRange)
	require.Len(t, summary.Habits, 2)
}

func TestCompletePublishesEvents(t *testing.T) {
	f := setup(t, time.UTC)
	broker := changes.NewBroker()
	defer broker.Close()
	events, unsub := broker.Subscribe(8)
	defer unsub()

	tr := New(f.store, time.UTC, broker)
	h, err := tr.CreateHabit(f.ctx, f.sess, validation.HabitInput{Title: "Read", Description: "d", Frequency: "daily"}, time.Now())
	require.NoError(t, err)
	_, err = tr.Complete(f.ctx, f.sess, h.ID, f.at(4, 10, 8))
	require.NoError(t, err)

	var got []changes.Event
	for len(got) < 3 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatalf("expected 3 events, got %v", got)
		}
	}
	assert.Equal(t, constants.OpCreate, got[0].Op)
	assert.Equal(t, constants.CollectionHabits, got[0].Collection)
	assert.Equal(t, constants.CollectionCompletions, got[1].Collection)
	assert.Equal(t, constants.OpUpdate, got[2].Op)
	for _, e := range got {
		assert.True(t, e.Affects("u1"))
	}
}
