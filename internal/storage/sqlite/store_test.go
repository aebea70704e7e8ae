package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/storage"
)

var _ storage.Provider = (*Store)(nil)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "keepup.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, id, email string) models.User {
	t.Helper()
	u := models.User{ID: id, Email: email, PasswordHash: "hash", CreatedAt: time.Now()}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func seedHabit(t *testing.T, store *Store, userID, id, title string, created time.Time) models.Habit {
	t.Helper()
	h := models.Habit{ID: id, UserID: userID, Title: title, Description: "desc", Frequency: models.Daily(), CreatedAt: created}
	require.NoError(t, store.AddHabit(context.Background(), h))
	return h
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keepup.db")

	missing := NewStore(path)
	assert.ErrorIs(t, missing.Load(ctx), ErrNotInitialized)

	store := NewStore(path)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Close())

	reopened := NewStore(path)
	require.NoError(t, reopened.Load(ctx))
	defer reopened.Close()

	st, err := reopened.SchemaStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.Latest, st.Current)
	assert.Empty(t, st.Pending)
	assert.Equal(t, path, reopened.GetConfigPath())
}

func TestTableExists(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	exists, err := store.tableExists(ctx, "HABITS")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.tableExists(ctx, "tasks")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	u := seedUser(t, store, "u1", "ada@example.com")

	got, err := store.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	err = store.CreateUser(ctx, models.User{ID: "u2", Email: "ada@example.com", PasswordHash: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, storage.ErrEmailTaken)

	_, err = store.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUser(t, store, "u1", "ada@example.com")

	now := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	live := models.SessionRecord{ID: "s1", UserID: "u1", TokenHash: "live", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	stale := models.SessionRecord{ID: "s2", UserID: "u1", TokenHash: "stale", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, store.CreateSession(ctx, live))
	require.NoError(t, store.CreateSession(ctx, stale))

	got, err := store.GetSessionByTokenHash(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.True(t, got.ExpiresAt.Equal(live.ExpiresAt))

	n, err := store.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.GetSessionByTokenHash(ctx, "stale")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.DeleteSession(ctx, "s1"))
	_, err = store.GetSessionByTokenHash(ctx, "live")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHabitsCRUD(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUser(t, store, "u1", "ada@example.com")
	seedUser(t, store, "u2", "bob@example.com")

	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	seedHabit(t, store, "u1", "h1", "Read", base)
	seedHabit(t, store, "u1", "h2", "Run", base.Add(time.Hour))
	seedHabit(t, store, "u2", "h3", "Read", base)

	habits, err := store.ListHabits(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, habits, 2)
	assert.Equal(t, "h2", habits[0].ID, "newest first")
	assert.Equal(t, models.Daily(), habits[0].Frequency)

	_, err = store.GetHabit(ctx, "u2", "h1")
	assert.ErrorIs(t, err, storage.ErrNotFound, "habits are scoped to their owner")

	byTitle, err := store.GetHabitByTitle(ctx, "u1", "read")
	require.NoError(t, err)
	assert.Equal(t, "h1", byTitle.ID)

	custom, err := models.Custom(3, "days")
	require.NoError(t, err)
	last := base.Add(48 * time.Hour)
	byTitle.Frequency = custom
	byTitle.StreakCount = 4
	byTitle.LastCompleted = &last
	require.NoError(t, store.UpdateHabit(ctx, byTitle))

	got, err := store.GetHabit(ctx, "u1", "h1")
	require.NoError(t, err)
	assert.Equal(t, custom, got.Frequency)
	assert.Equal(t, 4, got.StreakCount)
	require.NotNil(t, got.LastCompleted)
	assert.True(t, got.LastCompleted.Equal(last))

	assert.ErrorIs(t, store.UpdateHabit(ctx, models.Habit{ID: "missing", UserID: "u1"}), storage.ErrNotFound)
}

func TestUnknownFrequencyReadsAsDaily(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUser(t, store, "u1", "ada@example.com")
	seedHabit(t, store, "u1", "h1", "Read", time.Now())

	_, err := store.db.ExecContext(ctx, "UPDATE habits SET frequency = 'fortnightly-ish' WHERE id = 'h1'")
	require.NoError(t, err)

	got, err := store.GetHabit(ctx, "u1", "h1")
	require.NoError(t, err)
	assert.Equal(t, models.Daily(), got.Frequency)
}

func TestRecordCompletion(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUser(t, store, "u1", "ada@example.com")
	h := seedHabit(t, store, "u1", "h1", "Read", time.Now())

	now := time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC)
	c := models.Completion{ID: "c1", HabitID: h.ID, UserID: "u1", DayKey: "2024-04-10", CreatedAt: now}
	next := models.StreakState{StreakCount: 1, LastCompleted: &now}

	require.NoError(t, store.RecordCompletion(ctx, c, h.State(), next))

	got, err := store.GetHabit(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StreakCount)
	require.NotNil(t, got.LastCompleted)
	assert.True(t, got.LastCompleted.Equal(now))

	// Same day key is rejected even with a fresh expected state
	dup := models.Completion{ID: "c2", HabitID: h.ID, UserID: "u1", DayKey: "2024-04-10", CreatedAt: now.Add(time.Hour)}
	later := now.Add(time.Hour)
	err = store.RecordCompletion(ctx, dup, got.State(), models.StreakState{StreakCount: 2, LastCompleted: &later})
	assert.ErrorIs(t, err, storage.ErrDuplicateCompletion)

	// Stale expected state is rejected and nothing is written
	tomorrow := now.Add(24 * time.Hour)
	c3 := models.Completion{ID: "c3", HabitID: h.ID, UserID: "u1", DayKey: "2024-04-11", CreatedAt: tomorrow}
	err = store.RecordCompletion(ctx, c3, h.State(), models.StreakState{StreakCount: 1, LastCompleted: &tomorrow})
	assert.ErrorIs(t, err, storage.ErrStaleHabit)

	completions, err := store.ListCompletions(ctx, storage.CompletionFilter{HabitID: h.ID})
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.Equal(t, "c1", completions[0].ID)

	// Missing habit
	c4 := models.Completion{ID: "c4", HabitID: "nope", UserID: "u1", DayKey: "2024-04-11", CreatedAt: tomorrow}
	err = store.RecordCompletion(ctx, c4, models.StreakState{}, models.StreakState{StreakCount: 1, LastCompleted: &tomorrow})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordCompletionConcurrent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUser(t, store, "u1", "ada@example.com")
	h := seedHabit(t, store, "u1", "h1", "Read", time.Now())

	now := time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC)
	next := models.StreakState{StreakCount: 1, LastCompleted: &now}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := models.Completion{ID: string(rune('a' + i)), HabitID: h.ID, UserID: "u1", DayKey: "2024-04-10", CreatedAt: now}
			errs[i] = store.RecordCompletion(ctx, c, h.State(), next)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, storage.ErrDuplicateCompletion)
	}
	assert.Equal(t, 1, succeeded, "exactly one completion per habit per day")
}

func TestListCompletionsFilter(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUser(t, store, "u1", "ada@example.com")
	h1 := seedHabit(t, store, "u1", "h1", "Read", time.Now())
	h2 := seedHabit(t, store, "u1", "h2", "Run", time.Now())

	day := func(d int) time.Time { return time.Date(2024, 4, d, 8, 0, 0, 0, time.UTC) }
	record := func(h models.Habit, id string, d int) models.Habit {
		at := day(d)
		c := models.Completion{ID: id, HabitID: h.ID, UserID: "u1", DayKey: at.Format("2006-01-02"), CreatedAt: at}
		next := models.StreakState{StreakCount: h.StreakCount + 1, LastCompleted: &at}
		require.NoError(t, store.RecordCompletion(ctx, c, h.State(), next))
		h.StreakCount, h.LastCompleted = next.StreakCount, next.LastCompleted
		return h
	}
	h1 = record(h1, "a", 1)
	h1 = record(h1, "b", 2)
	record(h1, "c", 3)
	record(h2, "d", 3)

	all, err := store.ListCompletions(ctx, storage.CompletionFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	since, err := store.ListCompletions(ctx, storage.CompletionFilter{HabitID: "h1", Since: day(2)})
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "c", since[0].ID, "newest first")

	limited, err := store.ListCompletions(ctx, storage.CompletionFilter{UserID: "u1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, store.DeleteHabit(ctx, "u1", "h1"))
	remaining, err := store.ListCompletions(ctx, storage.CompletionFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "d", remaining[0].ID)

	assert.ErrorIs(t, store.DeleteHabit(ctx, "u1", "h1"), storage.ErrNotFound)
}
