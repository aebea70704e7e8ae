package storage

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/keepup/internal/migration"
	"github.com/julianstephens/keepup/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken is returned when signing up with an email that already has an account
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrDuplicateCompletion is returned when the habit already has a completion for the day key
	ErrDuplicateCompletion = errors.New("completion already recorded for this day")
	// ErrStaleHabit is returned when the habit's streak state changed since it was read
	ErrStaleHabit = errors.New("habit was modified concurrently")
)

// CompletionFilter narrows ListCompletions. Zero values are ignored.
type CompletionFilter struct {
	UserID  string
	HabitID string
	// Since is an inclusive lower bound on created_at
	Since time.Time
	// Limit caps the number of rows, newest first
	Limit int
}

type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error
	Driver() migration.Driver
	Migrate(ctx context.Context, logFn func(string)) (int, error)
	SchemaStatus(ctx context.Context) (migration.Status, error)

	// Users
	CreateUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Sessions
	CreateSession(ctx context.Context, s models.SessionRecord) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (models.SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Habits
	AddHabit(ctx context.Context, h models.Habit) error
	GetHabit(ctx context.Context, userID, id string) (models.Habit, error)
	GetHabitByTitle(ctx context.Context, userID, title string) (models.Habit, error)
	// ListHabits returns the user's habits, newest first
	ListHabits(ctx context.Context, userID string) ([]models.Habit, error)
	UpdateHabit(ctx context.Context, h models.Habit) error
	// DeleteHabit removes the habit and its completions
	DeleteHabit(ctx context.Context, userID, id string) error

	// Completions
	// ListCompletions returns matching completions, newest first
	ListCompletions(ctx context.Context, f CompletionFilter) ([]models.Completion, error)
	// RecordCompletion inserts c and moves the habit from expected to next in
	// one transaction. It fails with ErrDuplicateCompletion when c's day key
	// is taken and ErrStaleHabit when the habit no longer holds expected.
	RecordCompletion(ctx context.Context, c models.Completion, expected, next models.StreakState) error

	// Utils
	GetConfigPath() string
}
