package models

import "time"

// Habit is a recurring behavior tracked for completion, owned by one user
type Habit struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Frequency     Frequency  `json:"frequency"`
	StreakCount   int        `json:"streak_count"`
	LastCompleted *time.Time `json:"last_completed,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// StreakState is the mutable part of a habit touched by a completion
type StreakState struct {
	StreakCount   int
	LastCompleted *time.Time
}

// State returns the habit's current streak state
func (h Habit) State() StreakState {
	return StreakState{StreakCount: h.StreakCount, LastCompleted: h.LastCompleted}
}

// Completion is an append-only record of an accepted completion
type Completion struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	DayKey    string    `json:"day_key"` // YYYY-MM-DD of the local day, unique per habit
	CreatedAt time.Time `json:"created_at"`
}
