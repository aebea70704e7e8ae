package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/storage"
)

const habitColumns = "id, user_id, title, description, frequency, streak_count, last_completed, created_at"

func (s *Store) AddHabit(ctx context.Context, h models.Habit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		h.ID, h.UserID, h.Title, h.Description, storage.FrequencyValue(h.Frequency),
		h.StreakCount, nullTime(h.LastCompleted), h.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to add habit: %w", err)
	}
	return nil
}

func (s *Store) GetHabit(ctx context.Context, userID, id string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+habitColumns+` FROM habits WHERE id = $1 AND user_id = $2`, id, userID)
	return scanHabit(row)
}

func (s *Store) GetHabitByTitle(ctx context.Context, userID, title string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+habitColumns+` FROM habits
		WHERE user_id = $1 AND lower(title) = lower($2)
		ORDER BY created_at DESC LIMIT 1`, userID, title)
	return scanHabit(row)
}

func (s *Store) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+habitColumns+` FROM habits
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *Store) UpdateHabit(ctx context.Context, h models.Habit) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE habits
		SET title = $1, description = $2, frequency = $3, streak_count = $4, last_completed = $5
		WHERE id = $6 AND user_id = $7`,
		h.Title, h.Description, storage.FrequencyValue(h.Frequency), h.StreakCount, nullTime(h.LastCompleted),
		h.ID, h.UserID)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteHabit(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM habits WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM completions WHERE habit_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete completions: %w", err)
	}

	return tx.Commit()
}

func scanHabit(row scanner) (models.Habit, error) {
	var h models.Habit
	var frequency string
	var lastCompleted sql.NullTime

	err := row.Scan(&h.ID, &h.UserID, &h.Title, &h.Description, &frequency, &h.StreakCount, &lastCompleted, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Habit{}, storage.ErrNotFound
		}
		return models.Habit{}, err
	}

	h.Frequency = storage.ParseStoredFrequency(h.ID, frequency)
	h.LastCompleted = timePtr(lastCompleted)
	return h, nil
}
