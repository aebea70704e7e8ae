package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/storage"
)

func (s *Store) ListCompletions(ctx context.Context, f storage.CompletionFilter) ([]models.Completion, error) {
	var where []string
	var args []any
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.HabitID != "" {
		where = append(where, "habit_id = ?")
		args = append(args, f.HabitID)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(f.Since))
	}

	query := "SELECT id, habit_id, user_id, day_key, created_at FROM completions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completions := []models.Completion{}
	for rows.Next() {
		var c models.Completion
		var createdAt string
		if err := rows.Scan(&c.ID, &c.HabitID, &c.UserID, &c.DayKey, &createdAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, fmt.Errorf("completion %s: %w", c.ID, err)
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

func (s *Store) RecordCompletion(ctx context.Context, c models.Completion, expected, next models.StreakState) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO completions (id, habit_id, user_id, day_key, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.HabitID, c.UserID, c.DayKey, formatTime(c.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateCompletion
		}
		return fmt.Errorf("failed to insert completion: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE habits SET streak_count = ?, last_completed = ?
		WHERE id = ? AND user_id = ? AND streak_count = ? AND last_completed IS ?`,
		next.StreakCount, formatNullTime(next.LastCompleted),
		c.HabitID, c.UserID, expected.StreakCount, formatNullTime(expected.LastCompleted))
	if err != nil {
		return fmt.Errorf("failed to update habit streak: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM habits WHERE id = ? AND user_id = ?", c.HabitID, c.UserID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return storage.ErrStaleHabit
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}
	return nil
}
