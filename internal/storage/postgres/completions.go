package postgres

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
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.HabitID != "" {
		add("habit_id = $%d", f.HabitID)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since.UTC())
	}

	query := "SELECT id, habit_id, user_id, day_key, created_at FROM completions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completions := []models.Completion{}
	for rows.Next() {
		var c models.Completion
		if err := rows.Scan(&c.ID, &c.HabitID, &c.UserID, &c.DayKey, &c.CreatedAt); err != nil {
			return nil, err
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
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.HabitID, c.UserID, c.DayKey, c.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateCompletion
		}
		return fmt.Errorf("failed to insert completion: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE habits SET streak_count = $1, last_completed = $2
		WHERE id = $3 AND user_id = $4 AND streak_count = $5
		AND last_completed IS NOT DISTINCT FROM $6::timestamptz`,
		next.StreakCount, nullTime(next.LastCompleted),
		c.HabitID, c.UserID, expected.StreakCount, nullTime(expected.LastCompleted))
	if err != nil {
		return fmt.Errorf("failed to update habit streak: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM habits WHERE id = $1 AND user_id = $2", c.HabitID, c.UserID).Scan(&one)
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
