package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/keepup/internal/models"
)

// ConflictType represents the type of data conflict found in stored habits
type ConflictType string

const (
	ConflictDuplicateHabitTitle  ConflictType = "duplicate_habit_title"
	ConflictInconsistentStreak   ConflictType = "inconsistent_streak"
	ConflictStreakWithoutHistory ConflictType = "streak_without_history"
)

// Conflict represents a detected problem with one or more habits
type Conflict struct {
	Type        ConflictType
	Description string
	Items       []string // Habit titles involved
	HabitIDs    []string // IDs of habits involved (for repair)
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// Repairable returns the IDs of habits whose streak can be re-derived from history
func (vr *ValidationResult) Repairable() []string {
	var ids []string
	for _, c := range vr.Conflicts {
		if c.Type == ConflictInconsistentStreak || c.Type == ConflictStreakWithoutHistory {
			ids = append(ids, c.HabitIDs...)
		}
	}
	return ids
}

// FormatReport renders the conflicts as indented lines
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d conflict(s):\n", len(vr.Conflicts))
	for _, c := range vr.Conflicts {
		fmt.Fprintf(&b, "  - [%s] %s\n", c.Type, c.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ValidateHabits checks a user's stored habits for states the tracker cannot
// act on cleanly. completionCounts maps habit ID to its number of recorded completions.
func ValidateHabits(habits []models.Habit, completionCounts map[string]int) ValidationResult {
	var result ValidationResult

	byTitle := make(map[string][]models.Habit)
	for _, h := range habits {
		key := strings.ToLower(strings.TrimSpace(h.Title))
		byTitle[key] = append(byTitle[key], h)

		switch {
		case h.StreakCount > 0 && h.LastCompleted == nil:
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInconsistentStreak,
				Description: fmt.Sprintf("%q has a streak of %d but no last completion", h.Title, h.StreakCount),
				Items:       []string{h.Title},
				HabitIDs:    []string{h.ID},
			})
		case h.StreakCount > 0 && completionCounts[h.ID] == 0:
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictStreakWithoutHistory,
				Description: fmt.Sprintf("%q has a streak of %d but no recorded completions", h.Title, h.StreakCount),
				Items:       []string{h.Title},
				HabitIDs:    []string{h.ID},
			})
		}
	}

	titles := make([]string, 0, len(byTitle))
	for title := range byTitle {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	for _, title := range titles {
		group := byTitle[title]
		if len(group) < 2 {
			continue
		}
		c := Conflict{
			Type:        ConflictDuplicateHabitTitle,
			Description: fmt.Sprintf("%d habits are titled %q; refer to them by ID", len(group), group[0].Title),
		}
		for _, h := range group {
			c.Items = append(c.Items, h.Title)
			c.HabitIDs = append(c.HabitIDs, h.ID)
		}
		result.Conflicts = append(result.Conflicts, c)
	}

	return result
}
