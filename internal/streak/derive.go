package streak

import (
	"sort"
	"time"

	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/utils"
)

// Derive recomputes streak_count and last_completed from completion history.
// At most one completion per period counts; the result matches what
// replaying every completion through Evaluate would have produced.
func Derive(instants []time.Time, freq models.Frequency, loc *time.Location) (int, *time.Time) {
	if len(instants) == 0 {
		return 0, nil
	}

	sorted := make([]time.Time, len(instants))
	copy(sorted, instants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	freq = Normalize(freq)

	streak := 0
	var prev utils.LocalDay
	var last time.Time
	for _, instant := range sorted {
		day := utils.StripToLocalDay(instant, loc)
		if streak == 0 {
			streak = 1
			prev, last = day, instant
			continue
		}

		gap := Gap(prev, day, freq)
		switch {
		case gap == 0:
			continue
		case gap <= freq.Every:
			streak++
		default:
			streak = 1
		}
		prev, last = day, instant
	}

	return streak, &last
}

// CompletionInstants extracts creation instants for Derive
func CompletionInstants(completions []models.Completion) []time.Time {
	instants := make([]time.Time, 0, len(completions))
	for _, c := range completions {
		instants = append(instants, c.CreatedAt)
	}
	return instants
}
