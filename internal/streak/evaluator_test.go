package streak

import (
	"testing"
	"time"

	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/models"
)

func ptr(t time.Time) *time.Time { return &t }

func mustFreq(t *testing.T, s string) models.Frequency {
	t.Helper()
	f, err := models.ParseFrequency(s)
	if err != nil {
		t.Fatalf("ParseFrequency(%q): %v", s, err)
	}
	return f
}

func TestEvaluateScenarios(t *testing.T) {
	loc := time.Local

	tests := []struct {
		name  string
		input Input
		want  Decision
	}{
		{
			name: "late night then just after midnight extends streak",
			input: Input{
				CurrentStreak: 3,
				LastCompleted: ptr(time.Date(2024, 1, 1, 23, 50, 0, 0, loc)),
				Frequency:     models.Daily(),
				Now:           time.Date(2024, 1, 2, 0, 10, 0, 0, loc),
			},
			want: Decision{Outcome: Accepted, NextStreak: 4},
		},
		{
			name: "same local day is rejected",
			input: Input{
				CurrentStreak: 3,
				LastCompleted: ptr(time.Date(2024, 1, 1, 10, 0, 0, 0, loc)),
				Frequency:     models.Daily(),
				Now:           time.Date(2024, 1, 1, 18, 0, 0, 0, loc),
			},
			want: Decision{Outcome: Rejected, Reason: constants.ReasonAlreadyCompletedToday, NextStreak: 3},
		},
		{
			name: "four day gap resets",
			input: Input{
				CurrentStreak: 5,
				LastCompleted: ptr(time.Date(2024, 1, 1, 10, 0, 0, 0, loc)),
				Frequency:     models.Daily(),
				Now:           time.Date(2024, 1, 5, 10, 0, 0, 0, loc),
			},
			want: Decision{Outcome: Accepted, NextStreak: 1, ResetOccurred: true},
		},
		{
			name: "zero streak ignores stale last completion",
			input: Input{
				CurrentStreak: 0,
				LastCompleted: ptr(time.Date(2023, 6, 1, 10, 0, 0, 0, loc)),
				Frequency:     models.Daily(),
				Now:           time.Date(2024, 1, 1, 10, 0, 0, 0, loc),
			},
			want: Decision{Outcome: Accepted, NextStreak: 1},
		},
		{
			name: "missing last completion restarts",
			input: Input{
				CurrentStreak: 2,
				Frequency:     models.Daily(),
				Now:           time.Date(2024, 3, 3, 9, 0, 0, 0, loc),
			},
			want: Decision{Outcome: Accepted, NextStreak: 1, Inconsistent: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.input)
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvaluateDailyProperties(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 15, 14, 0, 0, 0, loc)

	for streak := 0; streak <= 10; streak++ {
		for gap := -3; gap <= 10; gap++ {
			last := now.AddDate(0, 0, -gap).Add(-3 * time.Hour)
			got := Evaluate(Input{
				CurrentStreak: streak,
				LastCompleted: &last,
				Frequency:     models.Daily(),
				Now:           now,
			})

			switch {
			case streak == 0:
				if !got.IsAccepted() || got.NextStreak != 1 || got.ResetOccurred {
					t.Errorf("streak 0 gap %d: got %+v, want accepted/1/no reset", gap, got)
				}
			case gap == 0:
				if got.IsAccepted() || got.Reason != constants.ReasonAlreadyCompletedToday {
					t.Errorf("streak %d same day: got %+v, want rejected", streak, got)
				}
			case gap == 1:
				if !got.IsAccepted() || got.NextStreak != streak+1 || got.ResetOccurred {
					t.Errorf("streak %d gap 1: got %+v, want accepted/%d", streak, got, streak+1)
				}
			default:
				if !got.IsAccepted() || got.NextStreak != 1 || !got.ResetOccurred {
					t.Errorf("streak %d gap %d: got %+v, want reset to 1", streak, gap, got)
				}
			}
		}
	}
}

func TestEvaluateAbsentLastCompleted(t *testing.T) {
	now := time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)
	for streak := 1; streak <= 20; streak++ {
		got := Evaluate(Input{CurrentStreak: streak, Frequency: models.Daily(), Now: now})
		if !got.IsAccepted() || got.NextStreak != 1 || got.ResetOccurred {
			t.Errorf("streak %d: got %+v, want accepted/1", streak, got)
		}
		if !got.Inconsistent {
			t.Errorf("streak %d: expected Inconsistent flag", streak)
		}
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	in := Input{
		CurrentStreak: 7,
		LastCompleted: ptr(time.Date(2024, 2, 28, 22, 0, 0, 0, time.UTC)),
		Frequency:     models.Daily(),
		Now:           time.Date(2024, 2, 29, 6, 0, 0, 0, time.UTC),
	}
	first := Evaluate(in)
	for i := 0; i < 100; i++ {
		if got := Evaluate(in); got != first {
			t.Fatalf("evaluation %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestEvaluateUsesLocalDayNotUTC(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	// Both instants fall on Jan 1 in New York but on different UTC days
	last := time.Date(2024, 1, 1, 10, 0, 0, 0, ny)
	now := time.Date(2024, 1, 1, 21, 0, 0, 0, ny)

	got := Evaluate(Input{
		CurrentStreak: 4,
		LastCompleted: &last,
		Frequency:     models.Daily(),
		Now:           now.UTC(),
		Location:      ny,
	})
	if got.IsAccepted() {
		t.Errorf("expected rejection on the same New York day, got %+v", got)
	}

	inUTC := Evaluate(Input{
		CurrentStreak: 4,
		LastCompleted: &last,
		Frequency:     models.Daily(),
		Now:           now.UTC(),
		Location:      time.UTC,
	})
	if !inUTC.IsAccepted() || inUTC.NextStreak != 5 {
		t.Errorf("expected acceptance when evaluated in UTC, got %+v", inUTC)
	}
}

func TestEvaluateAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	got := Evaluate(Input{
		CurrentStreak: 2,
		LastCompleted: ptr(time.Date(2024, 3, 9, 23, 30, 0, 0, ny)),
		Frequency:     models.Daily(),
		Now:           time.Date(2024, 3, 10, 23, 30, 0, 0, ny),
		Location:      ny,
	})
	if !got.IsAccepted() || got.NextStreak != 3 {
		t.Errorf("expected streak to extend across spring forward, got %+v", got)
	}
}

func TestEvaluateAcrossMidnightDSTGap(t *testing.T) {
	// Santiago has no 2024-09-08 00:00; clocks jump to 01:00
	santiago, err := time.LoadLocation("America/Santiago")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	tests := []struct {
		name       string
		last, now  time.Time
		wantAccept bool
		wantNext   int
		wantReason constants.DecisionReason
	}{
		{
			name:       "noon to noon extends",
			last:       time.Date(2024, 9, 7, 12, 0, 0, 0, santiago),
			now:        time.Date(2024, 9, 8, 12, 0, 0, 0, santiago),
			wantAccept: true,
			wantNext:   3,
		},
		{
			name:       "late evening to first instant extends",
			last:       time.Date(2024, 9, 7, 23, 30, 0, 0, santiago),
			now:        time.Date(2024, 9, 8, 1, 0, 0, 0, santiago),
			wantAccept: true,
			wantNext:   3,
		},
		{
			name:       "twice on the short day is rejected",
			last:       time.Date(2024, 9, 8, 1, 30, 0, 0, santiago),
			now:        time.Date(2024, 9, 8, 22, 0, 0, 0, santiago),
			wantReason: constants.ReasonAlreadyCompletedToday,
			wantNext:   2,
		},
		{
			name:       "short day to the next extends",
			last:       time.Date(2024, 9, 8, 9, 0, 0, 0, santiago),
			now:        time.Date(2024, 9, 9, 9, 0, 0, 0, santiago),
			wantAccept: true,
			wantNext:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(Input{
				CurrentStreak: 2,
				LastCompleted: ptr(tt.last),
				Frequency:     models.Daily(),
				Now:           tt.now,
				Location:      santiago,
			})
			if got.IsAccepted() != tt.wantAccept || got.NextStreak != tt.wantNext || got.Reason != tt.wantReason {
				t.Errorf("Evaluate() = %+v, want accepted=%v next=%d reason=%q", got, tt.wantAccept, tt.wantNext, tt.wantReason)
			}
			if got.ResetOccurred {
				t.Errorf("unexpected reset: %+v", got)
			}
		})
	}
}

func TestEvaluatePeriodicFrequencies(t *testing.T) {
	loc := time.UTC
	// 2024-01-03 is a Wednesday
	base := time.Date(2024, 1, 3, 9, 0, 0, 0, loc)

	tests := []struct {
		name      string
		frequency string
		now       time.Time
		want      Decision
	}{
		{
			name:      "weekly same week is rejected",
			frequency: "weekly",
			now:       time.Date(2024, 1, 7, 9, 0, 0, 0, loc),
			want:      Decision{Outcome: Rejected, Reason: constants.ReasonAlreadyCompletedThisPeriod, NextStreak: 2},
		},
		{
			name:      "weekly next week extends",
			frequency: "weekly",
			now:       time.Date(2024, 1, 8, 9, 0, 0, 0, loc),
			want:      Decision{Outcome: Accepted, NextStreak: 3},
		},
		{
			name:      "weekly skipped week resets",
			frequency: "weekly",
			now:       time.Date(2024, 1, 15, 9, 0, 0, 0, loc),
			want:      Decision{Outcome: Accepted, NextStreak: 1, ResetOccurred: true},
		},
		{
			name:      "monthly same month is rejected",
			frequency: "monthly",
			now:       time.Date(2024, 1, 31, 9, 0, 0, 0, loc),
			want:      Decision{Outcome: Rejected, Reason: constants.ReasonAlreadyCompletedThisPeriod, NextStreak: 2},
		},
		{
			name:      "monthly next month extends",
			frequency: "monthly",
			now:       time.Date(2024, 2, 29, 9, 0, 0, 0, loc),
			want:      Decision{Outcome: Accepted, NextStreak: 3},
		},
		{
			name:      "every 3 days within window extends",
			frequency: "every 3 days",
			now:       time.Date(2024, 1, 6, 9, 0, 0, 0, loc),
			want:      Decision{Outcome: Accepted, NextStreak: 3},
		},
		{
			name:      "every 3 days early completion still extends",
			frequency: "every 3 days",
			now:       time.Date(2024, 1, 4, 9, 0, 0, 0, loc),
			want:      Decision{Outcome: Accepted, NextStreak: 3},
		},
		{
			name:      "every 3 days past window resets",
			frequency: "every 3 days",
			now:       time.Date(2024, 1, 7, 9, 0, 0, 0, loc),
			want:      Decision{Outcome: Accepted, NextStreak: 1, ResetOccurred: true},
		},
		{
			name:      "every 2 weeks two weeks later extends",
			frequency: "every 2 weeks",
			now:       time.Date(2024, 1, 17, 9, 0, 0, 0, loc),
			want:      Decision{Outcome: Accepted, NextStreak: 3},
		},
		{
			name:      "same day is rejected for any cadence",
			frequency: "every 6 months",
			now:       time.Date(2024, 1, 3, 20, 0, 0, 0, loc),
			want:      Decision{Outcome: Rejected, Reason: constants.ReasonAlreadyCompletedToday, NextStreak: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(Input{
				CurrentStreak: 2,
				LastCompleted: &base,
				Frequency:     mustFreq(t, tt.frequency),
				Now:           tt.now,
			})
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(models.Frequency{}); got != models.Daily() {
		t.Errorf("Normalize(zero) = %+v, want daily", got)
	}
	bad := models.Frequency{Kind: constants.FrequencyCustom, Every: 0, Unit: constants.UnitWeeks}
	if got := Normalize(bad); got != models.Daily() {
		t.Errorf("Normalize(every 0) = %+v, want daily", got)
	}
	if got := Normalize(models.Weekly()); got != models.Weekly() {
		t.Errorf("Normalize(weekly) = %+v, want weekly", got)
	}
}

func TestEvaluateDailyNeverRejectsForPeriod(t *testing.T) {
	loc := time.UTC
	last := time.Date(2024, 4, 8, 9, 0, 0, 0, loc)
	for _, freq := range []string{"daily", "every 1 days", "every 3 days"} {
		t.Run(freq, func(t *testing.T) {
			got := Evaluate(Input{
				CurrentStreak: 4,
				LastCompleted: ptr(last),
				Frequency:     mustFreq(t, freq),
				Now:           time.Date(2024, 4, 8, 21, 0, 0, 0, loc),
				Location:      loc,
			})
			if got.Reason != constants.ReasonAlreadyCompletedToday {
				t.Errorf("Evaluate() reason = %q, want %q", got.Reason, constants.ReasonAlreadyCompletedToday)
			}
		})
	}
}
