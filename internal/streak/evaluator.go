// Package streak decides whether a habit may be completed at a given instant
// and what its streak becomes. Everything here is pure: callers pass the
// current instant explicitly and nothing touches storage or the wall clock.
package streak

import (
	"time"

	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/utils"
)

// Outcome is the result tag of a decision
type Outcome string

const (
	Accepted Outcome = "accepted"
	Rejected Outcome = "rejected"
)

// Input is the stored habit state plus the evaluation instant.
// A nil Location evaluates local days in Now's location.
type Input struct {
	CurrentStreak int
	LastCompleted *time.Time
	Frequency     models.Frequency
	Now           time.Time
	Location      *time.Location
}

// Decision is either a rejection with a reason or an acceptance carrying the
// next streak count.
type Decision struct {
	Outcome       Outcome
	Reason        constants.DecisionReason
	NextStreak    int
	ResetOccurred bool
	// Inconsistent marks a nonzero streak with no recorded completion
	Inconsistent bool
}

// IsAccepted reports whether the completion may be written
func (d Decision) IsAccepted() bool {
	return d.Outcome == Accepted
}

// Evaluate applies the streak rules:
//
//  1. a zero streak always restarts at 1, ignoring any stale last completion
//  2. a missing last completion restarts at 1 and is flagged Inconsistent
//  3. a completion on the same local day is rejected with
//     ReasonAlreadyCompletedToday
//  4. for weekly, monthly and custom cadences a gap of 0 periods (same ISO
//     week or calendar month) is rejected with ReasonAlreadyCompletedThisPeriod
//  5. a gap of 1..every periods extends the streak, anything else resets it
//
// Daily habits never see the period rejection: a gap of 0 days is rule 3.
func Evaluate(in Input) Decision {
	if in.CurrentStreak <= 0 {
		return accept(1, false)
	}

	if in.LastCompleted == nil {
		d := accept(1, false)
		d.Inconsistent = true
		return d
	}

	loc := in.Location
	if loc == nil {
		loc = in.Now.Location()
	}

	today := utils.StripToLocalDay(in.Now, loc)
	lastDay := utils.StripToLocalDay(*in.LastCompleted, loc)

	if utils.IsSameLocalDay(lastDay, today) {
		return reject(constants.ReasonAlreadyCompletedToday, in.CurrentStreak)
	}

	freq := Normalize(in.Frequency)
	gap := Gap(lastDay, today, freq)

	switch {
	case gap == 0:
		return reject(constants.ReasonAlreadyCompletedThisPeriod, in.CurrentStreak)
	case gap >= 1 && gap <= freq.Every:
		return accept(in.CurrentStreak+1, false)
	default:
		// Missed a period, or the clock moved backwards
		return accept(1, true)
	}
}

// Normalize maps an unset or malformed frequency to daily
func Normalize(f models.Frequency) models.Frequency {
	if f.IsZero() || f.Every < 1 {
		return models.Daily()
	}
	switch f.Unit {
	case constants.UnitDays, constants.UnitWeeks, constants.UnitMonths:
		return f
	default:
		return models.Daily()
	}
}

// Gap returns the number of frequency periods between two local days:
// calendar days, ISO weeks or calendar months depending on the unit.
func Gap(from, to utils.LocalDay, f models.Frequency) int {
	switch Normalize(f).Unit {
	case constants.UnitWeeks:
		return utils.DayDifference(from.StartOfWeek(), to.StartOfWeek()) / 7
	case constants.UnitMonths:
		return to.MonthIndex() - from.MonthIndex()
	default:
		return utils.DayDifference(from, to)
	}
}

func accept(next int, reset bool) Decision {
	return Decision{Outcome: Accepted, NextStreak: next, ResetOccurred: reset}
}

func reject(reason constants.DecisionReason, current int) Decision {
	return Decision{Outcome: Rejected, Reason: reason, NextStreak: current}
}
