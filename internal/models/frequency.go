package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/julianstephens/keepup/internal/constants"
)

// ErrInvalidFrequency is returned when a frequency string cannot be parsed
var ErrInvalidFrequency = errors.New("invalid frequency")

// Frequency is the cadence at which a habit is expected to be completed.
// Every and Unit are set for all kinds; Daily is every 1 day, Weekly every
// 1 week and Monthly every 1 month.
type Frequency struct {
	Kind  constants.FrequencyKind
	Every int
	Unit  constants.FrequencyUnit
}

func Daily() Frequency {
	return Frequency{Kind: constants.FrequencyDaily, Every: 1, Unit: constants.UnitDays}
}

func Weekly() Frequency {
	return Frequency{Kind: constants.FrequencyWeekly, Every: 1, Unit: constants.UnitWeeks}
}

func Monthly() Frequency {
	return Frequency{Kind: constants.FrequencyMonthly, Every: 1, Unit: constants.UnitMonths}
}

// Custom returns an "every N <unit>" frequency
func Custom(every int, unit constants.FrequencyUnit) (Frequency, error) {
	if every < 1 || every > constants.MaxCustomEvery {
		return Frequency{}, fmt.Errorf("%w: interval must be between 1 and %d, got %d", ErrInvalidFrequency, constants.MaxCustomEvery, every)
	}
	switch unit {
	case constants.UnitDays, constants.UnitWeeks, constants.UnitMonths:
	default:
		return Frequency{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidFrequency, unit)
	}
	return Frequency{Kind: constants.FrequencyCustom, Every: every, Unit: unit}, nil
}

// ParseFrequency parses the canonical frequency strings: daily, weekly,
// monthly, or "every <N> <days|weeks|months>". Singular units are accepted.
func ParseFrequency(s string) (Frequency, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 1 {
		switch constants.FrequencyKind(fields[0]) {
		case constants.FrequencyDaily:
			return Daily(), nil
		case constants.FrequencyWeekly:
			return Weekly(), nil
		case constants.FrequencyMonthly:
			return Monthly(), nil
		}
	}

	if len(fields) != 3 || fields[0] != "every" {
		return Frequency{}, fmt.Errorf("%w: %q (expected daily, weekly, monthly or \"every N days|weeks|months\")", ErrInvalidFrequency, s)
	}

	every, err := strconv.Atoi(fields[1])
	if err != nil {
		return Frequency{}, fmt.Errorf("%w: interval %q is not a number", ErrInvalidFrequency, fields[1])
	}

	unit, err := ParseFrequencyUnit(fields[2])
	if err != nil {
		return Frequency{}, err
	}

	return Custom(every, unit)
}

// ParseFrequencyUnit accepts plural and singular forms of a unit
func ParseFrequencyUnit(s string) (constants.FrequencyUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "days":
		return constants.UnitDays, nil
	case "week", "weeks":
		return constants.UnitWeeks, nil
	case "month", "months":
		return constants.UnitMonths, nil
	default:
		return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidFrequency, s)
	}
}

// String returns the canonical stored form of the frequency
func (f Frequency) String() string {
	switch f.Kind {
	case constants.FrequencyDaily, constants.FrequencyWeekly, constants.FrequencyMonthly:
		return string(f.Kind)
	case constants.FrequencyCustom:
		return fmt.Sprintf("every %d %s", f.Every, f.Unit)
	default:
		return ""
	}
}

// IsZero reports whether the frequency was never set
func (f Frequency) IsZero() bool {
	return f.Kind == ""
}

func (f Frequency) MarshalText() ([]byte, error) {
	if f.IsZero() {
		return nil, fmt.Errorf("%w: empty frequency", ErrInvalidFrequency)
	}
	return []byte(f.String()), nil
}

func (f *Frequency) UnmarshalText(text []byte) error {
	parsed, err := ParseFrequency(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
