package constants

// FrequencyKind identifies the cadence variant of a habit
type FrequencyKind string

// FrequencyUnit is the period unit of a custom cadence
type FrequencyUnit string

// DecisionReason explains why a completion was rejected
type DecisionReason string

const (
	FrequencyDaily   FrequencyKind = "daily"
	FrequencyWeekly  FrequencyKind = "weekly"
	FrequencyMonthly FrequencyKind = "monthly"
	FrequencyCustom  FrequencyKind = "custom"

	UnitDays   FrequencyUnit = "days"
	UnitWeeks  FrequencyUnit = "weeks"
	UnitMonths FrequencyUnit = "months"

	MaxCustomEvery = 365

	ReasonAlreadyCompletedToday      DecisionReason = "already-completed-today"
	ReasonAlreadyCompletedThisPeriod DecisionReason = "already-completed-this-period"

	// Change collections and operations
	CollectionHabits      = "habits"
	CollectionCompletions = "completions"
	OpCreate              = "create"
	OpUpdate              = "update"
	OpDelete              = "delete"
)
