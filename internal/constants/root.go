package constants

import "time"

const (
	AppName           = "keepup"
	Version           = "v0.3.0"
	DefaultConfigName = "config.yaml"
	DefaultDBName     = "keepup.db"

	// Keyring entries
	KeyringConnectionUser = "database-connection"
	KeyringSessionUser    = "session-token"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Environment overrides
	EnvDBConnection = "KEEPUP_DB_CONNECTION"
	EnvTimezone     = "KEEPUP_TIMEZONE"
	EnvConfigPath   = "KEEPUP_CONFIG"

	// Storage backends
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	// Session constants
	DefaultSessionTTL = 30 * 24 * time.Hour
	SessionTokenBytes = 32
	MinPasswordLength = 8

	// Completion constants
	MaxCompletionAttempts = 3

	// Change notification constants
	ChangeChannel        = "keepup_changes"
	RefreshDebounce      = 150 * time.Millisecond
	ListenerMinReconnect = 10 * time.Second
	ListenerMaxReconnect = time.Minute
	WatchLockfileName    = "keepup-watch.lock"

	// Stats ranges in days
	StatsRangeShort  = 7
	StatsRangeMedium = 30
	StatsRangeLong   = 90
	WeekRowDays      = 7
)

// StatsRanges are the ranges offered by `keepup streaks`
var StatsRanges = []int{StatsRangeShort, StatsRangeMedium, StatsRangeLong}
