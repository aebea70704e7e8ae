package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/keepup/internal/cli"
	"github.com/julianstephens/keepup/internal/keyring"
	"github.com/julianstephens/keepup/internal/logger"
	"github.com/julianstephens/keepup/internal/session"
	"github.com/julianstephens/keepup/internal/utils"
)

type DoctorCmd struct{}

type check struct {
	name string
	// needsDB checks are skipped when the database is unreachable
	needsDB bool
	// warnOnly failures do not fail the run
	warnOnly bool
	run      func(*cli.Context) error
}

var checks = []check{
	{name: "Configuration", run: checkConfig},
	{name: "Database reachable", run: checkDBReachable},
	{name: "Schema version", needsDB: true, run: checkSchemaVersion},
	{name: "Migrations complete", needsDB: true, run: checkMigrationsComplete},
	{name: "OS keyring", warnOnly: true, run: checkKeyring},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "Session", needsDB: true, warnOnly: true, run: checkSession},
	{name: "Habit integrity", needsDB: true, run: checkHabitIntegrity},
	{name: "Backups", needsDB: true, warnOnly: true, run: checkBackups},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	hasError := false
	dbReachable := true

	for _, c := range checks {
		if c.needsDB && !dbReachable {
			ctx.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}

		err := c.run(ctx)
		switch {
		case err == nil:
			ctx.Printf("%s %s: OK\n", cli.SuccessStyle.Render("✓"), c.name)
		case c.warnOnly:
			ctx.Printf("%s %s: WARNING\n", cli.WarnStyle.Render("⚠"), c.name)
			ctx.Printf("   %v\n", err)
		default:
			ctx.Printf("%s %s: FAIL\n", cli.ErrorStyle.Render("❌"), c.name)
			ctx.Printf("   Error: %v\n", err)
			hasError = true
			if c.name == "Database reachable" {
				dbReachable = false
			}
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	ctx.Println("All diagnostics passed!")
	return nil
}

func checkConfig(ctx *cli.Context) error {
	return ctx.Config.Validate()
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(ctx.Ctx); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	st, err := ctx.Store.SchemaStatus(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if st.Current > st.Latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", st.Current, st.Latest)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	st, err := ctx.Store.SchemaStatus(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if len(st.Pending) > 0 {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d (run 'keepup migrate')", st.Current, st.Latest)
	}
	return nil
}

func checkKeyring(*cli.Context) error {
	if !keyring.IsAvailable() {
		return fmt.Errorf("OS keyring is not available; sessions cannot be remembered")
	}
	return nil
}

func checkClockTimezone(ctx *cli.Context) error {
	now := ctx.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if _, err := utils.LoadLocation(ctx.Config.Timezone); err != nil {
		return fmt.Errorf("%w, using %s", err, utils.ZoneLabel(ctx.Tracker.Location(), now))
	}
	logger.Debug("Clock check", "now", now.Format(time.RFC3339), "zone", utils.ZoneLabel(ctx.Tracker.Location(), now))
	return nil
}

func checkSession(ctx *cli.Context) error {
	if _, err := ctx.RequireSession(); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return fmt.Errorf("not signed in; habit checks skipped")
		}
		return err
	}
	return nil
}

func checkHabitIntegrity(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		// Reported by the session check
		return nil
	}

	result, err := ctx.Tracker.Audit(ctx.Ctx, sess)
	if err != nil {
		return fmt.Errorf("failed to audit habits: %w", err)
	}
	if result.HasConflicts() {
		return fmt.Errorf("%s\n   run 'keepup habit repair' to recompute streaks", result.FormatReport())
	}
	return nil
}

// backupMaxAge is how old the newest snapshot may get before doctor warns
const backupMaxAge = 7 * 24 * time.Hour

func checkBackups(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if errors.Is(err, errBackupsUnsupported) {
		return nil
	}
	if err != nil {
		return err
	}
	backups, err := mgr.List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups yet, run 'keepup backup create'")
	}
	if newest := backups[0].Created; ctx.Now().Sub(newest) > backupMaxAge {
		return fmt.Errorf("newest backup is from %s, run 'keepup backup create'",
			humanize.RelTime(newest, ctx.Now(), "ago", "from now"))
	}
	return nil
}
