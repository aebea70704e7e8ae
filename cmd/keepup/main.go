package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/keepup/internal/cli"
	"github.com/julianstephens/keepup/internal/cli/auth"
	"github.com/julianstephens/keepup/internal/cli/habits"
	"github.com/julianstephens/keepup/internal/cli/stats"
	"github.com/julianstephens/keepup/internal/cli/system"
	"github.com/julianstephens/keepup/internal/config"
	"github.com/julianstephens/keepup/internal/constants"
	apperrors "github.com/julianstephens/keepup/internal/errors"
	"github.com/julianstephens/keepup/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path (default: $XDG_CONFIG_HOME/keepup/config.yaml)." type:"path"`
	Debug   bool   `help:"Log debug output to stderr."`

	Init    system.InitCmd    `cmd:"" help:"Initialize keepup storage and configuration."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Keyring system.KeyringCmd `cmd:"" help:"Manage the PostgreSQL connection string in the OS keyring."`
	Backup  system.BackupCmd  `cmd:"" help:"Create, list and restore SQLite database backups."`

	Signup auth.SignUpCmd `cmd:"" name:"signup" help:"Create an account and sign in."`
	Login  auth.LoginCmd  `cmd:"" help:"Sign in."`
	Logout auth.LogoutCmd `cmd:"" help:"Sign out on this machine."`
	Whoami auth.WhoamiCmd `cmd:"" help:"Show the signed-in account."`

	Habit   habits.HabitCmd  `cmd:"" help:"Manage and complete habits."`
	Streaks stats.StreaksCmd `cmd:"" help:"Show streak statistics."`
	Watch   system.WatchCmd  `cmd:"" help:"Show habits and refresh on every change."`
}

// Commands that manage storage themselves and run before it is loadable
var noLoad = map[string]bool{
	"init":    true,
	"doctor":  true,
	"keyring": true,
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracker with streaks"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	if err := run(kctx); err != nil {
		apperrors.Fatal(err)
	}
}

func run(kctx *kong.Context) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if CLI.Debug {
		cfg.Log.Debug = true
	}
	if err := logger.Init(logger.Config{
		Debug: cfg.Log.Debug,
		Level: cfg.Log.Level,
		JSON:  cfg.Log.JSON,
		Dir:   cfg.Log.Dir,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	command := strings.Fields(kctx.Command())[0]

	// doctor reports configuration problems itself
	if command != "doctor" {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	store, err := cli.OpenStore(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	appCtx := cli.NewContext(ctx, cfg, store)
	defer appCtx.Close()

	if !noLoad[command] {
		if err := store.Load(ctx); err != nil {
			return err
		}
	}

	logger.Debug("Running command", "command", kctx.Command(), "backend", cfg.Storage.Backend)
	return kctx.Run(appCtx)
}
