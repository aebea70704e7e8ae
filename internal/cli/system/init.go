package system

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/keepup/internal/backup"
	"github.com/julianstephens/keepup/internal/cli"
	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/keyring"
	"github.com/julianstephens/keepup/internal/migration"
	"github.com/julianstephens/keepup/internal/storage"
	"github.com/julianstephens/keepup/internal/storage/postgres"
)

type InitCmd struct {
	Force      bool   `help:"Delete the existing SQLite database before initialization."`
	Connection string `help:"PostgreSQL connection string. Stored in the OS keyring and used from now on."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	store := ctx.Store

	if c.Connection != "" {
		pg, err := c.usePostgres(ctx)
		if err != nil {
			return err
		}
		if err := store.Close(); err != nil {
			return fmt.Errorf("failed to close previous store: %w", err)
		}
		store = pg
		defer store.Close()
	}

	if c.Force {
		if store.Driver() != migration.DriverSQLite {
			return fmt.Errorf("--force is only supported for the sqlite backend")
		}
		if err := c.reset(ctx, store); err != nil {
			return err
		}
	}

	if err := store.Init(ctx.Ctx); err != nil {
		return err
	}
	ctx.Printf("%s Initialized keepup storage at: %s\n", cli.SuccessStyle.Render("✓"), store.GetConfigPath())

	if _, err := os.Stat(ctx.Config.Path()); os.IsNotExist(err) || c.Connection != "" {
		if err := ctx.Config.Save(); err != nil {
			return err
		}
		ctx.Printf("  Configuration written to: %s\n", ctx.Config.Path())
	}
	return nil
}

// usePostgres stores the connection string in the keyring and switches the
// config to the postgres backend without persisting the string itself
func (c *InitCmd) usePostgres(ctx *cli.Context) (storage.Provider, error) {
	if _, err := postgres.ValidateConnString(c.Connection); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return nil, fmt.Errorf("invalid connection string: %w", err)
		}
		ctx.Println(cli.WarnStyle.Render("⚠ Connection string contains a password. It is kept only in the encrypted OS keyring."))
	}

	if err := keyring.SetConnectionString(c.Connection); err != nil {
		return nil, fmt.Errorf("failed to store connection string in keyring: %w", err)
	}

	ctx.Config.Storage.Backend = constants.BackendPostgres
	ctx.Config.Storage.Connection = ""
	return postgres.New(c.Connection), nil
}

func (c *InitCmd) reset(ctx *cli.Context, store storage.Provider) error {
	dbPath := store.GetConfigPath()
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to access existing database: %w", err)
	}

	info, err := backup.NewManager(dbPath).Create(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to back up existing database: %w", err)
	}
	ctx.Printf("Backed up existing database to: %s\n", info.Path)

	// Close first to release the file
	if err := store.Close(); err != nil {
		return fmt.Errorf("failed to close existing database: %w", err)
	}
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete existing database: %w", err)
		}
	}
	ctx.Printf("Deleted existing database at: %s\n", dbPath)
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	if ctx.Store.Driver() == migration.DriverSQLite {
		st, err := ctx.Store.SchemaStatus(ctx.Ctx)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		if len(st.Pending) > 0 {
			info, err := backup.NewManager(ctx.Store.GetConfigPath()).Create(ctx.Ctx)
			if err != nil {
				return fmt.Errorf("failed to back up database before migrating: %w", err)
			}
			ctx.Printf("Backed up database to: %s\n", info.Path)
		}
	}

	count, err := ctx.Store.Migrate(ctx.Ctx, func(msg string) {
		ctx.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count > 0 {
		ctx.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
