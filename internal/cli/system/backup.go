package system

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/keepup/internal/backup"
	"github.com/julianstephens/keepup/internal/cli"
	"github.com/julianstephens/keepup/internal/migration"
)

var errBackupsUnsupported = errors.New("backups are only supported for the sqlite backend")

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" default:"1" help:"Snapshot the database."`
	List    BackupListCmd    `cmd:"" help:"List snapshots, newest first."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the database with a snapshot."`
}

func backupManager(ctx *cli.Context) (*backup.Manager, error) {
	if ctx.Store.Driver() != migration.DriverSQLite {
		return nil, errBackupsUnsupported
	}
	return backup.NewManager(ctx.Store.GetConfigPath()), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	info, err := mgr.Create(ctx.Ctx)
	if err != nil {
		return err
	}
	ctx.Printf("%s Backup created: %s (%s)\n", cli.SuccessStyle.Render("✓"), info.Path, humanize.Bytes(uint64(info.Size)))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	backups, err := mgr.List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		ctx.Println("No backups yet. Run 'keepup backup create' to make one.")
		return nil
	}

	ctx.Println(cli.HeaderStyle.Render("Backups in " + mgr.Dir()))
	for _, b := range backups {
		ctx.Printf("  %s  %s  %s\n",
			filepath.Base(b.Path),
			cli.MutedStyle.Render(humanize.RelTime(b.Created, ctx.Now(), "ago", "from now")),
			humanize.Bytes(uint64(b.Size)),
		)
	}
	return nil
}

type BackupRestoreCmd struct {
	Path string `arg:"" optional:"" help:"Snapshot to restore (default: the newest)." type:"path"`
	Yes  bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}

	path := c.Path
	if path == "" {
		backups, err := mgr.List()
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			return fmt.Errorf("no backups found in %s", mgr.Dir())
		}
		path = backups[0].Path
	}

	if !c.Yes {
		ok, err := ctx.Prompt.Confirm(fmt.Sprintf("Replace the database with %s?", filepath.Base(path)))
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Cancelled.")
			return nil
		}
	}

	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	previous, restoreErr := mgr.Restore(ctx.Ctx, path)
	// Reopen whatever is on disk now, restored or not
	if err := ctx.Store.Load(ctx.Ctx); err != nil {
		return errors.Join(restoreErr, fmt.Errorf("failed to reopen database: %w", err))
	}
	if restoreErr != nil {
		return restoreErr
	}

	ctx.Printf("%s Restored database from: %s\n", cli.SuccessStyle.Render("✓"), path)
	if previous.Path != "" {
		ctx.Printf("  Previous database saved to: %s\n", previous.Path)
	}
	return nil
}
