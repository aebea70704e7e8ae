package system

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adrg/xdg"

	"github.com/julianstephens/keepup/internal/changes"
	"github.com/julianstephens/keepup/internal/cli"
	"github.com/julianstephens/keepup/internal/cli/habits"
	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/logger"
	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/storage"
	"github.com/julianstephens/keepup/internal/storage/postgres"
	"github.com/julianstephens/keepup/internal/storage/sqlite"
)

type WatchCmd struct {
	Debounce time.Duration `help:"Quiet period before re-fetching after a change." default:"150ms"`
}

// LockPath is where the single-watcher lockfile lives
func LockPath() string {
	return filepath.Join(xdg.StateHome, constants.AppName, constants.WatchLockfileName)
}

func (c *WatchCmd) Run(ctx *cli.Context) error {
	sess, err := ctx.RequireSession()
	if err != nil {
		return err
	}

	lock, err := changes.AcquireLock(LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("Failed to release watch lock", "error", err)
		}
	}()

	runCtx, stop := signal.NotifyContext(ctx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := changeSource(ctx.Store, ctx.Broker)
	if err != nil {
		return err
	}
	if err := source.Start(runCtx); err != nil {
		return fmt.Errorf("failed to watch for changes: %w", err)
	}
	defer source.Stop()

	events, unsubscribe := ctx.Broker.Subscribe(1)
	defer unsubscribe()

	refresher := changes.NewRefresher(
		func(fctx context.Context) ([]models.Habit, error) {
			return ctx.Tracker.ListHabits(fctx, sess)
		},
		func(res changes.Result[[]models.Habit]) {
			render(ctx, res)
		},
		c.Debounce,
	)

	refresher.Refresh(runCtx)
	refresher.Run(runCtx, forUser(runCtx, events, sess.UserID()))

	ctx.Println("\nStopped watching.")
	return nil
}

// forUser passes on the events that may affect userID
func forUser(ctx context.Context, events <-chan changes.Event, userID string) <-chan changes.Event {
	out := make(chan changes.Event)
	go func() {
		defer close(out)
		for e := range events {
			if !e.Affects(userID) {
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func changeSource(store storage.Provider, broker *changes.Broker) (changes.Source, error) {
	switch s := store.(type) {
	case *sqlite.Store:
		return changes.NewFileWatcher(s.GetConfigPath(), broker), nil
	case *postgres.Store:
		return changes.NewPGListener(s.ConnString(), broker), nil
	default:
		return nil, fmt.Errorf("watching is not supported for %T", store)
	}
}

func render(ctx *cli.Context, res changes.Result[[]models.Habit]) {
	now := ctx.Now()
	ctx.Printf("\n%s %s\n", cli.HeaderStyle.Render("Habits"), cli.MutedStyle.Render("updated "+now.Format("15:04:05")))
	if res.Err != nil {
		ctx.Printf("%s\n", cli.ErrorStyle.Render("Refresh failed: "+res.Err.Error()))
		return
	}
	ctx.Printf("%s", habits.RenderList(res.Value, now, false))
}
