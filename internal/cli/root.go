package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/julianstephens/keepup/internal/changes"
	"github.com/julianstephens/keepup/internal/config"
	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/session"
	"github.com/julianstephens/keepup/internal/storage"
	"github.com/julianstephens/keepup/internal/storage/postgres"
	"github.com/julianstephens/keepup/internal/storage/sqlite"
	"github.com/julianstephens/keepup/internal/tracker"
)

// Context carries everything a command needs. It is built once in main.
type Context struct {
	Ctx      context.Context
	Config   *config.Config
	Store    storage.Provider
	Sessions *session.Manager
	Tracker  *tracker.Tracker
	Broker   *changes.Broker
	Prompt   Prompter
	Out      io.Writer
	Now      func() time.Time
}

// OpenStore returns the provider for the configured backend without connecting
func OpenStore(cfg *config.Config) (storage.Provider, error) {
	switch cfg.Storage.Backend {
	case constants.BackendSQLite:
		return sqlite.NewStore(cfg.Storage.Path), nil
	case constants.BackendPostgres:
		return postgres.New(cfg.Storage.Connection), nil
	default:
		return nil, fmt.Errorf("invalid storage backend: %q", cfg.Storage.Backend)
	}
}

// NewContext wires the store, session manager and tracker for cfg
func NewContext(ctx context.Context, cfg *config.Config, store storage.Provider, opts ...session.Option) *Context {
	broker := changes.NewBroker()
	return &Context{
		Ctx:      ctx,
		Config:   cfg,
		Store:    store,
		Sessions: session.NewManager(store, cfg.SessionTTL(), opts...),
		Tracker:  tracker.New(store, cfg.Location(), broker),
		Broker:   broker,
		Prompt:   NewPrompter(os.Stdin, os.Stdout),
		Out:      os.Stdout,
		Now:      time.Now,
	}
}

// RequireSession resumes the signed-in session or fails with session.ErrNoSession
func (c *Context) RequireSession() (*session.Session, error) {
	return c.Sessions.Resume(c.Ctx)
}

// Close releases the broker and the store
func (c *Context) Close() error {
	if c.Broker != nil {
		c.Broker.Close()
	}
	return c.Store.Close()
}

func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) Println(args ...interface{}) {
	fmt.Fprintln(c.Out, args...)
}
