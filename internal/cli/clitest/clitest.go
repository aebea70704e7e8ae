// Package clitest builds command contexts backed by a temporary SQLite
// database and the mock keyring.
package clitest

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gokeyring "github.com/zalando/go-keyring"
	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/keepup/internal/cli"
	"github.com/julianstephens/keepup/internal/config"
	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/session"
	"github.com/julianstephens/keepup/internal/storage/sqlite"
)

const (
	Email    = "ada@example.com"
	Password = "correct horse"
)

// Env is a command context whose output is captured and whose clock is fixed
type Env struct {
	*cli.Context
	Buf    *bytes.Buffer
	Dir    string
	Clock  time.Time
	Sqlite *sqlite.Store
}

// New returns an Env with an initialized store. input feeds the line prompter.
func New(t testing.TB, input string) *Env {
	t.Helper()
	gokeyring.MockInit()

	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, constants.DefaultConfigName))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg.Storage.Backend = constants.BackendSQLite
	cfg.Storage.Path = filepath.Join(dir, constants.DefaultDBName)
	cfg.Timezone = "UTC"

	store := sqlite.NewStore(cfg.Storage.Path)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}

	env := &Env{
		Buf:    &bytes.Buffer{},
		Dir:    dir,
		Clock:  time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC),
		Sqlite: store,
	}
	now := func() time.Time { return env.Clock }

	env.Context = cli.NewContext(context.Background(), cfg, store,
		session.WithBcryptCost(bcrypt.MinCost),
		session.WithClock(now),
	)
	env.Out = env.Buf
	env.Now = now
	env.Prompt = cli.NewLinePrompter(strings.NewReader(input), env.Buf)

	t.Cleanup(func() { env.Close() })
	return env
}

// SignUp creates the default account and signs it in
func (e *Env) SignUp(t testing.TB) *session.Session {
	t.Helper()
	sess, err := e.Sessions.SignUp(e.Ctx, Email, Password)
	if err != nil {
		t.Fatalf("failed to sign up: %v", err)
	}
	e.Buf.Reset()
	return sess
}

// Input replaces the prompter's remaining input
func (e *Env) Input(input string) {
	e.Prompt = cli.NewLinePrompter(strings.NewReader(input), e.Buf)
}

// Output returns and clears the captured output
func (e *Env) Output() string {
	s := e.Buf.String()
	e.Buf.Reset()
	return s
}
