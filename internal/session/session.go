// Package session signs users in and out and persists the active session.
// A Session value is obtained from SignUp, SignIn or Resume and passed
// explicitly to everything that acts on the user's behalf.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/keepup/internal/constants"
	apperrors "github.com/julianstephens/keepup/internal/errors"
	"github.com/julianstephens/keepup/internal/keyring"
	"github.com/julianstephens/keepup/internal/logger"
	"github.com/julianstephens/keepup/internal/models"
	"github.com/julianstephens/keepup/internal/storage"
	"github.com/julianstephens/keepup/internal/validation"
)

var (
	// ErrNoSession is returned when nobody is signed in or the session ended
	ErrNoSession = apperrors.ErrNotSignedIn
	// ErrInvalidCredentials is returned when the email or password is wrong
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
)

// Session is an authenticated user plus the stored session record
type Session struct {
	User   models.User
	Record models.SessionRecord
}

// UserID returns the signed-in user's ID
func (s *Session) UserID() string {
	return s.User.ID
}

// TokenStore persists the raw session token on this machine
type TokenStore interface {
	Get() (string, error)
	Set(token string) error
	Delete() error
}

type keyringTokens struct{}

func (keyringTokens) Get() (string, error) { return keyring.GetSessionToken() }
func (keyringTokens) Set(t string) error   { return keyring.SetSessionToken(t) }
func (keyringTokens) Delete() error        { return keyring.DeleteSessionToken() }

// Manager creates, restores and ends sessions against a store
type Manager struct {
	store  storage.Provider
	tokens TokenStore
	ttl    time.Duration
	now    func() time.Time
	cost   int
}

// Option configures a Manager
type Option func(*Manager)

// WithTokenStore replaces the OS keyring token store
func WithTokenStore(ts TokenStore) Option {
	return func(m *Manager) { m.tokens = ts }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithBcryptCost sets the password hashing cost
func WithBcryptCost(cost int) Option {
	return func(m *Manager) { m.cost = cost }
}

func NewManager(store storage.Provider, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = constants.DefaultSessionTTL
	}
	m := &Manager{
		store:  store,
		tokens: keyringTokens{},
		ttl:    ttl,
		now:    time.Now,
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SignUp creates an account and signs it in
func (m *Manager) SignUp(ctx context.Context, email, password string) (*Session, error) {
	creds, err := validation.Credential(validation.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        creds.Email,
		PasswordHash: string(hash),
		CreatedAt:    m.now(),
	}
	if err := m.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	logger.Info("Account created", "user", user.ID)

	return m.start(ctx, user)
}

// SignIn verifies credentials and starts a new session
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	creds, err := validation.Credential(validation.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	user, err := m.store.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		logger.Warn("Failed sign-in attempt", "user", user.ID)
		return nil, ErrInvalidCredentials
	}

	return m.start(ctx, user)
}

func (m *Manager) start(ctx context.Context, user models.User) (*Session, error) {
	if n, err := m.store.DeleteExpiredSessions(ctx, m.now()); err != nil {
		logger.Warn("Failed to prune expired sessions", "error", err)
	} else if n > 0 {
		logger.Debug("Pruned expired sessions", "count", n)
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	rec := models.SessionRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, rec); err != nil {
		return nil, err
	}
	if err := m.tokens.Set(token); err != nil {
		_ = m.store.DeleteSession(ctx, rec.ID)
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	logger.Info("Signed in", "user", user.ID, "session", rec.ID)
	return &Session{User: user, Record: rec}, nil
}

// Resume restores the session persisted on this machine. It returns
// ErrNoSession when there is none or it has expired or been revoked.
func (m *Manager) Resume(ctx context.Context) (*Session, error) {
	token, err := m.tokens.Get()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	rec, err := m.store.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.forget()
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if rec.Expired(m.now()) {
		logger.Info("Session expired", "session", rec.ID)
		if err := m.store.DeleteSession(ctx, rec.ID); err != nil {
			logger.Warn("Failed to delete expired session", "error", err)
		}
		m.forget()
		return nil, ErrNoSession
	}

	user, err := m.store.GetUser(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.forget()
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return &Session{User: user, Record: rec}, nil
}

// SignOut ends the session in the store and on this machine
func (m *Manager) SignOut(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrNoSession
	}
	if err := m.store.DeleteSession(ctx, s.Record.ID); err != nil {
		return err
	}
	m.forget()
	logger.Info("Signed out", "user", s.User.ID)
	return nil
}

func (m *Manager) forget() {
	if err := m.tokens.Delete(); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		logger.Warn("Failed to clear session token", "error", err)
	}
}

func newToken() (string, error) {
	b := make([]byte, constants.SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
