package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound indicates the provided token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session has expired and cannot be used.
	ErrSessionExpired = errors.New("session expired")
)

// CookieName is the browser cookie carrying the session token.
const CookieName = "moviehub_session"

// SessionStore persists issued sessions so they survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

// ExpiredSessionDeleter is implemented by stores that can purge stale sessions
// in bulk.
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Session is an opaque browser session bound to a user.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Manager manages the lifecycle of cookie sessions backed by a persistent store.
type Manager struct {
	ttl   time.Duration
	store SessionStore
	now   func() time.Time
}

// NewManager constructs a Manager issuing sessions that live for ttl.
func NewManager(ttl time.Duration, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Manager{ttl: ttl, store: store, now: time.Now}
}

// WithNowFunc overrides the clock, for tests.
func (m *Manager) WithNowFunc(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TTL reports how long issued sessions live.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a new session for the provided user identifier.
func (m *Manager) Issue(ctx context.Context, userID string) (Session, error) {
	if userID == "" {
		return Session{}, errors.New("user id must be provided")
	}

	token, err := randomToken()
	if err != nil {
		return Session{}, err
	}

	session := Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: m.now().UTC().Add(m.ttl),
	}
	if err := m.store.Save(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Resolve returns the live session for token. Expired sessions are deleted.
func (m *Manager) Resolve(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, token)
	if err != nil {
		return Session{}, err
	}

	if m.now().UTC().After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, token)
		return Session{}, ErrSessionExpired
	}
	return session, nil
}

// Refresh rotates the token of a live session, for example after login.
func (m *Manager) Refresh(ctx context.Context, token string) (Session, error) {
	session, err := m.Resolve(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return Session{}, err
	}
	return m.Issue(ctx, session.UserID)
}

// Revoke removes the session from the store.
func (m *Manager) Revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}
	_ = m.store.Delete(ctx, token)
}

// PurgeExpired drops every expired session when the store supports it and
// reports how many were removed.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	deleter, ok := m.store.(ExpiredSessionDeleter)
	if !ok {
		return 0, nil
	}
	return deleter.DeleteExpired(ctx, m.now().UTC())
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
