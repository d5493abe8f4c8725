// Package session holds the signed-in UMKM for the lifetime of a token.
//
// A Session is created at login, cached by token, and injected into request
// contexts by the HTTP layer. Tokens that miss the cache (after a restart or
// eviction) are rehydrated through the backend's Authenticator.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"umkm/internal/cache"
	"umkm/internal/core"
	"umkm/internal/ports"
)

// DefaultTTL matches the lifetime of the login cookie.
const DefaultTTL = 7 * 24 * time.Hour

const CookieName = "token"

type Session struct {
	Principal core.Principal
	Profile   core.Profile
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Manager struct {
	auth     ports.Authenticator
	sessions *cache.LRUCache[*Session]
	// revoked keeps logged-out tokens from being rehydrated through the
	// Authenticator until they would have expired.
	revoked *Denylist
	ttl     time.Duration
	now     func() time.Time
}

func NewManager(auth ports.Authenticator, size int, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		auth:     auth,
		sessions: cache.NewLRUCache[*Session](size, ttl),
		revoked:  NewDenylist(),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Cache exposes the session cache to the cache manager.
func (m *Manager) Cache() *cache.LRUCache[*Session] {
	return m.sessions
}

// Revoked exposes the logout list to the cache manager.
func (m *Manager) Revoked() *Denylist {
	return m.revoked
}

func (m *Manager) Active() int {
	return m.sessions.Size()
}

// TTL is how long a session, and its cookie, stays valid.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Begin records a successful login.
func (m *Manager) Begin(ctx context.Context, res core.LoginResult) (*Session, error) {
	if res.Token == "" {
		return nil, errors.New("login result carries no token")
	}
	if res.Profile.ID.IsZero() {
		return nil, errors.New("login result carries no profile id")
	}
	s := m.newSession(res.Token, res.Profile)
	m.revoked.Remove(res.Token)
	m.sessions.Set(res.Token, s)
	slog.InfoContext(ctx, "Session started", "umkm_id", res.Profile.ID)
	return s, nil
}

// Resolve returns the session for token, asking the Authenticator when it
// is not cached. Unknown or rejected tokens yield core.ErrUnauthorized.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, core.ErrUnauthorized
	}
	if m.revoked.Contains(token) {
		return nil, core.ErrUnauthorized
	}
	if s, ok := m.sessions.Get(token); ok && !s.Expired(m.now()) {
		return s, nil
	}
	if m.auth == nil {
		return nil, core.ErrUnauthorized
	}

	profile, err := m.auth.Me(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) || errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrUnauthorized
		}
		return nil, fmt.Errorf("rehydrate session: %w", err)
	}
	s := m.newSession(token, profile)
	m.sessions.Set(token, s)
	slog.DebugContext(ctx, "Session rehydrated", "umkm_id", profile.ID)
	return s, nil
}

// Refresh replaces the cached profile, e.g. after a profile update.
func (m *Manager) Refresh(token string, profile core.Profile) {
	m.sessions.Update(token, func(s *Session) *Session {
		next := *s
		next.Profile = profile
		return &next
	})
}

// End logs token out. It stays rejected for the rest of its lifetime.
func (m *Manager) End(token string) {
	m.sessions.Delete(token)
	if token != "" {
		m.revoked.Add(token, m.now().Add(m.ttl))
	}
}

func (m *Manager) newSession(token string, profile core.Profile) *Session {
	now := m.now()
	return &Session{
		Principal: core.Principal{UMKMID: profile.ID, Token: token},
		Profile:   profile,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
}

type contextKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
