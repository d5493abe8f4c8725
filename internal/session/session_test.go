package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umkm/internal/core"
	"umkm/internal/memory"
)

const testSecret = "0123456789abcdef0123"

func newIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	return iss
}

func TestIssuerRoundTrip(t *testing.T) {
	iss := newIssuer(t)

	tok, err := iss.Issue("umkm-1", "warung@example.com")
	require.NoError(t, err)

	id, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, core.ID("umkm-1"), id)
}

func TestIssuerRejects(t *testing.T) {
	iss := newIssuer(t)
	tok, err := iss.Issue("umkm-1", "a@b.c")
	require.NoError(t, err)

	other, err := NewIssuer("another-secret-of-length", time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = iss.Parse("not-a-jwt")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, core.ErrUnauthorized, "expired token must be rejected")

	_, err = iss.Issue("", "a@b.c")
	assert.Error(t, err)

	_, err = NewIssuer("short", time.Hour)
	assert.Error(t, err)
}

func loggedIn(t *testing.T) (*memory.Store, core.LoginResult) {
	t.Helper()
	store := memory.New(nil, newIssuer(t), true)
	ctx := context.Background()
	_, err := store.Register(ctx, core.Registration{
		Name:                 "Warung Sari",
		Email:                "sari@example.com",
		Password:             "rahasia123",
		PasswordConfirmation: "rahasia123",
	})
	require.NoError(t, err)
	res, err := store.Login(ctx, core.Credentials{Email: "sari@example.com", Password: "rahasia123"})
	require.NoError(t, err)
	return store, res
}

func TestManagerBeginResolveEnd(t *testing.T) {
	store, res := loggedIn(t)
	m := NewManager(store, 10, time.Hour)
	ctx := context.Background()

	s, err := m.Begin(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, res.Profile.ID, s.Principal.UMKMID)
	assert.Equal(t, res.Token, s.Principal.Token)
	assert.Equal(t, 1, m.Active())

	got, err := m.Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.Same(t, s, got)

	// A valid token that left the cache is rehydrated from the backend.
	m.Cache().Delete(res.Token)
	assert.Equal(t, 0, m.Active())
	got, err = m.Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "Warung Sari", got.Profile.Name)
	assert.Equal(t, 1, m.Active())

	m.End(res.Token)
	assert.Equal(t, 0, m.Active())
	_, err = m.Resolve(ctx, res.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized, "logged-out token must not be rehydrated")

	// Logging in again with the same token lifts the revocation.
	_, err = m.Begin(ctx, res)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, res.Token)
	assert.NoError(t, err)
}

func TestManagerRevocationSurvivesCacheChurn(t *testing.T) {
	store, a := loggedIn(t)
	ctx := context.Background()
	_, err := store.Register(ctx, core.Registration{
		Name:                 "Toko Budi",
		Email:                "budi@example.com",
		Password:             "rahasia123",
		PasswordConfirmation: "rahasia123",
	})
	require.NoError(t, err)
	b, err := store.Login(ctx, core.Credentials{Email: "budi@example.com", Password: "rahasia123"})
	require.NoError(t, err)
	require.NotEqual(t, a.Token, b.Token)

	m := NewManager(store, 1, time.Hour)
	_, err = m.Begin(ctx, a)
	require.NoError(t, err)
	m.End(a.Token)
	_, err = m.Begin(ctx, b)
	require.NoError(t, err)
	m.End(b.Token)

	_, err = m.Resolve(ctx, a.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized, "first logout must outlive later ones")
	_, err = m.Resolve(ctx, b.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Equal(t, 2, m.Revoked().Size())
}

func TestDenylistExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	d := NewDenylist()
	d.now = func() time.Time { return now }

	d.Add("a", now.Add(time.Hour))
	d.Add("b", now.Add(2*time.Hour))
	assert.True(t, d.Contains("a"))
	assert.False(t, d.Contains("c"))

	// An earlier expiry never shortens an existing entry.
	d.Add("b", now.Add(time.Minute))

	now = now.Add(90 * time.Minute)
	assert.False(t, d.Contains("a"))
	assert.True(t, d.Contains("b"))
	assert.Equal(t, 1, d.Size())

	now = now.Add(time.Hour)
	assert.Equal(t, 1, d.CleanExpired())
	assert.Equal(t, 0, d.Size())

	d.Add("c", now.Add(time.Hour))
	d.Remove("c")
	assert.False(t, d.Contains("c"))
}

func TestManagerResolveUnknownToken(t *testing.T) {
	store, _ := loggedIn(t)
	m := NewManager(store, 10, time.Hour)

	_, err := m.Resolve(context.Background(), "bogus")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = m.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = NewManager(nil, 1, 0).Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestManagerBeginValidates(t *testing.T) {
	m := NewManager(nil, 1, 0)
	_, err := m.Begin(context.Background(), core.LoginResult{})
	assert.Error(t, err)
	_, err = m.Begin(context.Background(), core.LoginResult{Token: "t"})
	assert.Error(t, err)
}

func TestManagerRefresh(t *testing.T) {
	m := NewManager(nil, 10, time.Hour)
	_, err := m.Begin(context.Background(), core.LoginResult{Token: "t", Profile: core.Profile{ID: "u1", Name: "Old"}})
	require.NoError(t, err)

	m.Refresh("t", core.Profile{ID: "u1", Name: "New"})
	s, err := m.Resolve(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "New", s.Profile.Name)
}

func TestContextHelpers(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := &Session{Principal: core.Principal{UMKMID: "u1"}}
	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "from-cookie", TokenFromRequest(r))
}
