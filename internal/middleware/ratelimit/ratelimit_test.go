package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute})
	t.Cleanup(rl.Stop)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestAllowWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 2)

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "clients are limited independently")
	assert.Equal(t, int64(1), rl.Hits())

	*clock = clock.Add(20 * time.Second)
	assert.Equal(t, 40, rl.RetryAfter("1.1.1.1"))

	*clock = clock.Add(41 * time.Second)
	assert.True(t, rl.Allow("1.1.1.1"), "window resets after a minute")
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, clock := newTestLimiter(t, 5)
	rl.Allow("1.1.1.1")
	*clock = clock.Add(11 * time.Minute)
	rl.Allow("2.2.2.2")

	rl.cleanupStaleEntries()
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestDefaultsForNonPositive(t *testing.T) {
	rl := NewLimiter(Config{})
	defer rl.Stop()
	assert.Equal(t, DefaultConfig().RequestsPerMinute, rl.requestsPerMinute)
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	ip := func(*http.Request) string { return "1.1.1.1" }
	var limited int
	h := rl.Middleware(ip, false, func(w http.ResponseWriter, r *http.Request) {
		limited++
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/incomes", nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPost).Code)
	rec := do(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do(http.MethodGet).Code, "reads are not limited")
	assert.Equal(t, 1, limited)
}
