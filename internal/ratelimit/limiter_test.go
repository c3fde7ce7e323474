package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time { return f.t }

func newFakeLimiter(cfg Config) (*Limiter, *fakeNow) {
	clock := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	l := New(cfg)
	l.now = clock.now
	return l, clock
}

func TestAllowRefillsOverTime(t *testing.T) {
	t.Parallel()

	l, clock := newFakeLimiter(Config{RequestsPerSecond: 2, Burst: 2})

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))

	clock.t = clock.t.Add(500 * time.Millisecond)
	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))
}

func TestAllowIsPerClient(t *testing.T) {
	t.Parallel()

	l, _ := newFakeLimiter(Config{RequestsPerSecond: 1, Burst: 1})

	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
	require.Equal(t, 2, l.Len())
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	require.False(t, l.Enabled())
	for range 100 {
		require.True(t, l.Allow("a"))
	}
	require.Zero(t, l.Len())
}

func TestIdleBucketsAreSwept(t *testing.T) {
	t.Parallel()

	l, clock := newFakeLimiter(Config{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
	require.Equal(t, 2, l.Len())

	clock.t = clock.t.Add(2 * time.Minute)
	require.True(t, l.Allow("c"))
	require.Equal(t, 1, l.Len())
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	t.Parallel()

	l, _ := newFakeLimiter(Config{RequestsPerSecond: 0.5, Burst: 1})
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/match", nil)
	req.RemoteAddr = "203.0.113.9:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.JSONEq(t, `{"error":"Too many requests."}`, rec.Body.String())
	require.Equal(t, "2", rec.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodGet, "/api/match", nil)
	other.RemoteAddr = "203.0.113.10:5555"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientKey(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	require.Equal(t, "2001:db8::1", ClientKey(req))

	req.RemoteAddr = "unix-socket"
	require.Equal(t, "unix-socket", ClientKey(req))
}
