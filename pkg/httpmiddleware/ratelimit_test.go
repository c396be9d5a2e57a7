package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllow(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	t.Run("within budget", func(t *testing.T) {
		t.Parallel()
		l := newLimiter(RateLimitConfig{Max: 3, Window: time.Minute})

		for i := 0; i < 3; i++ {
			_, _, ok := l.allow("a", base.Add(time.Duration(i)*time.Second))
			require.True(t, ok, "request %d should pass", i)
		}
		_, _, ok := l.allow("a", base.Add(5*time.Second))
		assert.False(t, ok, "fourth request must be rejected")
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()
		l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})

		_, _, ok := l.allow("a", base)
		require.True(t, ok)
		_, _, ok = l.allow("a", base)
		require.False(t, ok)

		_, _, ok = l.allow("b", base)
		assert.True(t, ok, "other key has its own budget")
	})

	t.Run("budget recovers after window", func(t *testing.T) {
		t.Parallel()
		l := newLimiter(RateLimitConfig{Max: 2, Window: time.Minute})

		_, _, ok := l.allow("a", base)
		require.True(t, ok)
		_, _, ok = l.allow("a", base)
		require.True(t, ok)
		_, _, ok = l.allow("a", base)
		require.False(t, ok)

		_, _, ok = l.allow("a", base.Add(2*time.Minute))
		assert.True(t, ok, "fully expired window resets the budget")
	})

	t.Run("previous window weighs into the next", func(t *testing.T) {
		t.Parallel()
		l := newLimiter(RateLimitConfig{Max: 10, Window: time.Minute})

		start := base.Truncate(time.Minute)
		for i := 0; i < 10; i++ {
			_, _, ok := l.allow("a", start.Add(time.Second))
			require.True(t, ok)
		}

		// Just past the boundary most of the previous window still overlaps,
		// so the blended count sits just under the limit: one request fits,
		// the next does not.
		_, _, ok := l.allow("a", start.Add(time.Minute+time.Second))
		assert.True(t, ok)
		_, _, ok = l.allow("a", start.Add(time.Minute+time.Second))
		assert.False(t, ok)
	})
}

func TestLimiterEvictStale(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{Max: 5, Window: time.Minute})

	_, _, _ = l.allow("a", base)
	_, _, _ = l.allow("b", base.Add(90*time.Second))

	l.evictStale(base.Add(2*time.Minute + time.Second))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.windows, "a")
	assert.Contains(t, l.windows, "b")
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	mw := RateLimit(t.Context(), RateLimitConfig{
		Max:    2,
		Window: time.Minute,
		KeyFunc: func(*http.Request) string {
			return "fixed"
		},
	})
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		return rec
	}

	rec := do()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code": 429, "message": "rate limit exceeded"}`, rec.Body.String())
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr",
			remoteAddr: "203.0.113.7:1234",
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4"},
			want:       "198.51.100.4",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.2"},
			want:       "198.51.100.4",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}
