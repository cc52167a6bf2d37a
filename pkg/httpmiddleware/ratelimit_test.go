package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// frozenLimiter returns a limiter whose clock only moves when the test
// advances it.
func frozenLimiter(cfg RateLimitConfig) (*rateLimiter, *time.Time) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	rl := newRateLimiter(cfg)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func get(h http.Handler, remoteAddr string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	rl, _ := frozenLimiter(RateLimitConfig{Max: 5, Window: time.Minute})
	h := rl.middleware(okHandler())

	for i := range 5 {
		w := get(h, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(4-i), w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	rl, _ := frozenLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	h := rl.middleware(okHandler())

	get(h, "10.0.0.1:1")
	get(h, "10.0.0.1:1")
	w := get(h, "10.0.0.1:1")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":"rate_limited","message":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimit_Refill(t *testing.T) {
	rl, now := frozenLimiter(RateLimitConfig{Max: 1, Window: time.Second})
	h := rl.middleware(okHandler())

	require.Equal(t, http.StatusOK, get(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusTooManyRequests, get(h, "10.0.0.1:1").Code)

	*now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, get(h, "10.0.0.1:1").Code)
}

func TestRateLimit_DifferentClients(t *testing.T) {
	rl, _ := frozenLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	h := rl.middleware(okHandler())

	assert.Equal(t, http.StatusOK, get(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, get(h, "10.0.0.2:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "10.0.0.1:5678").Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	rl, _ := frozenLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	h := rl.middleware(okHandler())

	xff := "203.0.113.50, 70.41.3.18"
	assert.Equal(t, http.StatusOK, get(h, "192.168.1.1:4444", "X-Forwarded-For", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "192.168.1.2:5555", "X-Forwarded-For", xff).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	rl, _ := frozenLimiter(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("Authorization")
		},
	})
	h := rl.middleware(okHandler())

	assert.Equal(t, http.StatusOK, get(h, "1.1.1.1:1", "Authorization", "Bearer a").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "2.2.2.2:1", "Authorization", "Bearer a").Code)
	assert.Equal(t, http.StatusOK, get(h, "1.1.1.1:1", "Authorization", "Bearer b").Code)
}

func TestRateLimit_Evict(t *testing.T) {
	rl, now := frozenLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	h := rl.middleware(okHandler())

	get(h, "10.0.0.1:1")
	*now = now.Add(90 * time.Second)
	get(h, "10.0.0.2:1")

	*now = now.Add(time.Minute)
	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.clients, "10.0.0.1")
	assert.Contains(t, rl.clients, "10.0.0.2")
}
