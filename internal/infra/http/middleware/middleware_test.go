package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1", "X-Real-IP": "10.9.9.9"}, "127.0.0.1:5000", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2", "CF-Connecting-IP": "1.1.1.1"}, "127.0.0.1:5000", "198.51.100.2"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Client-IP": "2.2.2.2"}, "127.0.0.1:5000", "1.1.1.1"},
		{"client ip header", map[string]string{"X-Client-IP": "2.2.2.2"}, "127.0.0.1:5000", "2.2.2.2"},
		{"remote addr", nil, "192.0.2.10:41234", "192.0.2.10"},
		{"remote addr without port", nil, "192.0.2.11", "192.0.2.11"},
		{"nothing", nil, "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/lead", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestWithClientInfo_ParsesUserAgent(t *testing.T) {
	var got ClientInfo
	h := WithClientInfo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientInfoFrom(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "203.0.113.7", got.IP)
	assert.Equal(t, "Safari", got.Browser)
	assert.True(t, got.Mobile)
	assert.False(t, got.Bot)
}

func TestClientInfoFrom_WithoutMiddleware(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "unknown", ClientInfoFrom(r.Context()).IP)
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	h := WithClientInfo(rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	send := func(ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/event", nil)
		r.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("1.1.1.1").Code)
	}

	rec := send("1.1.1.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, rateLimitMessage, body["message"])

	// Other clients are unaffected.
	assert.Equal(t, http.StatusOK, send("2.2.2.2").Code)
}

func TestRateLimiter_RefillsOverWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("ip"))
	assert.True(t, rl.Allow("ip"))
	assert.False(t, rl.Allow("ip"))

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("ip"))
	assert.False(t, rl.Allow("ip"))
}

func TestRateLimiter_CleanupEvictsIdle(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(50 * time.Second)
	rl.Allow("recent")
	now = now.Add(20 * time.Second)

	rl.cleanup()
	assert.Equal(t, 1, rl.Len())
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := WithClientInfo(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
