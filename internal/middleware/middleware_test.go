package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	return r
}

func TestRequestIDGenerated(t *testing.T) {
	r := newEngine(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestRequestIDEchoed(t *testing.T) {
	r := newEngine(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	r := newEngine(RequestID(), Recovery(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"Internal server error"}`, w.Body.String())
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(RequestID(), Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zap.InfoLevel, entries[0].Level)
		assert.Equal(t, "/ok", entries[0].ContextMap()["path"])
		assert.Equal(t, zap.ErrorLevel, entries[1].Level)
		assert.EqualValues(t, 500, entries[1].ContextMap()["status"])
	}
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(1, 1, time.Minute, zap.NewNop()))
	r.POST("/chat", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("192.0.2.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:1234"))
	assert.Equal(t, http.StatusOK, send("192.0.2.2:1234"))
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	rl := NewRateLimiter(1, 1, time.Minute)
	rl.now = func() time.Time { return now }
	rl.lastSweep = base

	assert.True(t, rl.Allow("192.0.2.1"))
	assert.True(t, rl.Allow("192.0.2.2"))
	assert.Equal(t, 2, rl.Len())

	now = base.Add(30 * time.Second)
	assert.False(t, rl.Allow("192.0.2.2"))

	now = base.Add(61 * time.Second)
	assert.True(t, rl.Allow("192.0.2.3"))
	assert.Equal(t, 2, rl.Len())
	assert.NotContains(t, rl.buckets, "192.0.2.1")
	assert.Contains(t, rl.buckets, "192.0.2.2")
}

func TestRateLimiterKeepsBucketsWithoutTTL(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	rl := NewRateLimiter(60, 1, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("192.0.2.1")
	now = base.Add(24 * time.Hour)
	rl.Allow("192.0.2.2")
	assert.Equal(t, 2, rl.Len())
}
