package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflux-query-api/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingLimiter struct {
	limit int
	seen  map[string]int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.seen[key]++
	return l.seen[key] <= l.limit, nil
}

func keyOf(ip, route string) string { return ip + "|" + route }

func serve(e *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	limiter := &countingLimiter{limit: 2, seen: map[string]int{}}
	e := gin.New()
	e.Use(RateLimit(config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute}, limiter, keyOf))
	e.GET("/api/v1/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(e, "/api/v1/stats").Code)
	assert.Equal(t, http.StatusOK, serve(e, "/api/v1/stats").Code)

	w := serve(e, "/api/v1/stats")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Len(t, limiter.seen, 1)
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: assert.AnError}
	e := gin.New()
	e.Use(RateLimit(config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Second}, limiter, keyOf))
	e.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(e, "/x").Code)
}

func TestRecoveryReturnsStructuredError(t *testing.T) {
	e := gin.New()
	e.Use(Recovery())
	e.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(e, "/boom")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"internal server error"`)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRequestIDEchoesHeader(t *testing.T) {
	e := gin.New()
	e.Use(RequestID())
	e.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-1", w.Body.String())

	w = serve(e, "/x")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestTimeoutSetsDeadline(t *testing.T) {
	e := gin.New()
	e.Use(Timeout(50 * time.Millisecond))
	e.GET("/x", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		if ok {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusTeapot)
	})

	assert.Equal(t, http.StatusOK, serve(e, "/x").Code)
}
