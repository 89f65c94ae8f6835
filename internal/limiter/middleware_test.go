package limiter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorseWayne/storefront/internal/resp"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return nil, errors.New("redis down")
}

func (brokenLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	return nil, errors.New("redis down")
}

func (brokenLimiter) Reset(ctx context.Context, key string) error { return nil }

func newLimitedRouter(l Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/sign-in", RateLimitMiddleware(MiddlewareConfig{
		Limiter:      l,
		KeyGenerator: CombinedKeyGenerator(PathKeyGenerator, DefaultKeyGenerator),
	}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newLimitedRouter(NewLocalLimiter(Config{Rate: 1, Window: time.Hour}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get(HeaderLimit))
	assert.Equal(t, "0", w.Header().Get(HeaderRemaining))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRetryAfter))

	var body resp.Response[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, resp.CodeTooManyRequests, body.Code)
}

func TestRateLimitMiddleware_LimiterErrorAllowsRequest(t *testing.T) {
	r := newLimitedRouter(brokenLimiter{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_Skip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RateLimitMiddleware(MiddlewareConfig{
		Limiter: NewLocalLimiter(Config{Rate: 1, Window: time.Hour}),
		Skip:    func(c *gin.Context) bool { return c.GetHeader("X-Internal") == "1" },
	}), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Internal", "1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
