package limiter

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/resp"
)

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	// 限流器
	Limiter Limiter

	// Key生成函数
	KeyGenerator func(*gin.Context) string

	// 限流器出错时的处理，默认放行
	ErrorHandler func(*gin.Context, error)

	// 限流回调函数
	OnLimitReached func(*gin.Context, *LimitResult)

	// 是否跳过限流检查
	Skip func(*gin.Context) bool

	// 单次检查超时
	Timeout time.Duration

	Logger *zap.Logger
}

// 限流相关响应头
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
)

// DefaultKeyGenerator 默认Key生成器（基于IP）
func DefaultKeyGenerator(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// PathKeyGenerator 路径Key生成器
func PathKeyGenerator(c *gin.Context) string {
	return fmt.Sprintf("path:%s:%s", c.Request.Method, c.FullPath())
}

// CombinedKeyGenerator 组合Key生成器
func CombinedKeyGenerator(generators ...func(*gin.Context) string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		parts := make([]string, 0, len(generators))
		for _, gen := range generators {
			parts = append(parts, gen(c))
		}
		return strings.Join(parts, ":")
	}
}

// RateLimitMiddleware 创建限流中间件
func RateLimitMiddleware(config MiddlewareConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.KeyGenerator == nil {
		config.KeyGenerator = DefaultKeyGenerator
	}
	if config.ErrorHandler == nil {
		lg := config.Logger
		config.ErrorHandler = func(c *gin.Context, err error) {
			lg.Warn("rate limiter unavailable, request allowed",
				zap.String("request_id", middleware.RequestIDFromContext(c.Request.Context())),
				zap.Error(err))
			c.Next()
		}
	}
	if config.OnLimitReached == nil {
		config.OnLimitReached = defaultOnLimitReached
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Second
	}

	return func(c *gin.Context) {
		if config.Skip != nil && config.Skip(c) {
			c.Next()
			return
		}

		key := config.KeyGenerator(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		result, err := config.Limiter.Allow(ctx, key)
		cancel()
		if err != nil {
			config.ErrorHandler(c, err)
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			config.OnLimitReached(c, result)
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders 设置限流相关的响应头
func setRateLimitHeaders(c *gin.Context, result *LimitResult) {
	c.Header(HeaderLimit, strconv.FormatInt(result.Limit, 10))
	c.Header(HeaderRemaining, strconv.FormatInt(result.Remaining, 10))
	if result.RetryAfter > 0 {
		seconds := int64(math.Ceil(result.RetryAfter.Seconds()))
		c.Header(HeaderRetryAfter, strconv.FormatInt(seconds, 10))
	}
}

// defaultOnLimitReached 默认限流回调
func defaultOnLimitReached(c *gin.Context, _ *LimitResult) {
	reqID := middleware.RequestIDFromContext(c.Request.Context())
	resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeTooManyRequests,
		"请求过于频繁，请稍后重试", reqID, middleware.TraceIDFromContext(c.Request.Context()))
	c.Abort()
}
