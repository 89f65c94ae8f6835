package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/resp"
)

// HeaderIdempotencyKey 幂等键请求头
const HeaderIdempotencyKey = "X-Idempotency-Key"

// IdempotencyConfig 幂等性中间件配置
type IdempotencyConfig struct {
	// 幂等键存储，多实例部署时应为 Redis
	Cache cache.Cache

	// 跳过的请求方法
	SkipMethods []string

	// 幂等键保留时间
	TTL time.Duration

	Logger *zap.Logger
}

// DefaultIdempotencyConfig 默认幂等性配置
func DefaultIdempotencyConfig(c cache.Cache, lg *zap.Logger) IdempotencyConfig {
	return IdempotencyConfig{
		Cache:       c,
		SkipMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		TTL:         24 * time.Hour,
		Logger:      lg,
	}
}

// Idempotency 拒绝同一客户端携带相同 X-Idempotency-Key 的重复写请求。
// 未携带幂等键的请求直接放行；处理失败（状态码 >= 400）时释放幂等键以便重试。
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	// 缓存被禁用时仍要去重，退化为单实例内存存储
	cfg.Cache = cache.OrMemory(cfg.Cache)

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipMethods, c.Request.Method) {
			c.Next()
			return
		}
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		reqID := RequestIDFromContext(ctx)
		cacheKey := idempotencyCacheKey(c, key)

		ok, err := cfg.Cache.SetNX(ctx, cacheKey, reqID, cfg.TTL)
		if err != nil {
			cfg.Logger.Warn("idempotency check unavailable", zap.String("request_id", reqID), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			resp.Error(c.Writer, http.StatusConflict, resp.CodeConflict, "重复请求", reqID, TraceIDFromContext(c.Request.Context()))
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := cfg.Cache.Del(ctx, cacheKey); err != nil {
				cfg.Logger.Warn("release idempotency key failed", zap.String("request_id", reqID), zap.Error(err))
			}
		}
	}
}

// idempotencyCacheKey 幂等键按客户端、方法、路径隔离
func idempotencyCacheKey(c *gin.Context, key string) string {
	clientID := c.GetHeader(HeaderClientID)
	if client := ClientFromContext(c); client != nil {
		clientID = client.ID
	}
	sum := sha256.Sum256([]byte(clientID + "|" + c.Request.Method + "|" + c.FullPath() + "|" + key))
	return "idem:" + hex.EncodeToString(sum[:16])
}
