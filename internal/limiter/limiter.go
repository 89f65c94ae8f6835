// Package limiter 提供认证接口使用的令牌桶限流：Redis 可用时跨实例共享配额，
// 否则退化为进程内限流。
package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LimitResult 限流结果
type LimitResult struct {
	Allowed    bool          `json:"allowed"`     // 是否允许通过
	Limit      int64         `json:"limit"`       // 桶容量
	Remaining  int64         `json:"remaining"`   // 剩余配额
	RetryAfter time.Duration `json:"retry_after"` // 建议重试时间
}

// Limiter 限流器接口
type Limiter interface {
	// Allow 检查是否允许请求通过
	Allow(ctx context.Context, key string) (*LimitResult, error)

	// AllowN 检查是否允许N个请求通过
	AllowN(ctx context.Context, key string, n int64) (*LimitResult, error)

	// Reset 重置限流状态
	Reset(ctx context.Context, key string) error
}

// Store 是令牌桶需要的 Redis 能力，*redis.Client 满足该接口
type Store interface {
	redis.Scripter
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Config 限流配置：每个 Window 补充 Rate 个令牌，桶容量为 Burst
type Config struct {
	Rate      int64         `json:"rate"`
	Window    time.Duration `json:"window"`
	Burst     int64         `json:"burst"`
	KeyPrefix string        `json:"key_prefix"`
}

func (c *Config) normalize() {
	if c.Burst <= 0 {
		c.Burst = c.Rate
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "limiter:tb"
	}
}

// New 创建限流器。client 为 nil 时只使用进程内限流；
// 否则以 Redis 令牌桶为主，Redis 调用失败时改用进程内限流。
func New(client Store, cfg Config, lg *zap.Logger) (Limiter, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	local := NewLocalLimiter(cfg)
	if client == nil {
		return local, nil
	}
	tb, err := NewTokenBucketLimiter(client, cfg)
	if err != nil {
		return nil, err
	}
	return &Failover{primary: tb, secondary: local, logger: lg}, nil
}

// Failover 主限流器出错时使用备用限流器
type Failover struct {
	primary   Limiter
	secondary Limiter
	logger    *zap.Logger
}

// NewFailover 组合主备限流器
func NewFailover(primary, secondary Limiter, lg *zap.Logger) *Failover {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Failover{primary: primary, secondary: secondary, logger: lg}
}

func (f *Failover) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return f.AllowN(ctx, key, 1)
}

func (f *Failover) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	result, err := f.primary.AllowN(ctx, key, n)
	if err == nil {
		return result, nil
	}
	f.logger.Warn("primary limiter failed, using local limiter", zap.String("key", key), zap.Error(err))
	return f.secondary.AllowN(ctx, key, n)
}

// Reset 两个限流器都重置；主限流器的错误会返回
func (f *Failover) Reset(ctx context.Context, key string) error {
	_ = f.secondary.Reset(ctx, key)
	return f.primary.Reset(ctx, key)
}
