package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucketLimiter 基于 Redis Lua 脚本的令牌桶，多实例共享配额
type TokenBucketLimiter struct {
	client Store
	config Config
	now    func() time.Time
}

// NewTokenBucketLimiter 创建令牌桶限流器
func NewTokenBucketLimiter(client Store, config Config) (*TokenBucketLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Rate <= 0 || config.Window <= 0 {
		return nil, fmt.Errorf("invalid token bucket config: rate=%d window=%s", config.Rate, config.Window)
	}
	config.normalize()
	return &TokenBucketLimiter{client: client, config: config, now: time.Now}, nil
}

// Redis Lua脚本：令牌桶算法，时间单位为毫秒
var tokenBucketScript = redis.NewScript(`
-- KEYS[1]: 令牌桶key
-- ARGV[1]: 容量(burst)
-- ARGV[2]: 每个窗口补充的令牌数(rate)
-- ARGV[3]: 时间窗口(毫秒)
-- ARGV[4]: 请求令牌数
-- ARGV[5]: 当前时间戳(毫秒)

local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * rate / window)

local allowed = 0
local retry_after = 0
if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
else
    retry_after = math.ceil((requested - tokens) * window / rate)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_refill', now)
redis.call('PEXPIRE', key, window * 2)

return {allowed, math.floor(tokens), retry_after}
`)

func (tb *TokenBucketLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", tb.config.KeyPrefix, key)
}

// Allow 检查是否允许请求通过
func (tb *TokenBucketLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return tb.AllowN(ctx, key, 1)
}

// AllowN 检查是否允许N个请求通过
func (tb *TokenBucketLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	values, err := tokenBucketScript.Run(ctx, tb.client,
		[]string{tb.key(key)},
		tb.config.Burst,
		tb.config.Rate,
		tb.config.Window.Milliseconds(),
		n,
		tb.now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run token bucket script: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unexpected token bucket result %v", values)
	}

	return &LimitResult{
		Allowed:    values[0] == 1,
		Limit:      tb.config.Burst,
		Remaining:  values[1],
		RetryAfter: time.Duration(values[2]) * time.Millisecond,
	}, nil
}

// Reset 重置令牌桶
func (tb *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	if err := tb.client.Del(ctx, tb.key(key)).Err(); err != nil {
		return fmt.Errorf("reset token bucket: %w", err)
	}
	return nil
}
