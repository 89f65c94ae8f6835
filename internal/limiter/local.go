package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter 进程内令牌桶，每个 key 一个 rate.Limiter，空闲的 key 定期清理
type LocalLimiter struct {
	config Config
	limit  rate.Limit
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]*localEntry
	lastSweep time.Time
}

// NewLocalLimiter 创建进程内限流器
func NewLocalLimiter(config Config) *LocalLimiter {
	config.normalize()
	limit := rate.Inf
	if config.Rate > 0 && config.Window > 0 {
		limit = rate.Limit(float64(config.Rate) / config.Window.Seconds())
	}
	return &LocalLimiter{
		config:  config,
		limit:   limit,
		now:     time.Now,
		entries: make(map[string]*localEntry),
	}
}

func (l *LocalLimiter) entry(key string, now time.Time) *localEntry {
	if now.Sub(l.lastSweep) > l.config.Window {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > 2*l.config.Window {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(l.limit, int(l.config.Burst))}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return l.AllowN(ctx, key, 1)
}

func (l *LocalLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	lim := l.entry(key, now).limiter
	result := &LimitResult{Limit: l.config.Burst}
	if lim.AllowN(now, int(n)) {
		result.Allowed = true
	} else if l.limit != rate.Inf && l.limit > 0 {
		missing := float64(n) - lim.TokensAt(now)
		result.RetryAfter = time.Duration(missing / float64(l.limit) * float64(time.Second))
	}
	if tokens := lim.TokensAt(now); tokens > 0 {
		result.Remaining = int64(tokens)
	}
	return result, nil
}

func (l *LocalLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// Len 当前跟踪的 key 数量
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
