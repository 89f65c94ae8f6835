package limiter

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRedis 在内存中执行与 Lua 脚本相同的令牌桶计算
type fakeRedis struct {
	mu      sync.Mutex
	buckets map[string][2]float64
	keys    []string
	fail    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{buckets: make(map[string][2]float64)}
}

func (f *fakeRedis) run(ctx context.Context, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewCmd(ctx)
	if f.fail != nil {
		cmd.SetErr(f.fail)
		return cmd
	}
	capacity := float64(args[0].(int64))
	rate := float64(args[1].(int64))
	window := float64(args[2].(int64))
	requested := float64(args[3].(int64))
	now := float64(args[4].(int64))

	key := keys[0]
	f.keys = append(f.keys, key)
	tokens, last := capacity, now
	if b, ok := f.buckets[key]; ok {
		tokens, last = b[0], b[1]
	}
	tokens = math.Min(capacity, tokens+math.Max(0, now-last)*rate/window)

	allowed, retry := int64(0), int64(0)
	if tokens >= requested {
		tokens -= requested
		allowed = 1
	} else {
		retry = int64(math.Ceil((requested - tokens) * window / rate))
	}
	f.buckets[key] = [2]float64{tokens, now}
	cmd.SetVal([]interface{}{allowed, int64(math.Floor(tokens)), retry})
	return cmd
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeRedis) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeRedis) EvalRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeRedis) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	cmd := redis.NewBoolSliceCmd(ctx)
	cmd.SetVal(make([]bool, len(hashes)))
	return cmd
}

func (f *fakeRedis) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("sha")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.buckets[k]; ok {
			delete(f.buckets, k)
			n++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(n)
	return cmd
}

func TestNewTokenBucketLimiter(t *testing.T) {
	tests := []struct {
		name       string
		client     Store
		config     Config
		wantErr    bool
		wantPrefix string
	}{
		{
			name:       "valid config",
			client:     newFakeRedis(),
			config:     Config{Rate: 10, Window: time.Minute, Burst: 20, KeyPrefix: "test:tb"},
			wantPrefix: "test:tb",
		},
		{
			name:       "empty key prefix",
			client:     newFakeRedis(),
			config:     Config{Rate: 10, Window: time.Minute, Burst: 20},
			wantPrefix: "limiter:tb",
		},
		{
			name:    "zero rate",
			client:  newFakeRedis(),
			config:  Config{Window: time.Minute},
			wantErr: true,
		},
		{
			name:    "nil client",
			config:  Config{Rate: 10, Window: time.Minute},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb, err := NewTokenBucketLimiter(tt.client, tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrefix, tb.config.KeyPrefix)
		})
	}
}

func TestTokenBucketLimiter_AllowN(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	tb, err := NewTokenBucketLimiter(client, Config{Rate: 2, Window: time.Minute, Burst: 2, KeyPrefix: "test:tb"})
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		result, err := tb.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d", i)
		assert.Equal(t, int64(2), result.Limit)
	}

	result, err := tb.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, 30*time.Second, result.RetryAfter)

	// 其他 key 不受影响
	result, err = tb.Allow(ctx, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	now = now.Add(30 * time.Second)
	result, err = tb.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	assert.Equal(t, "test:tb:ip:1.2.3.4", client.keys[0])
}

func TestTokenBucketLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	tb, err := NewTokenBucketLimiter(client, Config{Rate: 1, Window: time.Minute})
	require.NoError(t, err)

	result, err := tb.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	result, err = tb.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	require.NoError(t, tb.Reset(ctx, "k"))
	result, err = tb.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestFailover_UsesLocalWhenRedisFails(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	client.fail = errors.New("connection refused")

	lim, err := New(client, Config{Rate: 1, Window: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &Failover{}, lim)

	result, err := lim.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = lim.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestNew_WithoutRedis(t *testing.T) {
	lim, err := New(nil, Config{Rate: 5, Window: time.Second}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalLimiter{}, lim)
}
