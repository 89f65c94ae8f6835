package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/database"
	"github.com/MorseWayne/storefront/internal/limiter"
	"github.com/MorseWayne/storefront/internal/logger"
	mw "github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/repo"
	"github.com/MorseWayne/storefront/internal/router"
	"github.com/MorseWayne/storefront/internal/service"
	"github.com/MorseWayne/storefront/internal/store"
	"github.com/MorseWayne/storefront/internal/supabase"
	"github.com/MorseWayne/storefront/internal/token"
)

// resources 需要在退出时释放的资源
type resources struct {
	closers []func() error
}

func (r *resources) add(fn func() error) {
	r.closers = append(r.closers, fn)
}

// Close 逆序释放，汇总全部错误
func (r *resources) Close() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i]())
	}
	return err
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, lg, nil
}

// initCache 初始化缓存实例；Redis 不可用时退化为内存缓存。
// 返回的 Redis 客户端可能为 nil，限流器据此决定是否跨实例共享配额。
func initCache(ctx context.Context, cfg *config.Config, res *resources, lg *zap.Logger) (cache.Cache, *redis.Client) {
	if !cfg.Cache.Enabled {
		lg.Sugar().Infow("cache disabled")
		return cache.NewNullCache(), nil
	}

	if cfg.Cache.Type == "redis" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err == nil {
			res.add(client.Close)
			lg.Sugar().Infow("cache enabled", "type", "redis", "addr", cfg.RedisAddr(), "ttl", cfg.Cache.TTL)
			return cache.NewRedisCache(client, cfg.App.Name+":"), client
		}
		lg.Sugar().Warnw("failed to connect to Redis, falling back to memory cache", "error", err)
	}

	lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
	return cache.NewMemoryCache(), nil
}

// initBackend 按配置选择数据后端；返回 nil 表示使用内置静态数据
func initBackend(ctx context.Context, cfg *config.Config, c cache.Cache, res *resources, lg *zap.Logger) store.Backend {
	if !cfg.Backend.IsConfigured() {
		lg.Sugar().Warnw("backend not configured", "driver", cfg.Backend.Driver)
		return nil
	}

	var backend store.Backend
	switch cfg.Backend.Driver {
	case config.DriverMySQL:
		db, err := database.New(ctx, cfg.Database, lg)
		if err != nil {
			lg.Sugar().Errorw("database unavailable, serving bundled catalog", "error", err)
			return nil
		}
		res.add(db.Close)

		lg.Sugar().Infow("using migrations directory", "path", cfg.Migrations.Dir)
		if err := db.RunMigrations(cfg.Migrations.Dir); err != nil {
			lg.Sugar().Errorw("database migration failed, serving bundled catalog", "error", err)
			return nil
		}

		revoked := cache.OrMemory(c)
		tokens := token.NewService(token.Config{
			Secret:     cfg.JWT.Secret,
			Issuer:     cfg.App.Name,
			AccessTTL:  cfg.JWT.AccessTokenTTL,
			RefreshTTL: cfg.JWT.RefreshTokenTTL,
		}, revoked, lg)
		backend = repo.NewDriver(db.DB, tokens, lg)

	default:
		backend = supabase.New(supabase.Config{
			URL:     cfg.Backend.URL,
			AnonKey: cfg.Backend.AnonKey,
			Timeout: cfg.Backend.Timeout,
		}, lg)
	}

	if cfg.Cache.Enabled {
		backend = store.NewCachedBackend(backend, c, cfg.Cache.TTL, lg)
	}
	return backend
}

// initLimiter 认证接口限流器；禁用时返回 nil
func initLimiter(cfg *config.Config, client *redis.Client, lg *zap.Logger) limiter.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	var shared limiter.Store
	if client != nil {
		shared = client
	}
	l, err := limiter.New(shared, limiter.Config{
		Rate:      cfg.RateLimit.Rate,
		Window:    cfg.RateLimit.Window,
		Burst:     cfg.RateLimit.Burst,
		KeyPrefix: cfg.App.Name + ":ratelimit",
	}, lg)
	if err != nil {
		lg.Sugar().Warnw("rate limiter disabled", "error", err)
		return nil
	}
	return l
}

// buildHandler 组装 gin 路由并套上 net/http 中间件链
func buildHandler(cfg *config.Config, deps *router.Dependencies, lg *zap.Logger) http.Handler {
	handler := router.New().Setup(cfg, deps, lg)

	// 请求进入时执行顺序为 request ID → access log → recovery → timeout
	handler = mw.Timeout(cfg.App.RequestTimeout)(handler)
	handler = mw.Recovery(lg)(handler)
	handler = mw.AccessLog(lg)(handler)
	handler = mw.RequestID(handler)
	return handler
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) error {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	lg.Sugar().Infow("server exited")
	return nil
}

func main() {
	// 1) 加载配置和初始化日志
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx := context.Background()
	res := &resources{}

	// 2) 缓存与后端；没有可用后端时外观层进入降级模式
	c, redisClient := initCache(ctx, cfg, res, lg)
	st := store.New(initBackend(ctx, cfg, c, res, lg), lg)

	// 3) 用例层与路由
	registry := service.NewRegistry(st, cfg.Session.IdleTTL, lg)
	deps := &router.Dependencies{
		Store:            st,
		Registry:         registry,
		Catalog:          service.NewCatalog(st, lg),
		AuthLimiter:      initLimiter(cfg, redisClient, lg),
		IdempotencyCache: c,
	}

	// 4) 启动 HTTP 服务器
	serveErr := startServer(cfg, buildHandler(cfg, deps, lg), lg)
	if err := multierr.Append(serveErr, res.Close()); err != nil {
		lg.Sugar().Errorw("server stopped with errors", "errors", multierr.Errors(err))
		os.Exit(1)
	}
}
