// Package router 提供 HTTP 路由设置和中间件配置功能
package router

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/api"
	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/limiter"
	"github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/service"
	"github.com/MorseWayne/storefront/internal/store"
)

// Dependencies 包含路由设置所需的所有依赖
type Dependencies struct {
	Store    store.Store
	Registry *service.Registry
	Catalog  *service.Catalog

	// AuthLimiter 为 nil 时认证接口不限流
	AuthLimiter limiter.Limiter

	// IdempotencyCache 存放下单接口的幂等键
	IdempotencyCache cache.Cache
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	deps   *Dependencies
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由和中间件
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	// 根据环境设置 Gin 模式
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r.engine = gin.New()
	r.deps = deps
	r.logger = lg

	r.setupMiddleware(cfg)
	r.setupRoutes()

	return r.engine
}

// setupMiddleware 设置 Gin 中间件；请求 ID、访问日志、超时由外层 net/http 中间件负责
func (r *GinRouter) setupMiddleware(cfg *config.Config) {
	r.engine.Use(gin.Recovery())
	r.engine.Use(cors.New(corsConfig(cfg.CORS)))
}

// corsConfig 把配置转换为 gin-contrib/cors 配置，"*" 表示允许任意来源
func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:  c.AllowedMethods,
		AllowHeaders:  c.AllowedHeaders,
		ExposeHeaders: []string{middleware.HeaderClientID, middleware.HeaderRequestID, limiter.HeaderRetryAfter},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 || slices.Contains(c.AllowedOrigins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

// setupRoutes 设置所有路由
func (r *GinRouter) setupRoutes() {
	lg := r.logger
	status := api.NewStatusHandler(r.deps.Store, r.deps.Registry)
	catalog := api.NewCatalogHandler(r.deps.Catalog, lg)
	session := api.NewSessionHandler(lg)
	cart := api.NewCartHandler(lg)
	orders := api.NewOrderHandler(lg)

	// 健康检查
	r.engine.GET("/healthz", status.Healthz)

	v1 := r.engine.Group("/api/v1")
	v1.Use(middleware.ClientSession(r.deps.Registry, lg))
	{
		v1.GET("/status", status.Status)
		v1.GET("/home", catalog.Home)
		v1.GET("/categories", catalog.ListCategories)

		// 商品路由（公开，后端不可用时返回静态数据）
		products := v1.Group("/products")
		{
			products.GET("", catalog.ListProducts)
			products.GET("/search", catalog.SearchProducts)
			products.GET("/:id", catalog.GetProduct)
		}

		// 认证路由，登录注册按 IP 限流
		auth := v1.Group("/auth")
		{
			auth.POST("/sign-in", r.authLimit(), session.SignIn)
			auth.POST("/sign-up", r.authLimit(), session.SignUp)
			auth.POST("/sign-out", session.SignOut)
			auth.GET("/session", session.GetSession)
		}

		v1.GET("/profile", session.GetProfile)
		v1.PUT("/profile", session.UpdateProfile)

		cartGroup := v1.Group("/cart")
		{
			cartGroup.GET("", cart.GetCart)
			cartGroup.DELETE("", cart.ClearCart)
			cartGroup.POST("/items", cart.AddItem)
			cartGroup.PUT("/items/:id", cart.UpdateItem)
			cartGroup.DELETE("/items/:id", cart.RemoveItem)
		}

		orderGroup := v1.Group("/orders")
		{
			orderGroup.GET("", orders.ListOrders)
			orderGroup.POST("", r.idempotency(), orders.Checkout)
		}
	}
}

func (r *GinRouter) authLimit() gin.HandlerFunc {
	if r.deps.AuthLimiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return limiter.RateLimitMiddleware(limiter.MiddlewareConfig{
		Limiter:      r.deps.AuthLimiter,
		KeyGenerator: limiter.CombinedKeyGenerator(limiter.PathKeyGenerator, limiter.DefaultKeyGenerator),
		Logger:       r.logger,
	})
}

func (r *GinRouter) idempotency() gin.HandlerFunc {
	return middleware.Idempotency(middleware.DefaultIdempotencyConfig(r.deps.IdempotencyCache, r.logger))
}
