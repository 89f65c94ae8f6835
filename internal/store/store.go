// Package store 是视图层与数据后端之间唯一的数据访问外观。
//
// 构造时只做一次能力检查：没有可用后端时使用内置静态数据的降级实现，
// 否则使用在线实现。两种实现满足同一个 Store 接口。
package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
)

// Mode 外观当前的工作模式
type Mode string

const (
	ModeLive     Mode = "live"     // 连接真实后端
	ModeFallback Mode = "fallback" // 后端未配置，只读静态数据
)

// Status 外观诊断信息
type Status struct {
	Mode               Mode      `json:"mode"`
	Backend            string    `json:"backend,omitempty"`
	Reachable          bool      `json:"reachable"`
	Error              string    `json:"error,omitempty"`
	FallbackProducts   int       `json:"fallback_products"`
	FallbackCategories int       `json:"fallback_categories"`
	CheckedAt          time.Time `json:"checked_at"`
}

// Store 数据访问外观
type Store interface {
	Mode() Mode
	Status(ctx context.Context) Status

	// 商品目录，读路径在后端故障时降级为静态数据
	ListProducts(ctx context.Context, categoryID *int64) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error)
	// LookupProduct 供写路径校验库存：绕过目录缓存，后端故障时返回 ServiceError 而不降级
	LookupProduct(ctx context.Context, id int64) (*domain.Product, error)

	// 购物车
	GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error)
	AddToCart(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartItem, error)
	UpdateCartItem(ctx context.Context, userID string, itemID int64, quantity int) (*domain.CartItem, error)
	RemoveFromCart(ctx context.Context, userID string, itemID int64) error
	ClearCart(ctx context.Context, userID string) error

	// 个人资料；GetProfile 在没有资料行时返回 (nil, nil)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error)

	// 订单
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	CreateOrder(ctx context.Context, userID string, draft domain.OrderDraft) (*domain.Order, error)

	// 认证
	SignIn(ctx context.Context, email, password string) (*domain.Identity, error)
	SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, error)
	SignOut(ctx context.Context, identity *domain.Identity) error

	// SeedCatalog 按名称/SKU 去重写入示例目录
	SeedCatalog(ctx context.Context, categories []domain.Category, products []domain.Product) (int, int, error)
}

// CatalogBackend 商品目录后端
type CatalogBackend interface {
	ListProducts(ctx context.Context, categoryID *int64) ([]domain.Product, error)
	// GetProduct 不存在时返回 *domain.NotFoundError
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error)
	// UpsertCategories 以 name 为冲突键
	UpsertCategories(ctx context.Context, categories []domain.Category) ([]domain.Category, error)
	// UpsertProducts 以 sku 为冲突键
	UpsertProducts(ctx context.Context, products []domain.Product) ([]domain.Product, error)
}

// CartBackend 购物车后端
type CartBackend interface {
	GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error)
	// UpsertCartItem 以 (user_id, product_id) 为冲突键，返回写入后的行
	UpsertCartItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartItem, error)
	UpdateCartItem(ctx context.Context, userID string, itemID int64, quantity int) (*domain.CartItem, error)
	DeleteCartItem(ctx context.Context, userID string, itemID int64) error
	ClearCart(ctx context.Context, userID string) error
}

// ProfileBackend 个人资料后端
type ProfileBackend interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error)
}

// OrderBackend 订单后端
type OrderBackend interface {
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	// InsertOrder 写入订单头与明细，返回带 ID 的订单
	InsertOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
}

// AuthBackend 认证后端
type AuthBackend interface {
	SignIn(ctx context.Context, email, password string) (*domain.Identity, error)
	SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Backend 是后端驱动需要实现的全部能力
type Backend interface {
	CatalogBackend
	CartBackend
	ProfileBackend
	OrderBackend
	AuthBackend

	Name() string
	Ping(ctx context.Context) error
}

// New 根据后端是否可用选择实现；backend 为 nil 时进入降级模式
func New(backend Backend, lg *zap.Logger) Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	if backend == nil {
		lg.Warn("backend not configured, serving bundled catalog", zap.String("mode", string(ModeFallback)))
		return newFallbackStore()
	}
	lg.Info("data backend enabled", zap.String("backend", backend.Name()), zap.String("mode", string(ModeLive)))
	return newLiveStore(backend, lg)
}

type accessTokenKey struct{}

// WithAccessToken 将当前用户的访问令牌放入上下文，供后端驱动以用户身份发起请求
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

type freshReadKey struct{}

// WithFreshRead 标记本次读取必须直达后端，不使用目录缓存
func WithFreshRead(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshReadKey{}, true)
}

func isFreshRead(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshReadKey{}).(bool)
	return fresh
}

// AccessTokenFrom 从上下文读取访问令牌
func AccessTokenFrom(ctx context.Context) string {
	if v, ok := ctx.Value(accessTokenKey{}).(string); ok {
		return v
	}
	return ""
}
