package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/domain"
)

const catalogGenerationKey = "catalog:generation"

// CachedBackend 给后端的目录读取加缓存，其余能力直接透传。
// 目录键带代数前缀，写入目录时递增代数使旧键整体失效。
type CachedBackend struct {
	Backend
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedBackend 创建带缓存的后端
func NewCachedBackend(backend Backend, c cache.Cache, ttl time.Duration, lg *zap.Logger) *CachedBackend {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &CachedBackend{Backend: backend, cache: c, ttl: ttl, logger: lg}
}

func (b *CachedBackend) generation(ctx context.Context) int64 {
	var gen int64
	if err := b.cache.Get(ctx, catalogGenerationKey, &gen); err != nil {
		return 0
	}
	return gen
}

func (b *CachedBackend) key(ctx context.Context, format string, args ...any) string {
	return fmt.Sprintf("catalog:v%d:", b.generation(ctx)) + fmt.Sprintf(format, args...)
}

func (b *CachedBackend) remember(ctx context.Context, key string, value any) {
	if err := b.cache.Set(ctx, key, value, b.ttl); err != nil {
		b.logger.Debug("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate 使全部目录缓存失效
func (b *CachedBackend) Invalidate(ctx context.Context) {
	gen := b.generation(ctx) + 1
	if err := b.cache.Set(ctx, catalogGenerationKey, gen, 0); err != nil {
		b.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

// ListProducts 获取商品列表（带缓存）
func (b *CachedBackend) ListProducts(ctx context.Context, categoryID *int64) ([]domain.Product, error) {
	key := b.key(ctx, "products:all")
	if categoryID != nil {
		key = b.key(ctx, "products:category:%d", *categoryID)
	}

	var products []domain.Product
	if err := b.cache.Get(ctx, key, &products); err == nil {
		return products, nil
	}

	products, err := b.Backend.ListProducts(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	b.remember(ctx, key, products)
	return products, nil
}

// GetProduct 根据ID获取商品（带缓存），不存在的结果不缓存。
// WithFreshRead 标记的读取跳过缓存，但结果仍会回填。
func (b *CachedBackend) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	key := b.key(ctx, "product:%d", id)

	if !isFreshRead(ctx) {
		var product domain.Product
		if err := b.cache.Get(ctx, key, &product); err == nil {
			return &product, nil
		}
	}

	result, err := b.Backend.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	b.remember(ctx, key, result)
	return result, nil
}

// ListCategories 获取分类列表（带缓存）
func (b *CachedBackend) ListCategories(ctx context.Context) ([]domain.Category, error) {
	key := b.key(ctx, "categories")

	var categories []domain.Category
	if err := b.cache.Get(ctx, key, &categories); err == nil {
		return categories, nil
	}

	categories, err := b.Backend.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	b.remember(ctx, key, categories)
	return categories, nil
}

// UpsertCategories 写入分类并清除目录缓存
func (b *CachedBackend) UpsertCategories(ctx context.Context, categories []domain.Category) ([]domain.Category, error) {
	saved, err := b.Backend.UpsertCategories(ctx, categories)
	if err != nil {
		return nil, err
	}
	b.Invalidate(ctx)
	return saved, nil
}

// UpsertProducts 写入商品并清除目录缓存
func (b *CachedBackend) UpsertProducts(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	saved, err := b.Backend.UpsertProducts(ctx, products)
	if err != nil {
		return nil, err
	}
	b.Invalidate(ctx)
	return saved, nil
}

// Name 标注缓存层
func (b *CachedBackend) Name() string {
	return b.Backend.Name() + "+cache"
}
