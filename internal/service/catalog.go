package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/store"
)

const (
	homeSectionSize = 8
	relatedLimit    = 4
)

// HomePage 首页数据
type HomePage struct {
	NewProducts      []domain.Product  `json:"new_products"`
	FeaturedProducts []domain.Product  `json:"featured_products"`
	Categories       []domain.Category `json:"categories"`
}

// ProductDetail 商品详情及同分类的相关商品
type ProductDetail struct {
	Product *domain.Product  `json:"product"`
	Related []domain.Product `json:"related"`
}

// Catalog 商品目录的读用例
type Catalog struct {
	store  store.Store
	logger *zap.Logger
}

// NewCatalog 创建目录服务
func NewCatalog(st store.Store, lg *zap.Logger) *Catalog {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Catalog{store: st, logger: lg}
}

func head(products []domain.Product, n int) []domain.Product {
	if len(products) > n {
		products = products[:n]
	}
	out := make([]domain.Product, len(products))
	copy(out, products)
	return out
}

// Home 新品取最新的 8 个；精选取有折扣的前 8 个，没有折扣商品时与新品相同
func (c *Catalog) Home(ctx context.Context) (*HomePage, error) {
	products, err := c.store.ListProducts(ctx, nil)
	if err != nil {
		return nil, err
	}
	categories, err := c.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	var discounted []domain.Product
	for i := range products {
		if products[i].HasDiscount() {
			discounted = append(discounted, products[i])
		}
	}
	featured := head(discounted, homeSectionSize)
	if len(featured) == 0 {
		featured = head(products, homeSectionSize)
	}
	return &HomePage{
		NewProducts:      head(products, homeSectionSize),
		FeaturedProducts: featured,
		Categories:       categories,
	}, nil
}

// ProductDetail 商品不存在时返回 NotFoundError；相关商品加载失败只记录日志
func (c *Catalog) ProductDetail(ctx context.Context, id int64) (*ProductDetail, error) {
	product, err := c.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &ProductDetail{Product: product, Related: []domain.Product{}}
	if product.CategoryID == nil {
		return detail, nil
	}

	siblings, err := c.store.ListProducts(ctx, product.CategoryID)
	if err != nil {
		c.logger.Warn("failed to load related products", zap.Int64("product_id", id), zap.Error(err))
		return detail, nil
	}
	for _, p := range siblings {
		if p.ID == id {
			continue
		}
		detail.Related = append(detail.Related, p)
		if len(detail.Related) == relatedLimit {
			break
		}
	}
	return detail, nil
}

// ListProducts 上架商品，可按分类过滤
func (c *Catalog) ListProducts(ctx context.Context, categoryID *int64) ([]domain.Product, error) {
	return c.store.ListProducts(ctx, categoryID)
}

// ListCategories 全部分类
func (c *Catalog) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return c.store.ListCategories(ctx)
}

// Search 关键词两端空白会被去掉
func (c *Catalog) Search(ctx context.Context, keyword string) ([]domain.Product, error) {
	return c.store.SearchProducts(ctx, strings.TrimSpace(keyword))
}
