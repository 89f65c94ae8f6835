package store

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/storefront/internal/domain"
)

// catalogEpoch 内置目录的基准时间，商品按 ID 递增依次变旧
var catalogEpoch = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

func price(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func pricePtr(v string) *decimal.Decimal {
	d := price(v)
	return &d
}

func int64Ptr(v int64) *int64 {
	return &v
}

func sampleCategories() []domain.Category {
	return []domain.Category{
		{ID: 1, Name: "电子产品", Description: "各类电子设备和数码产品", ImageURL: "/images/electronics.jpg"},
		{ID: 2, Name: "服装配饰", Description: "时尚服装和配饰", ImageURL: "/images/fashion.jpg"},
		{ID: 3, Name: "家居用品", Description: "居家生活用品", ImageURL: "/images/home.jpg"},
		{ID: 4, Name: "运动户外", Description: "运动器材和户外装备", ImageURL: "/images/sports.jpg"},
	}
}

func sampleProducts() []domain.Product {
	return []domain.Product{
		{
			ID: 1, Name: "iPhone 15 Pro", Description: "苹果最新款智能手机，钛金属设计，支持 5G 网络",
			Price: price("8999.00"), OriginalPrice: pricePtr("9999.00"), SKU: "IP15P001", StockQuantity: 50, CategoryID: int64Ptr(1),
			Images: []string{"https://picsum.photos/400/400?random=1", "https://picsum.photos/400/400?random=2"},
			Specifications: domain.Specifications{
				{Key: "color", Value: domain.ListSpec("深空黑", "银色", "金色", "深蓝色")},
				{Key: "storage", Value: domain.ListSpec("128GB", "256GB", "512GB", "1TB")},
				{Key: "screen_size", Value: domain.SingleSpec("6.1英寸")},
			},
		},
		{
			ID: 2, Name: "运动T恤", Description: "透气速干运动T恤，适合各种运动场景",
			Price: price("199.00"), OriginalPrice: pricePtr("299.00"), SKU: "SPORT001", StockQuantity: 100, CategoryID: int64Ptr(2),
			Images: []string{"https://picsum.photos/400/400?random=3", "https://picsum.photos/400/400?random=4"},
			Specifications: domain.Specifications{
				{Key: "color", Value: domain.ListSpec("黑色", "白色", "蓝色", "红色")},
				{Key: "size", Value: domain.ListSpec("S", "M", "L", "XL", "XXL")},
				{Key: "material", Value: domain.SingleSpec("聚酯纤维")},
			},
		},
		{
			ID: 3, Name: "智能手表", Description: "多功能运动健康智能手表，支持心率监测和GPS定位",
			Price: price("1299.00"), OriginalPrice: pricePtr("1599.00"), SKU: "WATCH001", StockQuantity: 30, CategoryID: int64Ptr(1),
			Images: []string{"https://picsum.photos/400/400?random=5", "https://picsum.photos/400/400?random=6"},
			Specifications: domain.Specifications{
				{Key: "color", Value: domain.ListSpec("黑色", "银色", "金色")},
				{Key: "screen", Value: domain.SingleSpec("1.4英寸AMOLED")},
				{Key: "battery_life", Value: domain.SingleSpec("7天")},
			},
		},
		{
			ID: 4, Name: "瑜伽垫", Description: "防滑加厚瑜伽垫，环保材质，适合瑜伽和健身",
			Price: price("99.00"), OriginalPrice: pricePtr("149.00"), SKU: "YOGA001", StockQuantity: 200, CategoryID: int64Ptr(4),
			Images: []string{"https://picsum.photos/400/400?random=7", "https://picsum.photos/400/400?random=8"},
			Specifications: domain.Specifications{
				{Key: "color", Value: domain.ListSpec("紫色", "蓝色", "粉色", "灰色")},
				{Key: "thickness", Value: domain.ListSpec("6mm", "8mm", "10mm")},
				{Key: "material", Value: domain.SingleSpec("TPE")},
			},
		},
		{
			ID: 5, Name: "无线耳机", Description: "蓝牙5.0无线耳机，主动降噪，长续航",
			Price: price("599.00"), OriginalPrice: pricePtr("799.00"), SKU: "EAR001", StockQuantity: 80, CategoryID: int64Ptr(1),
			Images: []string{"https://picsum.photos/400/400?random=9", "https://picsum.photos/400/400?random=10"},
			Specifications: domain.Specifications{
				{Key: "color", Value: domain.ListSpec("黑色", "白色")},
				{Key: "battery_life", Value: domain.SingleSpec("30小时")},
				{Key: "bluetooth_version", Value: domain.SingleSpec("5.0")},
			},
		},
		{
			ID: 6, Name: "运动鞋", Description: "轻便透气运动鞋，适合跑步和日常穿着",
			Price: price("399.00"), OriginalPrice: pricePtr("599.00"), SKU: "SHOES001", StockQuantity: 150, CategoryID: int64Ptr(2),
			Images: []string{"https://picsum.photos/400/400?random=11", "https://picsum.photos/400/400?random=12"},
			Specifications: domain.Specifications{
				{Key: "color", Value: domain.ListSpec("黑色", "白色", "灰色")},
				{Key: "size", Value: domain.ListSpec("39", "40", "41", "42", "43", "44")},
				{Key: "material", Value: domain.SingleSpec("网布+橡胶")},
			},
		},
		{
			ID: 7, Name: "保温杯", Description: "316不锈钢保温杯，24小时保温保冷",
			Price: price("129.00"), OriginalPrice: pricePtr("189.00"), SKU: "BOTTLE001", StockQuantity: 120, CategoryID: int64Ptr(3),
			Images: []string{"https://picsum.photos/400/400?random=13", "https://picsum.photos/400/400?random=14"},
			Specifications: domain.Specifications{
				{Key: "color", Value: domain.ListSpec("银色", "金色", "蓝色")},
				{Key: "capacity", Value: domain.ListSpec("500ml", "750ml", "1000ml")},
				{Key: "material", Value: domain.SingleSpec("316不锈钢")},
			},
		},
		{
			ID: 8, Name: "背包", Description: "大容量商务背包，防水材质，笔记本电脑隔层",
			Price: price("299.00"), OriginalPrice: pricePtr("399.00"), SKU: "BAG001", StockQuantity: 60, CategoryID: int64Ptr(3),
			Images: []string{"https://picsum.photos/400/400?random=15", "https://picsum.photos/400/400?random=16"},
			Specifications: domain.Specifications{
				{Key: "color", Value: domain.ListSpec("黑色", "灰色", "蓝色")},
				{Key: "capacity", Value: domain.SingleSpec("25L")},
				{Key: "material", Value: domain.SingleSpec("防水尼龙")},
			},
		},
	}
}

// Catalog 是内置的静态目录
type Catalog struct {
	Categories []domain.Category
	Products   []domain.Product
}

// SampleCatalog 返回一份新的内置目录副本，调用方可以自由修改。
// 商品都是上架状态，并挂上所属分类。
func SampleCatalog() Catalog {
	cats := sampleCategories()
	byID := make(map[int64]*domain.Category, len(cats))
	for i := range cats {
		cats[i].CreatedAt = catalogEpoch
		cats[i].UpdatedAt = catalogEpoch
		byID[cats[i].ID] = &cats[i]
	}

	products := sampleProducts()
	for i := range products {
		p := &products[i]
		p.IsActive = true
		p.CreatedAt = catalogEpoch.Add(-time.Duration(p.ID-1) * time.Hour)
		p.UpdatedAt = p.CreatedAt
		if p.CategoryID != nil {
			if c, ok := byID[*p.CategoryID]; ok {
				cat := *c
				p.Category = &cat
			}
		}
	}
	return Catalog{Categories: cats, Products: products}
}

// filterProducts 保留上架商品并按分类过滤，结果按创建时间倒序
func filterProducts(products []domain.Product, categoryID *int64) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if !p.IsActive {
			continue
		}
		if categoryID != nil && !p.InCategory(*categoryID) {
			continue
		}
		out = append(out, *p.Clone())
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(products []domain.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].ID > products[j].ID
		}
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
}

func sortCategoriesByName(categories []domain.Category) {
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
}

// findProduct 在目录中按 ID 查找
func findProduct(products []domain.Product, id int64) (*domain.Product, bool) {
	for i := range products {
		if products[i].ID == id {
			return products[i].Clone(), true
		}
	}
	return nil, false
}
