package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product 表示商品领域模型
type Product struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	OriginalPrice  *decimal.Decimal `json:"original_price,omitempty"` // 仅用于展示折扣，不参与校验
	SKU            string           `json:"sku"`
	StockQuantity  int              `json:"stock_quantity"`
	CategoryID     *int64           `json:"category_id,omitempty"`
	Images         []string         `json:"images"`
	Specifications Specifications   `json:"specifications,omitempty"`
	IsActive       bool             `json:"is_active"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Category       *Category        `json:"category,omitempty"`
}

// Validate 校验商品的基本不变量
func (p *Product) Validate() error {
	if p.Name == "" {
		return errors.New("product name is required")
	}
	if p.Price.IsNegative() {
		return errors.New("product price must be >= 0")
	}
	if p.StockQuantity < 0 {
		return errors.New("stock quantity must be >= 0")
	}
	return nil
}

// InCategory 判断商品是否属于指定分类
func (p *Product) InCategory(categoryID int64) bool {
	return p.CategoryID != nil && *p.CategoryID == categoryID
}

// HasDiscount 原价高于现价时视为折扣商品
func (p *Product) HasDiscount() bool {
	return p.OriginalPrice != nil && p.OriginalPrice.GreaterThan(p.Price)
}

// DiscountPercent 返回折扣百分比（四舍五入到整数），无折扣时为 0
func (p *Product) DiscountPercent() int64 {
	if !p.HasDiscount() || p.OriginalPrice.IsZero() {
		return 0
	}
	off := p.OriginalPrice.Sub(p.Price).Div(*p.OriginalPrice).Mul(decimal.NewFromInt(100))
	return off.Round(0).IntPart()
}

// CanFulfill 判断商品是否可以满足指定购买数量
func (p *Product) CanFulfill(quantity int) bool {
	return p.IsActive && quantity <= p.StockQuantity
}

// Clone 返回商品的深拷贝，用于订单快照等需要冻结数据的场景
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.OriginalPrice != nil {
		op := *p.OriginalPrice
		c.OriginalPrice = &op
	}
	if p.CategoryID != nil {
		id := *p.CategoryID
		c.CategoryID = &id
	}
	c.Images = append([]string(nil), p.Images...)
	c.Specifications = p.Specifications.Clone()
	if p.Category != nil {
		cat := *p.Category
		c.Category = &cat
	}
	return &c
}

// Category 表示商品分类
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
