package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem 表示购物车中的一行。
// (UserID, ProductID) 逻辑唯一：同一用户同一商品至多一行。
type CartItem struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Product   *Product  `json:"product,omitempty"` // 商品快照，仅用于展示
}

// UnitPrice 返回单价；缺少商品快照时按 0 计
func (c *CartItem) UnitPrice() decimal.Decimal {
	if c.Product == nil {
		return decimal.Zero
	}
	return c.Product.Price
}

// Subtotal 返回该行小计
func (c *CartItem) Subtotal() decimal.Decimal {
	return c.UnitPrice().Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// ValidateQuantity 校验购买数量 >= 1
func ValidateQuantity(quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

// 运费规则：商品金额满 FreeShippingThreshold 免运费，否则收取 StandardShippingFee
var (
	FreeShippingThreshold = decimal.NewFromInt(99)
	StandardShippingFee   = decimal.NewFromInt(10)
)

// ShippingFee 按商品金额计算运费；空购物车不收运费
func ShippingFee(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return StandardShippingFee
}

// CartSummary 购物车的派生视图
type CartSummary struct {
	Items       []CartItem      `json:"items"`
	TotalItems  int             `json:"total_items"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	Loading     bool            `json:"loading"`
}

// AddToCartRequest 表示加入购物车请求
type AddToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"omitempty,gte=1"`
}

// UpdateCartItemRequest 表示修改购物车数量请求
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,gte=1"`
}
