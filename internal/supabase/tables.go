package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/storefront/internal/domain"
)

const (
	productSelect = "*,category:categories(*)"
	cartSelect    = "*,product:products(*)"
	orderSelect   = "*,items:order_items(*)"

	preferRepresentation = "return=representation"
	preferMerge          = "resolution=merge-duplicates,return=representation"
)

func eq(v any) string {
	return "eq." + fmt.Sprint(v)
}

// quoteFilter 给过滤值加双引号，避免逗号、括号破坏 or 语法
func quoteFilter(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

type productRow struct {
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Price          decimal.Decimal       `json:"price"`
	OriginalPrice  *decimal.Decimal      `json:"original_price,omitempty"`
	SKU            string                `json:"sku"`
	StockQuantity  int                   `json:"stock_quantity"`
	CategoryID     *int64                `json:"category_id,omitempty"`
	Images         []string              `json:"images"`
	Specifications domain.Specifications `json:"specifications,omitempty"`
	IsActive       bool                  `json:"is_active"`
}

type categoryRow struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type cartRow struct {
	UserID    string `json:"user_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type profileRow struct {
	ID       string          `json:"id"`
	Username string          `json:"username,omitempty"`
	FullName string          `json:"full_name,omitempty"`
	Phone    string          `json:"phone,omitempty"`
	Avatar   string          `json:"avatar_url,omitempty"`
	Address  *domain.Address `json:"address,omitempty"`
}

type orderRow struct {
	UserID          string               `json:"user_id"`
	OrderNumber     string               `json:"order_number"`
	TotalAmount     decimal.Decimal      `json:"total_amount"`
	Status          domain.OrderStatus   `json:"status"`
	ShippingAddress domain.Address       `json:"shipping_address"`
	PaymentMethod   string               `json:"payment_method,omitempty"`
	PaymentStatus   domain.PaymentStatus `json:"payment_status"`
	Notes           string               `json:"notes,omitempty"`
}

type orderItemRow struct {
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	ProductSnapshot domain.Product  `json:"product_snapshot"`
}

// ListProducts 上架商品，按创建时间倒序
func (c *Client) ListProducts(ctx context.Context, categoryID *int64) ([]domain.Product, error) {
	q := url.Values{}
	q.Set("select", productSelect)
	q.Set("is_active", "eq.true")
	q.Set("order", "created_at.desc")
	if categoryID != nil {
		q.Set("category_id", eq(*categoryID))
	}
	var out []domain.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: "/rest/v1/products", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct 按 ID 查询商品
func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	q := url.Values{}
	q.Set("select", productSelect)
	q.Set("id", eq(id))
	q.Set("limit", "1")
	var out []domain.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: "/rest/v1/products", query: q}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.NewNotFound("product", id)
	}
	return &out[0], nil
}

// ListCategories 按名称升序
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "name.asc")
	var out []domain.Category
	if err := c.do(ctx, request{method: http.MethodGet, path: "/rest/v1/categories", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchProducts 名称或描述不区分大小写包含关键词
func (c *Client) SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error) {
	pattern := quoteFilter("*" + keyword + "*")
	q := url.Values{}
	q.Set("select", productSelect)
	q.Set("is_active", "eq.true")
	q.Set("or", fmt.Sprintf("(name.ilike.%s,description.ilike.%s)", pattern, pattern))
	q.Set("order", "created_at.desc")
	var out []domain.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: "/rest/v1/products", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertCategories 以 name 为冲突键写入
func (c *Client) UpsertCategories(ctx context.Context, categories []domain.Category) ([]domain.Category, error) {
	rows := make([]categoryRow, len(categories))
	for i, cat := range categories {
		rows[i] = categoryRow{Name: cat.Name, Description: cat.Description, ImageURL: cat.ImageURL}
	}
	q := url.Values{}
	q.Set("on_conflict", "name")
	var out []domain.Category
	err := c.do(ctx, request{method: http.MethodPost, path: "/rest/v1/categories", query: q, body: rows, prefer: preferMerge}, &out)
	return out, err
}

// UpsertProducts 以 sku 为冲突键写入
func (c *Client) UpsertProducts(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	rows := make([]productRow, len(products))
	for i, p := range products {
		rows[i] = productRow{
			Name:           p.Name,
			Description:    p.Description,
			Price:          p.Price,
			OriginalPrice:  p.OriginalPrice,
			SKU:            p.SKU,
			StockQuantity:  p.StockQuantity,
			CategoryID:     p.CategoryID,
			Images:         p.Images,
			Specifications: p.Specifications,
			IsActive:       p.IsActive,
		}
	}
	q := url.Values{}
	q.Set("on_conflict", "sku")
	var out []domain.Product
	err := c.do(ctx, request{method: http.MethodPost, path: "/rest/v1/products", query: q, body: rows, prefer: preferMerge}, &out)
	return out, err
}

// GetCartItems 用户的购物车，附带商品快照
func (c *Client) GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	q := url.Values{}
	q.Set("select", cartSelect)
	q.Set("user_id", eq(userID))
	q.Set("order", "created_at.desc")
	var out []domain.CartItem
	if err := c.do(ctx, request{method: http.MethodGet, path: "/rest/v1/cart_items", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertCartItem 以 (user_id, product_id) 为冲突键写入
func (c *Client) UpsertCartItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartItem, error) {
	q := url.Values{}
	q.Set("on_conflict", "user_id,product_id")
	q.Set("select", cartSelect)
	body := []cartRow{{UserID: userID, ProductID: productID, Quantity: quantity}}
	var out []domain.CartItem
	if err := c.do(ctx, request{method: http.MethodPost, path: "/rest/v1/cart_items", query: q, body: body, prefer: preferMerge}, &out); err != nil {
		// 外键约束失败：商品不存在
		if isStatus(err, http.StatusConflict) {
			return nil, domain.NewNotFound("product", productID)
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("upsert cart item returned no rows")
	}
	return &out[0], nil
}

// UpdateCartItem 按 ID 修改数量，只作用于该用户自己的行
func (c *Client) UpdateCartItem(ctx context.Context, userID string, itemID int64, quantity int) (*domain.CartItem, error) {
	q := url.Values{}
	q.Set("id", eq(itemID))
	q.Set("user_id", eq(userID))
	q.Set("select", cartSelect)
	body := map[string]int{"quantity": quantity}
	var out []domain.CartItem
	if err := c.do(ctx, request{method: http.MethodPatch, path: "/rest/v1/cart_items", query: q, body: body, prefer: preferRepresentation}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrCartItemNotFound
	}
	return &out[0], nil
}

// DeleteCartItem 删除单行
func (c *Client) DeleteCartItem(ctx context.Context, userID string, itemID int64) error {
	q := url.Values{}
	q.Set("id", eq(itemID))
	q.Set("user_id", eq(userID))
	return c.do(ctx, request{method: http.MethodDelete, path: "/rest/v1/cart_items", query: q}, nil)
}

// ClearCart 删除该用户全部购物车行
func (c *Client) ClearCart(ctx context.Context, userID string) error {
	q := url.Values{}
	q.Set("user_id", eq(userID))
	return c.do(ctx, request{method: http.MethodDelete, path: "/rest/v1/cart_items", query: q}, nil)
}

// GetProfile 没有资料行时返回 (nil, nil)
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", eq(userID))
	q.Set("limit", "1")
	var out []domain.Profile
	if err := c.do(ctx, request{method: http.MethodGet, path: "/rest/v1/profiles", query: q}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// CreateProfile 插入资料行；已存在时合并
func (c *Client) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	row := profileRow{
		ID:       profile.ID,
		Username: profile.Username,
		FullName: profile.FullName,
		Phone:    profile.Phone,
		Avatar:   profile.AvatarURL,
		Address:  profile.Address,
	}
	q := url.Values{}
	q.Set("on_conflict", "id")
	var out []domain.Profile
	if err := c.do(ctx, request{method: http.MethodPost, path: "/rest/v1/profiles", query: q, body: []profileRow{row}, prefer: preferMerge}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("create profile returned no rows")
	}
	return &out[0], nil
}

// UpdateProfile 局部更新
func (c *Client) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error) {
	if patch.IsEmpty() {
		p, err := c.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, domain.NewNotFound("profile", userID)
		}
		return p, nil
	}
	q := url.Values{}
	q.Set("id", eq(userID))
	q.Set("select", "*")
	var out []domain.Profile
	if err := c.do(ctx, request{method: http.MethodPatch, path: "/rest/v1/profiles", query: q, body: patch.Fields(), prefer: preferRepresentation}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.NewNotFound("profile", userID)
	}
	return &out[0], nil
}

// ListOrders 用户订单，附带明细，按创建时间倒序
func (c *Client) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	q := url.Values{}
	q.Set("select", orderSelect)
	q.Set("user_id", eq(userID))
	q.Set("order", "created_at.desc")
	var out []domain.Order
	if err := c.do(ctx, request{method: http.MethodGet, path: "/rest/v1/orders", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertOrder 先写订单头，再写明细；明细失败时删除订单头
func (c *Client) InsertOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	head := orderRow{
		UserID:          order.UserID,
		OrderNumber:     order.OrderNumber,
		TotalAmount:     order.TotalAmount,
		Status:          order.Status,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		Notes:           order.Notes,
	}
	var created []domain.Order
	if err := c.do(ctx, request{method: http.MethodPost, path: "/rest/v1/orders", body: []orderRow{head}, prefer: preferRepresentation}, &created); err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("insert order returned no rows")
	}
	saved := created[0]

	if len(order.Items) > 0 {
		rows := make([]orderItemRow, len(order.Items))
		for i, it := range order.Items {
			rows[i] = orderItemRow{
				OrderID:         saved.ID,
				ProductID:       it.ProductID,
				Quantity:        it.Quantity,
				UnitPrice:       it.UnitPrice,
				TotalPrice:      it.TotalPrice,
				ProductSnapshot: it.ProductSnapshot,
			}
		}
		var items []domain.OrderItem
		if err := c.do(ctx, request{method: http.MethodPost, path: "/rest/v1/order_items", body: rows, prefer: preferRepresentation}, &items); err != nil {
			q := url.Values{}
			q.Set("id", eq(saved.ID))
			if delErr := c.do(ctx, request{method: http.MethodDelete, path: "/rest/v1/orders", query: q}, nil); delErr != nil {
				return nil, fmt.Errorf("insert order items: %w (rollback order %s: %v)", err, strconv.FormatInt(saved.ID, 10), delErr)
			}
			return nil, fmt.Errorf("insert order items: %w", err)
		}
		saved.Items = items
	}
	return &saved, nil
}
