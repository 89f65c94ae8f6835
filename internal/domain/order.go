package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid 判断是否为已知状态
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid 判断是否为已知支付状态
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// ValidateStatusPair 校验订单状态与支付状态的组合：
//   - refunded 只能出现在 cancelled 订单上
//   - shipped / delivered 要求已支付
func ValidateStatusPair(status OrderStatus, payment PaymentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown order status %q", ErrInvalidOrder, status)
	}
	if !payment.Valid() {
		return fmt.Errorf("%w: unknown payment status %q", ErrInvalidOrder, payment)
	}
	if payment == PaymentStatusRefunded && status != OrderStatusCancelled {
		return fmt.Errorf("%w: refunded payment requires a cancelled order", ErrInvalidOrder)
	}
	if (status == OrderStatusShipped || status == OrderStatusDelivered) && payment != PaymentStatusPaid {
		return fmt.Errorf("%w: %s order must be paid", ErrInvalidOrder, status)
	}
	return nil
}

// Order 订单头，创建后不可变
type Order struct {
	ID              int64           `json:"id"`
	UserID          string          `json:"user_id"`
	OrderNumber     string          `json:"order_number"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress Address         `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem 订单明细，携带下单时刻冻结的商品快照
type OrderItem struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	ProductSnapshot Product         `json:"product_snapshot"`
}

// OrderLine 下单草稿中的一行
type OrderLine struct {
	ProductID int64    `json:"product_id"`
	Quantity  int      `json:"quantity"`
	Product   *Product `json:"product,omitempty"`
}

// OrderDraft 由调用方提供的订单内容，订单号、用户、时间由外观层补全
type OrderDraft struct {
	Lines           []OrderLine   `json:"lines"`
	ShippingAddress Address       `json:"shipping_address"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	PaymentStatus   PaymentStatus `json:"payment_status,omitempty"`
	Status          OrderStatus   `json:"status,omitempty"`
	Notes           string        `json:"notes,omitempty"`
}

// Normalize 填充默认状态
func (d *OrderDraft) Normalize() {
	if d.Status == "" {
		d.Status = OrderStatusPending
	}
	if d.PaymentStatus == "" {
		d.PaymentStatus = PaymentStatusPending
	}
}

// Validate 校验草稿：至少一行、数量合法、带商品快照、初始状态合法
func (d *OrderDraft) Validate() error {
	if len(d.Lines) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}
	for i, l := range d.Lines {
		if l.Quantity < 1 {
			return fmt.Errorf("%w: line %d quantity must be >= 1", ErrInvalidOrder, i)
		}
		if l.Product == nil {
			return fmt.Errorf("%w: line %d has no product snapshot", ErrInvalidOrder, i)
		}
		if l.Product.ID != l.ProductID {
			return fmt.Errorf("%w: line %d snapshot does not match product %d", ErrInvalidOrder, i, l.ProductID)
		}
	}
	if d.Status != OrderStatusPending && d.Status != OrderStatusConfirmed {
		return fmt.Errorf("%w: new order cannot start as %s", ErrInvalidOrder, d.Status)
	}
	return ValidateStatusPair(d.Status, d.PaymentStatus)
}

// BuildOrder 根据草稿生成待持久化的订单，冻结商品快照并计算金额
func (d *OrderDraft) BuildOrder(userID, orderNumber string, now time.Time) *Order {
	order := &Order{
		UserID:          userID,
		OrderNumber:     orderNumber,
		Status:          d.Status,
		ShippingAddress: d.ShippingAddress,
		PaymentMethod:   d.PaymentMethod,
		PaymentStatus:   d.PaymentStatus,
		Notes:           d.Notes,
		TotalAmount:     decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, l := range d.Lines {
		snapshot := l.Product.Clone()
		snapshot.Category = nil
		total := snapshot.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		order.Items = append(order.Items, OrderItem{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			UnitPrice:       snapshot.Price,
			TotalPrice:      total,
			ProductSnapshot: *snapshot,
		})
		order.TotalAmount = order.TotalAmount.Add(total)
	}
	return order
}

// CheckoutRequest 从购物车结算下单的请求
type CheckoutRequest struct {
	ShippingAddress *Address `json:"shipping_address"`
	PaymentMethod   string   `json:"payment_method" binding:"omitempty,max=32"`
	Notes           string   `json:"notes" binding:"omitempty,max=500"`
}
