package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
)

// ListOrders 当前身份的订单
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	identity := c.Session.Identity()
	if identity == nil {
		return nil, &domain.AuthenticationRequiredError{Operation: "list orders"}
	}
	return c.store.ListOrders(withIdentity(ctx, identity), identity.UserID)
}

// Checkout 用购物车当前内容下单，成功后清空购物车。
// 收货地址优先取请求中的地址，否则使用个人资料中的默认地址。
func (c *Client) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Order, error) {
	identity := c.Session.Identity()
	if identity == nil {
		return nil, &domain.AuthenticationRequiredError{Operation: "checkout"}
	}
	items := c.Cart.Items()
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrInvalidOrder)
	}

	address, err := c.shippingAddress(ctx, req.ShippingAddress)
	if err != nil {
		return nil, err
	}

	draft := domain.OrderDraft{
		ShippingAddress: address,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	}
	for _, item := range items {
		product := item.Product
		if product == nil {
			if product, err = c.store.LookupProduct(ctx, item.ProductID); err != nil {
				return nil, err
			}
		}
		if err := checkStock(product, item.Quantity); err != nil {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, err)
		}
		draft.Lines = append(draft.Lines, domain.OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Product:   product,
		})
	}

	order, err := c.store.CreateOrder(withIdentity(ctx, identity), identity.UserID, draft)
	if err != nil {
		return nil, err
	}
	if err := c.Cart.ClearCart(ctx); err != nil {
		c.logger.Warn("order created but cart not cleared",
			zap.String("order_number", order.OrderNumber), zap.Error(err))
	}
	return order, nil
}

func (c *Client) shippingAddress(ctx context.Context, requested *domain.Address) (domain.Address, error) {
	if requested != nil && !requested.IsZero() {
		return *requested, nil
	}
	profile, err := c.Session.Profile(ctx)
	if err != nil {
		return domain.Address{}, err
	}
	if profile.Address == nil || profile.Address.IsZero() {
		return domain.Address{}, fmt.Errorf("%w: shipping address is required", domain.ErrInvalidOrder)
	}
	return *profile.Address, nil
}
