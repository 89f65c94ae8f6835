package api

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/middleware"
)

// OrderHandler 订单接口
type OrderHandler struct {
	logger *zap.Logger
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{logger: logger}
}

// ListOrders 当前用户的订单，最新的在前
// @Router /api/v1/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	orders, err := client.ListOrders(c.Request.Context())
	if err != nil {
		fail(c, h.logger, "list orders", err)
		return
	}
	ok(c, orders)
}

// Checkout 以购物车当前内容下单，成功后清空购物车
// @Summary 结算下单
// @Tags 订单
// @Accept json
// @Produce json
// @Param request body domain.CheckoutRequest false "收货地址、支付方式、备注"
// @Success 201 {object} resp.Response[domain.Order] "成功"
// @Failure 400 {object} resp.Response[any] "购物车为空或缺少收货地址"
// @Failure 401 {object} resp.Response[any] "未登录"
// @Failure 409 {object} resp.Response[any] "重复请求"
// @Router /api/v1/orders [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	var req domain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debug("参数绑定失败", zap.Error(err))
		badRequest(c, "请求参数格式错误")
		return
	}

	order, err := client.Checkout(c.Request.Context(), req)
	if err != nil {
		fail(c, h.logger, "checkout", err)
		return
	}
	h.logger.Info("order placed",
		zap.String("request_id", requestID(c)),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.TotalAmount.String()))
	created(c, order)
}
