package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/middleware"
)

// CartHandler 购物车接口，所有操作作用于当前客户端的购物车镜像
type CartHandler struct {
	logger *zap.Logger
}

// NewCartHandler 创建购物车处理器
func NewCartHandler(logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{logger: logger}
}

// GetCart 购物车内容与汇总；refresh=true 时先从后端重新加载
// @Summary 获取购物车
// @Tags 购物车
// @Produce json
// @Param refresh query bool false "是否重新加载"
// @Success 200 {object} resp.Response[domain.CartSummary] "成功"
// @Failure 401 {object} resp.Response[any] "未登录"
// @Router /api/v1/cart [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	if client.Session.Identity() == nil {
		fail(c, h.logger, "get cart", &domain.AuthenticationRequiredError{Operation: "get cart"})
		return
	}
	if c.Query("refresh") == "true" {
		if err := client.Cart.Refresh(c.Request.Context()); err != nil {
			fail(c, h.logger, "refresh cart", err)
			return
		}
	}
	ok(c, client.Cart.Summary())
}

// AddItem 加入购物车，已有同一商品时数量被替换
// @Summary 加入购物车
// @Tags 购物车
// @Accept json
// @Produce json
// @Param request body domain.AddToCartRequest true "加入购物车请求"
// @Success 200 {object} resp.Response[domain.CartSummary] "成功"
// @Failure 400 {object} resp.Response[any] "数量或库存不合法"
// @Failure 401 {object} resp.Response[any] "未登录"
// @Failure 503 {object} resp.Response[any] "后端未配置"
// @Router /api/v1/cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	var req domain.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("参数绑定失败", zap.Error(err))
		badRequest(c, "请求参数格式错误")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if _, err := client.Cart.AddToCart(c.Request.Context(), req.ProductID, req.Quantity); err != nil {
		fail(c, h.logger, "add to cart", err)
		return
	}
	ok(c, client.Cart.Summary())
}

// UpdateItem 修改购物车行数量
// @Router /api/v1/cart/items/{id} [put]
func (h *CartHandler) UpdateItem(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	itemID, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req domain.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "请求参数格式错误")
		return
	}
	if _, err := client.Cart.UpdateQuantity(c.Request.Context(), itemID, req.Quantity); err != nil {
		fail(c, h.logger, "update cart item", err)
		return
	}
	ok(c, client.Cart.Summary())
}

// RemoveItem 删除购物车行
// @Router /api/v1/cart/items/{id} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	itemID, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := client.Cart.RemoveFromCart(c.Request.Context(), itemID); err != nil {
		fail(c, h.logger, "remove cart item", err)
		return
	}
	ok(c, client.Cart.Summary())
}

// ClearCart 清空购物车
// @Router /api/v1/cart [delete]
func (h *CartHandler) ClearCart(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	if err := client.Cart.ClearCart(c.Request.Context()); err != nil {
		fail(c, h.logger, "clear cart", err)
		return
	}
	ok(c, client.Cart.Summary())
}
