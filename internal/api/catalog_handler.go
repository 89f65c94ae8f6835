package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/service"
)

// CatalogHandler 商品目录的只读接口，后端不可用时由外观层返回静态数据
type CatalogHandler struct {
	catalog *service.Catalog
	logger  *zap.Logger
}

// NewCatalogHandler 创建目录处理器
func NewCatalogHandler(catalog *service.Catalog, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// Home 首页：新品、精选、分类
// @Summary 首页数据
// @Tags 商品
// @Produce json
// @Success 200 {object} resp.Response[service.HomePage] "成功"
// @Router /api/v1/home [get]
func (h *CatalogHandler) Home(c *gin.Context) {
	page, err := h.catalog.Home(c.Request.Context())
	if err != nil {
		fail(c, h.logger, "home", err)
		return
	}
	ok(c, page)
}

// ListProducts 商品列表，可按 category_id 过滤
// @Summary 商品列表
// @Tags 商品
// @Produce json
// @Param category_id query int false "分类ID"
// @Success 200 {object} resp.Response[[]domain.Product] "成功"
// @Failure 400 {object} resp.Response[any] "请求参数错误"
// @Router /api/v1/products [get]
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var categoryID *int64
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "无效的category_id")
			return
		}
		categoryID = &id
	}

	products, err := h.catalog.ListProducts(c.Request.Context(), categoryID)
	if err != nil {
		fail(c, h.logger, "list products", err)
		return
	}
	ok(c, products)
}

// SearchProducts 按关键字搜索商品名称和描述
// @Router /api/v1/products/search [get]
func (h *CatalogHandler) SearchProducts(c *gin.Context) {
	products, err := h.catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, h.logger, "search products", err)
		return
	}
	ok(c, products)
}

// GetProduct 商品详情及相关商品
// @Summary 商品详情
// @Tags 商品
// @Produce json
// @Param id path int true "商品ID"
// @Success 200 {object} resp.Response[service.ProductDetail] "成功"
// @Failure 404 {object} resp.Response[any] "商品不存在"
// @Router /api/v1/products/{id} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	detail, err := h.catalog.ProductDetail(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, "get product", err)
		return
	}
	ok(c, detail)
}

// ListCategories 分类列表
// @Router /api/v1/categories [get]
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		fail(c, h.logger, "list categories", err)
		return
	}
	ok(c, categories)
}
