package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MorseWayne/storefront/internal/resp"
	"github.com/MorseWayne/storefront/internal/service"
	"github.com/MorseWayne/storefront/internal/store"
)

// StatusResponse 系统状态
type StatusResponse struct {
	store.Status
	Clients int `json:"clients"`
}

// StatusHandler 健康检查与外观诊断
type StatusHandler struct {
	store    store.Store
	registry *service.Registry
}

// NewStatusHandler 创建状态处理器
func NewStatusHandler(st store.Store, registry *service.Registry) *StatusHandler {
	return &StatusHandler{store: st, registry: registry}
}

// Healthz 存活检查，不访问后端
// @Router /healthz [get]
func (h *StatusHandler) Healthz(c *gin.Context) {
	ok(c, map[string]string{"status": "ok", "mode": string(h.store.Mode())})
}

// Status 外观诊断：工作模式、后端连通性、静态数据规模
// @Summary 系统状态
// @Tags 系统
// @Produce json
// @Success 200 {object} resp.Response[StatusResponse] "成功"
// @Failure 503 {object} resp.Response[StatusResponse] "后端不可达"
// @Router /api/v1/status [get]
func (h *StatusHandler) Status(c *gin.Context) {
	status := StatusResponse{Status: h.store.Status(c.Request.Context()), Clients: h.registry.Len()}
	if status.Mode == store.ModeLive && !status.Reachable {
		resp.WriteJSON(c.Writer, http.StatusServiceUnavailable, resp.CodeBackendError, "backend unreachable", status, requestID(c), traceID(c))
		return
	}
	ok(c, status)
}
