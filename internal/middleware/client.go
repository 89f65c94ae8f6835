package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/resp"
	"github.com/MorseWayne/storefront/internal/service"
)

// HeaderClientID 标识浏览器客户端的请求/响应头
const HeaderClientID = "X-Client-ID"

const ginKeyClient = "storefront.client"

// ClientSession 按 X-Client-ID 解析客户端会话，新分配的 ID 通过响应头返回
func ClientSession(registry *service.Registry, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, created := registry.Resolve(c.GetHeader(HeaderClientID))
		if created {
			logger.Debug("client session created",
				zap.String("client_id", client.ID),
				zap.String("request_id", RequestIDFromContext(c.Request.Context())))
		}
		c.Header(HeaderClientID, client.ID)
		c.Set(ginKeyClient, client)
		c.Next()
	}
}

// ClientFromContext 读取 ClientSession 放入的客户端
func ClientFromContext(c *gin.Context) *service.Client {
	if v, ok := c.Get(ginKeyClient); ok {
		if client, ok := v.(*service.Client); ok {
			return client
		}
	}
	return nil
}

// RequireClient 在缺少客户端会话时直接返回 500，用于路由配置错误的兜底
func RequireClient(c *gin.Context) (*service.Client, bool) {
	client := ClientFromContext(c)
	if client == nil {
		resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError,
			"client session middleware not installed", RequestIDFromContext(c.Request.Context()), TraceIDFromContext(c.Request.Context()))
		c.Abort()
		return nil, false
	}
	return client, true
}
