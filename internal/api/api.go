// Package api 提供店铺前台的 HTTP API 处理器（gin）。
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/resp"
)

func requestID(c *gin.Context) string {
	return middleware.RequestIDFromContext(c.Request.Context())
}

func traceID(c *gin.Context) string {
	return middleware.TraceIDFromContext(c.Request.Context())
}

func ok[T any](c *gin.Context, data T) {
	resp.OK(c.Writer, data, requestID(c), traceID(c))
}

func created[T any](c *gin.Context, data T) {
	resp.WriteJSON(c.Writer, http.StatusCreated, resp.CodeOK, "success", data, requestID(c), traceID(c))
}

func badRequest(c *gin.Context, msg string) {
	resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, msg, requestID(c), traceID(c))
}

// parseID 解析路径参数中的正整数 ID
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "无效的"+name)
		return 0, false
	}
	return id, true
}

// classify 把外观层和用例层的错误映射为业务错误码
func classify(err error) (code int, msg string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return resp.CodeTimeout, "request timeout"
	case domain.IsConfigurationError(err):
		return resp.CodeNotConfigured, "后端未配置，当前为只读模式"
	case domain.IsAuthenticationRequired(err):
		return resp.CodeUnauthorized, "请先登录"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return resp.CodeUnauthorized, "邮箱或密码错误"
	case domain.IsNotFound(err), errors.Is(err, domain.ErrCartItemNotFound):
		return resp.CodeNotFound, err.Error()
	case errors.Is(err, domain.ErrAccountExists), errors.Is(err, domain.ErrCartItemBusy):
		return resp.CodeConflict, err.Error()
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductInactive),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrEmptyKeyword):
		return resp.CodeInvalidParam, err.Error()
	case domain.IsServiceError(err):
		return resp.CodeBackendError, "后端服务暂时不可用，请稍后重试"
	default:
		return resp.CodeInternalError, "internal server error"
	}
}

// fail 写出错误响应；服务端错误按 error 级别记录
func fail(c *gin.Context, lg *zap.Logger, op string, err error) {
	code, msg := classify(err)
	status := resp.HTTPStatusFromCode(code)
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("request_id", requestID(c)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		lg.Error("request failed", fields...)
	} else {
		lg.Debug("request rejected", fields...)
	}
	resp.Error(c.Writer, status, code, msg, requestID(c), traceID(c))
}
