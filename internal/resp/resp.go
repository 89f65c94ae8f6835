// Package resp 定义统一的 HTTP JSON 响应格式。
package resp

import (
	"encoding/json"
	"net/http"
)

// 业务错误码
const (
	CodeOK              = 0
	CodeInvalidParam    = 10001
	CodeUnauthorized    = 10002
	CodeNotFound        = 10004
	CodeConflict        = 10009
	CodeTooManyRequests = 10029
	CodeInternalError   = 20001
	CodeBackendError    = 20002
	CodeNotConfigured   = 20003
	CodeTimeout         = 20004
)

// Response 是所有接口的统一响应体
type Response[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteJSON 写出统一格式的响应
func WriteJSON[T any](w http.ResponseWriter, status, code int, message string, data T, reqID, traceID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response[T]{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: reqID,
		TraceID:   traceID,
	})
}

// OK 写出成功响应
func OK[T any](w http.ResponseWriter, data T, reqID, traceID string) {
	WriteJSON(w, http.StatusOK, CodeOK, "success", data, reqID, traceID)
}

// Error 写出错误响应
func Error(w http.ResponseWriter, status, code int, message, reqID, traceID string) {
	WriteJSON[any](w, status, code, message, nil, reqID, traceID)
}

// HTTPStatusFromCode 将业务错误码映射为 HTTP 状态码
func HTTPStatusFromCode(code int) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeBackendError:
		return http.StatusBadGateway
	case CodeNotConfigured:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
