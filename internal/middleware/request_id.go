package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderRequestID   = "X-Request-ID"
	HeaderTraceParent = "traceparent"

	maxRequestIDLen = 128
)

// validRequestID 只接受可安全写入日志和响应头的字符
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}

// parseTraceParent 提取 W3C traceparent（version-traceid-parentid-flags）中的 trace ID
func parseTraceParent(h string) string {
	parts := strings.Split(strings.TrimSpace(h), "-")
	if len(parts) != 4 || len(parts[1]) != 32 || parts[1] == strings.Repeat("0", 32) {
		return ""
	}
	for _, r := range parts[1] {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return ""
		}
	}
	return parts[1]
}

// RequestID 沿用调用方提供的 X-Request-ID，不合法或缺失时生成 UUID，
// 并写入响应头与请求上下文。
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := requestMeta{
			requestID: strings.TrimSpace(r.Header.Get(HeaderRequestID)),
			traceID:   parseTraceParent(r.Header.Get(HeaderTraceParent)),
		}
		if !validRequestID(meta.requestID) {
			meta.requestID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, meta.requestID)
		next.ServeHTTP(w, r.WithContext(withRequestMeta(r.Context(), meta)))
	})
}
