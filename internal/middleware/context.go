// Package middleware 提供 HTTP 中间件：请求 ID、恢复、超时、访问日志、客户端会话与幂等性。
package middleware

import (
	"context"
)

type requestMetaKey struct{}

// requestMeta 随请求上下文传递的追踪信息
type requestMeta struct {
	requestID string
	traceID   string
}

func withRequestMeta(ctx context.Context, meta requestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func metaFrom(ctx context.Context) requestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return meta
}

// RequestIDFromContext 读取请求 ID，未经过 RequestID 中间件时为空
func RequestIDFromContext(ctx context.Context) string {
	return metaFrom(ctx).requestID
}

// TraceIDFromContext 读取上游 traceparent 中的 trace ID，可能为空
func TraceIDFromContext(ctx context.Context) string {
	return metaFrom(ctx).traceID
}
