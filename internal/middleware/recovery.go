package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/resp"
)

// Recovery 捕获处理链中的 panic，记录堆栈并返回 500。
// http.ErrAbortHandler 原样抛出，由 net/http 中断连接。
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				ctx := r.Context()
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", RequestIDFromContext(ctx)),
					zap.ByteString("stack", debug.Stack()))
				resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError,
					"internal server error", RequestIDFromContext(ctx), TraceIDFromContext(ctx))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
