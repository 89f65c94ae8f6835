package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/resp"
	"github.com/MorseWayne/storefront/internal/service"
	"github.com/MorseWayne/storefront/internal/store"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", 200))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "bad id\nInjected: 1")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotContains(t, seen, "Injected")
	_, err = uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestRequestID_TraceParent(t *testing.T) {
	var trace string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTraceParent, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", trace)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTraceParent, "00-00000000000000000000000000000000-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, trace)
}

func TestRecovery(t *testing.T) {
	h := RequestID(Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body resp.Response[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, resp.CodeInternalError, body.Code)
	assert.NotEmpty(t, body.RequestID)
}

func TestRecovery_TraceIDInBody(t *testing.T) {
	h := RequestID(Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTraceParent, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body resp.Response[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", body.TraceID)
}

func TestTimeout(t *testing.T) {
	var ctxErr error
	var hasDeadline bool
	h := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
		<-r.Context().Done()
		ctxErr = r.Context().Err()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, hasDeadline)
	assert.ErrorIs(t, ctxErr, context.DeadlineExceeded)

	hasDeadline = false
	Timeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, hasDeadline)
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := AccessLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderClientID, "client-1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, int64(5), fields["bytes"])
	assert.Equal(t, "client-1", fields["client_id"])
}

func newClientRouter(registry *service.Registry, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ClientSession(registry, zap.NewNop()))
	r.Use(extra...)
	handler := func(c *gin.Context) {
		client, ok := RequireClient(c)
		if !ok {
			return
		}
		c.String(http.StatusOK, client.ID)
	}
	r.GET("/whoami", handler)
	r.POST("/orders", handler)
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	return r
}

func newRegistry() *service.Registry {
	return service.NewRegistry(store.New(nil, zap.NewNop()), time.Hour, zap.NewNop())
}

func TestClientSession(t *testing.T) {
	r := newClientRouter(newRegistry())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(HeaderClientID)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderClientID, id)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Body.String())
}

func TestRequireClient_MissingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		if _, ok := RequireClient(c); ok {
			c.Status(http.StatusOK)
		}
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIdempotency(t *testing.T) {
	r := newClientRouter(newRegistry(), Idempotency(DefaultIdempotencyConfig(cache.NewMemoryCache(), zap.NewNop())))
	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	clientID := first.Header().Get(HeaderClientID)
	require.NotEmpty(t, clientID)

	do := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(HeaderClientID, clientID)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("/orders", "k1").Code)

	w := do("/orders", "k1")
	assert.Equal(t, http.StatusConflict, w.Code)
	var body resp.Response[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, resp.CodeConflict, body.Code)

	assert.Equal(t, http.StatusOK, do("/orders", "k2").Code)
	assert.Equal(t, http.StatusOK, do("/orders", "").Code)
	assert.Equal(t, http.StatusOK, do("/orders", "").Code)

	// 失败的请求释放幂等键
	assert.Equal(t, http.StatusBadGateway, do("/fail", "k3").Code)
	assert.Equal(t, http.StatusBadGateway, do("/fail", "k3").Code)
}

func TestIdempotency_DisabledCacheStillDeduplicates(t *testing.T) {
	r := newClientRouter(newRegistry(), Idempotency(DefaultIdempotencyConfig(cache.NewNullCache(), zap.NewNop())))
	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	clientID := first.Header().Get(HeaderClientID)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set(HeaderClientID, clientID)
		req.Header.Set(HeaderIdempotencyKey, "same-order")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusConflict}, codes)
}

func TestIdempotency_SkipsReads(t *testing.T) {
	r := newClientRouter(newRegistry(), Idempotency(DefaultIdempotencyConfig(cache.NewMemoryCache(), nil)))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(HeaderIdempotencyKey, "same")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
