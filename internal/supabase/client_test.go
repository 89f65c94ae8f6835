package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/store"
)

const anonKey = "anon-test-key"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL + "/", AnonKey: anonKey, Timeout: time.Second}, nil)
}

const productJSON = `[{
	"id": 3, "name": "智能手表", "description": "多功能运动健康智能手表",
	"price": 1299, "original_price": 1599, "sku": "WATCH001", "stock_quantity": 30,
	"category_id": 1, "images": ["a.jpg"],
	"specifications": {"color": ["黑色", "银色"], "screen": "1.4英寸AMOLED"},
	"is_active": true, "created_at": "2024-01-15T08:00:00+00:00", "updated_at": "2024-01-15T08:00:00+00:00",
	"category": {"id": 1, "name": "电子产品", "created_at": "2024-01-15T08:00:00+00:00", "updated_at": "2024-01-15T08:00:00+00:00"}
}]`

func TestClient_ListProductsBuildsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/products", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, productSelect, q.Get("select"))
		assert.Equal(t, "eq.true", q.Get("is_active"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "eq.2", q.Get("category_id"))
		assert.Equal(t, anonKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+anonKey, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, productJSON)
	})

	cat := int64(2)
	products, err := c.ListProducts(context.Background(), &cat)
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.True(t, p.Price.Equal(decimal.NewFromInt(1299)))
	assert.True(t, p.HasDiscount())
	require.Len(t, p.Specifications, 2)
	assert.Equal(t, "color", p.Specifications[0].Key)
	assert.Equal(t, domain.SpecList, p.Specifications[0].Value.Kind)
	assert.Equal(t, "1.4英寸AMOLED", p.Specifications[1].Value.Single)
	require.NotNil(t, p.Category)
	assert.Equal(t, "电子产品", p.Category.Name)
}

func TestClient_GetProductNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.42", r.URL.Query().Get("id"))
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.GetProduct(context.Background(), 42)
	assert.True(t, domain.IsNotFound(err))
}

func TestClient_SearchQuotesKeyword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `(name.ilike."*a,b*",description.ilike."*a,b*")`, r.URL.Query().Get("or"))
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.SearchProducts(context.Background(), "a,b")
	require.NoError(t, err)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":"PGRST100","message":"failed to parse filter"}`)
	})

	_, err := c.ListCategories(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "PGRST100", apiErr.Code)
	assert.Equal(t, "failed to parse filter", apiErr.Message)
}

func TestClient_UpsertCartItemUsesConflictTarget(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/cart_items", r.URL.Path)
		assert.Equal(t, "user_id,product_id", r.URL.Query().Get("on_conflict"))
		assert.Equal(t, preferMerge, r.Header.Get("Prefer"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		var rows []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "u1", rows[0]["user_id"])
		assert.EqualValues(t, 3, rows[0]["quantity"])

		_, _ = io.WriteString(w, `[{"id": 9, "user_id": "u1", "product_id": 5, "quantity": 3,
			"created_at": "2024-01-15T08:00:00Z", "updated_at": "2024-01-15T08:00:00Z",
			"product": {"id": 5, "name": "无线耳机", "price": 599, "sku": "EAR001", "stock_quantity": 80, "images": [], "is_active": true,
				"created_at": "2024-01-15T08:00:00Z", "updated_at": "2024-01-15T08:00:00Z"}}]`)
	})

	ctx := store.WithAccessToken(context.Background(), "user-token")
	item, err := c.UpsertCartItem(ctx, "u1", 5, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(9), item.ID)
	require.NotNil(t, item.Product)
	assert.True(t, item.Subtotal().Equal(decimal.NewFromInt(1797)))
}

func TestClient_UpdateCartItemMissingRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.7", r.URL.Query().Get("id"))
		assert.Equal(t, "eq.u1", r.URL.Query().Get("user_id"))
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.UpdateCartItem(context.Background(), "u1", 7, 2)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
}

func TestClient_GetProfileAbsent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	p, err := c.GetProfile(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestClient_InsertOrderWritesItems(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/rest/v1/orders":
			_, _ = io.WriteString(w, `[{"id": 77, "user_id": "u1", "order_number": "ORD1", "total_amount": 198,
				"status": "pending", "payment_status": "pending", "shipping_address": {"city": "杭州市"},
				"created_at": "2024-01-15T08:00:00Z", "updated_at": "2024-01-15T08:00:00Z"}]`)
		case "/rest/v1/order_items":
			var rows []map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
			assert.EqualValues(t, 77, rows[0]["order_id"])
			_, _ = io.WriteString(w, `[{"id": 1, "order_id": 77, "product_id": 4, "quantity": 2, "unit_price": 99, "total_price": 198,
				"product_snapshot": {"id": 4, "name": "瑜伽垫", "price": 99, "sku": "YOGA001", "stock_quantity": 200, "images": [], "is_active": true,
					"created_at": "2024-01-15T08:00:00Z", "updated_at": "2024-01-15T08:00:00Z"}}]`)
		}
	})

	order := &domain.Order{
		UserID: "u1", OrderNumber: "ORD1", TotalAmount: decimal.NewFromInt(198),
		Status: domain.OrderStatusPending, PaymentStatus: domain.PaymentStatusPending,
		Items: []domain.OrderItem{{ProductID: 4, Quantity: 2, UnitPrice: decimal.NewFromInt(99), TotalPrice: decimal.NewFromInt(198)}},
	}
	saved, err := c.InsertOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, int64(77), saved.ID)
	require.Len(t, saved.Items, 1)
	assert.Equal(t, "瑜伽垫", saved.Items[0].ProductSnapshot.Name)
	assert.Equal(t, []string{"POST /rest/v1/orders", "POST /rest/v1/order_items"}, paths)
}

func TestClient_InsertOrderRollsBackHeader(t *testing.T) {
	var deleted bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete:
			deleted = r.URL.Query().Get("id") == "eq.77"
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/rest/v1/orders":
			_, _ = io.WriteString(w, `[{"id": 77, "order_number": "ORD1", "total_amount": 1, "status": "pending", "payment_status": "pending",
				"shipping_address": {}, "created_at": "2024-01-15T08:00:00Z", "updated_at": "2024-01-15T08:00:00Z"}]`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"message":"boom"}`)
		}
	})

	_, err := c.InsertOrder(context.Background(), &domain.Order{Items: []domain.OrderItem{{ProductID: 1, Quantity: 1}}})
	require.Error(t, err)
	assert.True(t, deleted)
}

func TestClient_SignIn(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "right" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"at","refresh_token":"rt","expires_at":1900000000,
			"user":{"id":"u1","email":"a@b.com","user_metadata":{"full_name":"张三"}}}`)
	})

	id, err := c.SignIn(context.Background(), "a@b.com", "right")
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "张三", id.FullName)
	assert.Equal(t, "at", id.AccessToken)
	assert.Equal(t, int64(1900000000), id.ExpiresAt.Unix())

	_, err = c.SignIn(context.Background(), "a@b.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestClient_SignUpWithoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		var body struct {
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "李四", body.Data["full_name"])
		_, _ = io.WriteString(w, `{"id":"u2","email":"c@d.com"}`)
	})

	id, err := c.SignUp(context.Background(), "c@d.com", "secret1", "李四")
	require.NoError(t, err)
	assert.Equal(t, "u2", id.UserID)
	assert.Equal(t, "李四", id.FullName)
	assert.Empty(t, id.AccessToken)
}

func TestClient_SignOutSendsUserToken(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.SignOut(context.Background(), "at"))
	assert.True(t, called)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("whatever-secret"))
	require.NoError(t, err)

	assert.True(t, tokenExpiry(tok).Equal(exp))
	assert.True(t, tokenExpiry("not-a-token").IsZero())
}

func TestClient_HonorsCallerDeadline(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.ListCategories(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestClient_ConcurrentCallersKeepOwnToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// 回显请求携带的令牌，由调用方核对
		_, _ = io.WriteString(w, `[{"id":1,"user_id":"`+r.Header.Get("Authorization")+`","product_id":1,"quantity":1}]`)
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("user-%d", i)
			ctx := store.WithAccessToken(context.Background(), token)
			items, err := c.GetCartItems(ctx, token)
			if assert.NoError(t, err) && assert.Len(t, items, 1) {
				assert.Equal(t, "Bearer "+token, items[0].UserID)
			}
		}(i)
	}
	wg.Wait()
}
