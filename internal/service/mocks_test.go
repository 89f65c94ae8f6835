package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/store"
)

var errBackendDown = errors.New("connection refused")

// mockStore 是 store.Store 的内存模拟实现，可按方法注入错误或阻塞
type mockStore struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	cats     []domain.Category
	cart     map[int64]domain.CartItem
	profiles map[string]domain.Profile
	orders   []domain.Order
	accounts map[string]string // email -> password
	nextID   int64

	fail   map[string]error
	gates  map[string]chan struct{} // 非 nil 时方法在返回前等待通道关闭
	calls  map[string]int
	tokens map[string]string // 每次调用看到的访问令牌
}

var _ store.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	m := &mockStore{
		products: make(map[int64]domain.Product),
		cart:     make(map[int64]domain.CartItem),
		profiles: make(map[string]domain.Profile),
		accounts: map[string]string{"alice@example.com": "secret123"},
		nextID:   100,
		fail:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
		tokens:   make(map[string]string),
	}
	catalog := store.SampleCatalog()
	m.cats = catalog.Categories
	for _, p := range catalog.Products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockStore) setFail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[method] = err
}

// gate 让 method 阻塞直到返回的函数被调用
func (m *mockStore) gate(method string) func() {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gates[method] = ch
	m.mu.Unlock()
	return func() { close(ch) }
}

func (m *mockStore) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockStore) tokenSeen(method string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[method]
}

// enter 记录调用并返回注入的错误；gate 在锁外等待
func (m *mockStore) enter(ctx context.Context, method string) error {
	m.mu.Lock()
	m.calls[method]++
	m.tokens[method] = store.AccessTokenFrom(ctx)
	ch := m.gates[method]
	err := m.fail[method]
	m.mu.Unlock()
	if ch != nil {
		<-ch
	}
	return err
}

func (m *mockStore) Mode() store.Mode { return store.ModeLive }

func (m *mockStore) Status(ctx context.Context) store.Status {
	return store.Status{Mode: store.ModeLive, Backend: "mock", Reachable: true, CheckedAt: time.Now()}
}

func (m *mockStore) ListProducts(ctx context.Context, categoryID *int64) ([]domain.Product, error) {
	if err := m.enter(ctx, "ListProducts"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.products))
	for id := range m.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []domain.Product
	for _, id := range ids {
		p := m.products[id]
		if !p.IsActive {
			continue
		}
		if categoryID != nil && !p.InCategory(*categoryID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if err := m.enter(ctx, "GetProduct"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.NewNotFound("product", id)
	}
	return p.Clone(), nil
}

func (m *mockStore) LookupProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if err := m.enter(ctx, "LookupProduct"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.NewNotFound("product", id)
	}
	return p.Clone(), nil
}

func (m *mockStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if err := m.enter(ctx, "ListCategories"); err != nil {
		return nil, err
	}
	return append([]domain.Category(nil), m.cats...), nil
}

func (m *mockStore) SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error) {
	if err := m.enter(ctx, "SearchProducts"); err != nil {
		return nil, err
	}
	if keyword == "" {
		return nil, domain.ErrEmptyKeyword
	}
	return []domain.Product{}, nil
}

func (m *mockStore) GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	if err := m.enter(ctx, "GetCartItems"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []domain.CartItem{}
	for id := int64(0); id <= m.nextID; id++ {
		if it, ok := m.cart[id]; ok && it.UserID == userID {
			items = append(items, it)
		}
	}
	return items, nil
}

func (m *mockStore) AddToCart(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartItem, error) {
	if err := m.enter(ctx, "AddToCart"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, domain.NewNotFound("product", productID)
	}
	for id, it := range m.cart {
		if it.UserID == userID && it.ProductID == productID {
			it.Quantity = quantity
			m.cart[id] = it
			return &it, nil
		}
	}
	m.nextID++
	it := domain.CartItem{ID: m.nextID, UserID: userID, ProductID: productID, Quantity: quantity, Product: p.Clone()}
	m.cart[it.ID] = it
	return &it, nil
}

func (m *mockStore) UpdateCartItem(ctx context.Context, userID string, itemID int64, quantity int) (*domain.CartItem, error) {
	if err := m.enter(ctx, "UpdateCartItem"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.cart[itemID]
	if !ok || it.UserID != userID {
		return nil, domain.ErrCartItemNotFound
	}
	it.Quantity = quantity
	m.cart[itemID] = it
	return &it, nil
}

func (m *mockStore) RemoveFromCart(ctx context.Context, userID string, itemID int64) error {
	if err := m.enter(ctx, "RemoveFromCart"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.cart[itemID]; ok && it.UserID == userID {
		delete(m.cart, itemID)
	}
	return nil
}

func (m *mockStore) ClearCart(ctx context.Context, userID string) error {
	if err := m.enter(ctx, "ClearCart"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, it := range m.cart {
		if it.UserID == userID {
			delete(m.cart, id)
		}
	}
	return nil
}

func (m *mockStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if err := m.enter(ctx, "GetProfile"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockStore) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	if err := m.enter(ctx, "CreateProfile"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *profile
	m.profiles[p.ID] = p
	return &p, nil
}

func (m *mockStore) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error) {
	if err := m.enter(ctx, "UpdateProfile"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, domain.NewNotFound("profile", userID)
	}
	patch.Apply(&p)
	m.profiles[userID] = p
	return &p, nil
}

func (m *mockStore) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if err := m.enter(ctx, "ListOrders"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockStore) CreateOrder(ctx context.Context, userID string, draft domain.OrderDraft) (*domain.Order, error) {
	if err := m.enter(ctx, "CreateOrder"); err != nil {
		return nil, err
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	order := draft.BuildOrder(userID, store.NewOrderNumber(now), now)
	m.nextID++
	order.ID = m.nextID
	m.orders = append(m.orders, *order)
	return order, nil
}

func (m *mockStore) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	if err := m.enter(ctx, "SignIn"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if pw, ok := m.accounts[email]; !ok || pw != password {
		return nil, domain.ErrInvalidCredentials
	}
	return testIdentity(email), nil
}

func (m *mockStore) SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, error) {
	if err := m.enter(ctx, "SignUp"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[email]; ok {
		return nil, domain.ErrAccountExists
	}
	m.accounts[email] = password
	return testIdentity(email), nil
}

func (m *mockStore) SignOut(ctx context.Context, identity *domain.Identity) error {
	return m.enter(ctx, "SignOut")
}

func (m *mockStore) SeedCatalog(ctx context.Context, categories []domain.Category, products []domain.Product) (int, int, error) {
	return len(categories), len(products), m.enter(ctx, "SeedCatalog")
}

// testIdentity 按邮箱生成固定的身份
func testIdentity(email string) *domain.Identity {
	return &domain.Identity{
		UserID:      "user-" + email,
		Email:       email,
		AccessToken: "token-" + email,
	}
}

// seedCartItem 直接写入一行购物车，绕过外观层
func (m *mockStore) seedCartItem(userID string, productID int64, quantity int) domain.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := m.products[productID]
	it := domain.CartItem{ID: m.nextID, UserID: userID, ProductID: productID, Quantity: quantity, Product: p.Clone()}
	m.cart[it.ID] = it
	return it
}

func (m *mockStore) setProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func mustDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(fmt.Sprintf("bad decimal %q: %v", v, err))
	}
	return d
}
