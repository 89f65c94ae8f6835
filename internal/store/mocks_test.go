package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MorseWayne/storefront/internal/domain"
)

var errBackendDown = errors.New("connection refused")

// fakeBackend 基于内存 map 的后端
type fakeBackend struct {
	mu         sync.Mutex
	products   map[int64]domain.Product
	categories map[int64]domain.Category
	cart       map[int64]domain.CartItem
	profiles   map[string]domain.Profile
	orders     []domain.Order
	nextID     int64
	fail       map[string]error // 按方法名注入故障
	calls      map[string]int
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		products:   make(map[int64]domain.Product),
		categories: make(map[int64]domain.Category),
		cart:       make(map[int64]domain.CartItem),
		profiles:   make(map[string]domain.Profile),
		nextID:     100,
		fail:       make(map[string]error),
		calls:      make(map[string]int),
	}
	catalog := SampleCatalog()
	for _, c := range catalog.Categories {
		b.categories[c.ID] = c
	}
	for _, p := range catalog.Products {
		b.products[p.ID] = p
	}
	return b
}

func (b *fakeBackend) enter(method string) error {
	b.calls[method]++
	return b.fail[method]
}

func (b *fakeBackend) id() int64 {
	b.nextID++
	return b.nextID
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enter("Ping")
}

func (b *fakeBackend) ListProducts(ctx context.Context, categoryID *int64) ([]domain.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListProducts"); err != nil {
		return nil, err
	}
	all := make([]domain.Product, 0, len(b.products))
	for _, p := range b.products {
		all = append(all, p)
	}
	return filterProducts(all, categoryID), nil
}

func (b *fakeBackend) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("GetProduct"); err != nil {
		return nil, err
	}
	p, ok := b.products[id]
	if !ok {
		return nil, domain.NewNotFound("product", id)
	}
	return p.Clone(), nil
}

func (b *fakeBackend) ListCategories(ctx context.Context) ([]domain.Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListCategories"); err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(b.categories))
	for _, c := range b.categories {
		out = append(out, c)
	}
	sortCategoriesByName(out)
	return out, nil
}

func (b *fakeBackend) SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("SearchProducts"); err != nil {
		return nil, err
	}
	kw := strings.ToLower(keyword)
	var out []domain.Product
	for _, p := range b.products {
		if p.IsActive && (strings.Contains(strings.ToLower(p.Name), kw) || strings.Contains(strings.ToLower(p.Description), kw)) {
			out = append(out, p)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (b *fakeBackend) UpsertCategories(ctx context.Context, categories []domain.Category) ([]domain.Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("UpsertCategories"); err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(categories))
	for _, c := range categories {
		found := false
		for id, existing := range b.categories {
			if existing.Name == c.Name {
				c.ID = id
				found = true
				break
			}
		}
		if !found {
			c.ID = b.id()
		}
		b.categories[c.ID] = c
		out = append(out, c)
	}
	return out, nil
}

func (b *fakeBackend) UpsertProducts(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("UpsertProducts"); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		found := false
		for id, existing := range b.products {
			if existing.SKU == p.SKU {
				p.ID = id
				found = true
				break
			}
		}
		if !found {
			p.ID = b.id()
		}
		b.products[p.ID] = p
		out = append(out, p)
	}
	return out, nil
}

func (b *fakeBackend) GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("GetCartItems"); err != nil {
		return nil, err
	}
	var out []domain.CartItem
	for _, it := range b.cart {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *fakeBackend) UpsertCartItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("UpsertCartItem"); err != nil {
		return nil, err
	}
	p, ok := b.products[productID]
	if !ok {
		return nil, domain.NewNotFound("product", productID)
	}
	for id, it := range b.cart {
		if it.UserID == userID && it.ProductID == productID {
			it.Quantity = quantity
			b.cart[id] = it
			return &it, nil
		}
	}
	it := domain.CartItem{ID: b.id(), UserID: userID, ProductID: productID, Quantity: quantity, Product: p.Clone()}
	b.cart[it.ID] = it
	return &it, nil
}

func (b *fakeBackend) UpdateCartItem(ctx context.Context, userID string, itemID int64, quantity int) (*domain.CartItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("UpdateCartItem"); err != nil {
		return nil, err
	}
	it, ok := b.cart[itemID]
	if !ok || it.UserID != userID {
		return nil, domain.ErrCartItemNotFound
	}
	it.Quantity = quantity
	b.cart[itemID] = it
	return &it, nil
}

func (b *fakeBackend) DeleteCartItem(ctx context.Context, userID string, itemID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("DeleteCartItem"); err != nil {
		return err
	}
	if it, ok := b.cart[itemID]; ok && it.UserID == userID {
		delete(b.cart, itemID)
	}
	return nil
}

func (b *fakeBackend) ClearCart(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ClearCart"); err != nil {
		return err
	}
	for id, it := range b.cart {
		if it.UserID == userID {
			delete(b.cart, id)
		}
	}
	return nil
}

func (b *fakeBackend) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("GetProfile"); err != nil {
		return nil, err
	}
	p, ok := b.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (b *fakeBackend) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("CreateProfile"); err != nil {
		return nil, err
	}
	p := *profile
	b.profiles[p.ID] = p
	return &p, nil
}

func (b *fakeBackend) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("UpdateProfile"); err != nil {
		return nil, err
	}
	p, ok := b.profiles[userID]
	if !ok {
		return nil, domain.NewNotFound("profile", userID)
	}
	patch.Apply(&p)
	b.profiles[userID] = p
	return &p, nil
}

func (b *fakeBackend) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListOrders"); err != nil {
		return nil, err
	}
	var out []domain.Order
	for _, o := range b.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (b *fakeBackend) InsertOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("InsertOrder"); err != nil {
		return nil, err
	}
	o := *order
	o.ID = b.id()
	for i := range o.Items {
		o.Items[i].ID = b.id()
		o.Items[i].OrderID = o.ID
	}
	b.orders = append(b.orders, o)
	return &o, nil
}

func (b *fakeBackend) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("SignIn"); err != nil {
		return nil, err
	}
	if password != "secret123" {
		return nil, domain.ErrInvalidCredentials
	}
	return &domain.Identity{UserID: "user-" + email, Email: email, AccessToken: "token-" + email, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (b *fakeBackend) SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("SignUp"); err != nil {
		return nil, err
	}
	return &domain.Identity{UserID: "user-" + email, Email: email, FullName: fullName, AccessToken: "token-" + email}, nil
}

func (b *fakeBackend) SignOut(ctx context.Context, accessToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enter("SignOut")
}

func (b *fakeBackend) setFail(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[method] = err
}

func (b *fakeBackend) callCount(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}
