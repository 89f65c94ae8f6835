package store

import (
	"context"
	"time"

	"github.com/MorseWayne/storefront/internal/domain"
)

const notConfiguredReason = "set SUPABASE_URL and SUPABASE_ANON_KEY or BACKEND_DRIVER=mysql"

// fallbackStore 后端未配置时的实现：目录读取返回内置数据，其余操作一律报配置错误
type fallbackStore struct {
	catalog Catalog
}

func newFallbackStore() *fallbackStore {
	return &fallbackStore{catalog: SampleCatalog()}
}

func notConfigured(op string) error {
	return &domain.ConfigurationError{Operation: op, Reason: notConfiguredReason}
}

func (s *fallbackStore) Mode() Mode {
	return ModeFallback
}

func (s *fallbackStore) Status(ctx context.Context) Status {
	return Status{
		Mode:               ModeFallback,
		Error:              notConfiguredReason,
		FallbackProducts:   len(s.catalog.Products),
		FallbackCategories: len(s.catalog.Categories),
		CheckedAt:          time.Now(),
	}
}

func (s *fallbackStore) ListProducts(ctx context.Context, categoryID *int64) ([]domain.Product, error) {
	return filterProducts(s.catalog.Products, categoryID), nil
}

func (s *fallbackStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if p, ok := findProduct(s.catalog.Products, id); ok {
		return p, nil
	}
	return nil, domain.NewNotFound("product", id)
}

// LookupProduct 静态数据的库存不代表真实库存
func (s *fallbackStore) LookupProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return nil, notConfigured("lookup product")
}

func (s *fallbackStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	out := append([]domain.Category(nil), s.catalog.Categories...)
	sortCategoriesByName(out)
	return out, nil
}

// SearchProducts 静态数据不提供查询能力
func (s *fallbackStore) SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error) {
	return nil, notConfigured("search products")
}

func (s *fallbackStore) GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	return nil, notConfigured("get cart items")
}

func (s *fallbackStore) AddToCart(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartItem, error) {
	return nil, notConfigured("add to cart")
}

func (s *fallbackStore) UpdateCartItem(ctx context.Context, userID string, itemID int64, quantity int) (*domain.CartItem, error) {
	return nil, notConfigured("update cart item")
}

func (s *fallbackStore) RemoveFromCart(ctx context.Context, userID string, itemID int64) error {
	return notConfigured("remove from cart")
}

func (s *fallbackStore) ClearCart(ctx context.Context, userID string) error {
	return notConfigured("clear cart")
}

func (s *fallbackStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return nil, notConfigured("get profile")
}

func (s *fallbackStore) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	return nil, notConfigured("create profile")
}

func (s *fallbackStore) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error) {
	return nil, notConfigured("update profile")
}

func (s *fallbackStore) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return nil, notConfigured("list orders")
}

func (s *fallbackStore) CreateOrder(ctx context.Context, userID string, draft domain.OrderDraft) (*domain.Order, error) {
	return nil, notConfigured("create order")
}

func (s *fallbackStore) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	return nil, notConfigured("sign in")
}

func (s *fallbackStore) SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, error) {
	return nil, notConfigured("sign up")
}

func (s *fallbackStore) SignOut(ctx context.Context, identity *domain.Identity) error {
	return notConfigured("sign out")
}

func (s *fallbackStore) SeedCatalog(ctx context.Context, categories []domain.Category, products []domain.Product) (int, int, error) {
	return 0, 0, notConfigured("seed catalog")
}
