package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
)

// liveStore 连接真实后端的实现。
// 目录读取失败时记录日志并返回内置数据；其余操作的后端故障包装为 ServiceError。
type liveStore struct {
	backend  Backend
	fallback Catalog
	logger   *zap.Logger
	now      func() time.Time
}

func newLiveStore(backend Backend, lg *zap.Logger) *liveStore {
	return &liveStore{
		backend:  backend,
		fallback: SampleCatalog(),
		logger:   lg,
		now:      time.Now,
	}
}

// wrap 将后端故障包装为 ServiceError，调用方输入导致的错误原样返回
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsClientError(err) || domain.IsServiceError(err) {
		return err
	}
	return &domain.ServiceError{Operation: op, Cause: err}
}

func (s *liveStore) degrade(op string, err error) {
	s.logger.Warn("backend read failed, serving bundled catalog",
		zap.String("operation", op),
		zap.String("backend", s.backend.Name()),
		zap.Error(err),
	)
}

func (s *liveStore) Mode() Mode {
	return ModeLive
}

func (s *liveStore) Status(ctx context.Context) Status {
	st := Status{
		Mode:               ModeLive,
		Backend:            s.backend.Name(),
		FallbackProducts:   len(s.fallback.Products),
		FallbackCategories: len(s.fallback.Categories),
		CheckedAt:          s.now(),
	}
	if err := s.backend.Ping(ctx); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Reachable = true
	return st
}

func (s *liveStore) ListProducts(ctx context.Context, categoryID *int64) ([]domain.Product, error) {
	products, err := s.backend.ListProducts(ctx, categoryID)
	if err != nil {
		s.degrade("list products", err)
		return filterProducts(s.fallback.Products, categoryID), nil
	}
	return products, nil
}

func (s *liveStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.backend.GetProduct(ctx, id)
	if err == nil {
		return p, nil
	}
	if domain.IsNotFound(err) {
		return nil, err
	}
	s.degrade("get product", err)
	if p, ok := findProduct(s.fallback.Products, id); ok {
		return p, nil
	}
	return nil, domain.NewNotFound("product", id)
}

func (s *liveStore) LookupProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.backend.GetProduct(WithFreshRead(ctx), id)
	if err != nil {
		return nil, wrap("lookup product", err)
	}
	return p, nil
}

func (s *liveStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.backend.ListCategories(ctx)
	if err != nil {
		s.degrade("list categories", err)
		out := append([]domain.Category(nil), s.fallback.Categories...)
		sortCategoriesByName(out)
		return out, nil
	}
	return categories, nil
}

func (s *liveStore) SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, domain.ErrEmptyKeyword
	}
	products, err := s.backend.SearchProducts(ctx, keyword)
	return products, wrap("search products", err)
}

func (s *liveStore) GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	items, err := s.backend.GetCartItems(ctx, userID)
	return items, wrap("get cart items", err)
}

func (s *liveStore) AddToCart(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartItem, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	item, err := s.backend.UpsertCartItem(ctx, userID, productID, quantity)
	return item, wrap("add to cart", err)
}

func (s *liveStore) UpdateCartItem(ctx context.Context, userID string, itemID int64, quantity int) (*domain.CartItem, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	item, err := s.backend.UpdateCartItem(ctx, userID, itemID, quantity)
	return item, wrap("update cart item", err)
}

func (s *liveStore) RemoveFromCart(ctx context.Context, userID string, itemID int64) error {
	return wrap("remove from cart", s.backend.DeleteCartItem(ctx, userID, itemID))
}

func (s *liveStore) ClearCart(ctx context.Context, userID string) error {
	return wrap("clear cart", s.backend.ClearCart(ctx, userID))
}

func (s *liveStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.backend.GetProfile(ctx, userID)
	if err != nil {
		return nil, wrap("get profile", err)
	}
	return p, nil
}

func (s *liveStore) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	p, err := s.backend.CreateProfile(ctx, profile)
	return p, wrap("create profile", err)
}

func (s *liveStore) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error) {
	p, err := s.backend.UpdateProfile(ctx, userID, patch)
	return p, wrap("update profile", err)
}

func (s *liveStore) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.backend.ListOrders(ctx, userID)
	return orders, wrap("list orders", err)
}

// CreateOrder 在写入前生成订单号、冻结商品快照并计算金额
func (s *liveStore) CreateOrder(ctx context.Context, userID string, draft domain.OrderDraft) (*domain.Order, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	order := draft.BuildOrder(userID, NewOrderNumber(now), now)

	created, err := s.backend.InsertOrder(ctx, order)
	if err != nil {
		return nil, wrap("create order", err)
	}
	s.logger.Info("order created",
		zap.String("user_id", userID),
		zap.String("order_number", created.OrderNumber),
		zap.String("total_amount", created.TotalAmount.StringFixed(2)),
	)
	return created, nil
}

func (s *liveStore) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	id, err := s.backend.SignIn(ctx, email, password)
	return id, wrap("sign in", err)
}

func (s *liveStore) SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, error) {
	id, err := s.backend.SignUp(ctx, email, password, fullName)
	return id, wrap("sign up", err)
}

func (s *liveStore) SignOut(ctx context.Context, identity *domain.Identity) error {
	if identity == nil {
		return nil
	}
	return wrap("sign out", s.backend.SignOut(ctx, identity.AccessToken))
}

// SeedCatalog 先按名称写入分类，再把商品的分类引用换成后端分配的 ID 后按 SKU 写入
func (s *liveStore) SeedCatalog(ctx context.Context, categories []domain.Category, products []domain.Product) (int, int, error) {
	saved, err := s.backend.UpsertCategories(ctx, categories)
	if err != nil {
		return 0, 0, wrap("seed categories", err)
	}

	idByName := make(map[string]int64, len(saved))
	for _, c := range saved {
		idByName[c.Name] = c.ID
	}
	remap := make(map[int64]int64, len(categories))
	for _, c := range categories {
		if id, ok := idByName[c.Name]; ok {
			remap[c.ID] = id
		}
	}

	rows := make([]domain.Product, 0, len(products))
	for _, p := range products {
		cp := p.Clone()
		cp.Category = nil
		if cp.CategoryID != nil {
			if id, ok := remap[*cp.CategoryID]; ok {
				cp.CategoryID = &id
			}
		}
		if err := cp.Validate(); err != nil {
			return len(saved), 0, fmt.Errorf("seed product %s: %w", cp.SKU, err)
		}
		rows = append(rows, *cp)
	}

	written, err := s.backend.UpsertProducts(ctx, rows)
	if err != nil {
		return len(saved), 0, wrap("seed products", err)
	}
	s.logger.Info("catalog seeded", zap.Int("categories", len(saved)), zap.Int("products", len(written)))
	return len(saved), len(written), nil
}
