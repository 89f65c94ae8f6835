// Package service 实现店铺前台的状态层：每个客户端的会话状态与购物车状态，
// 以及首页、商品详情、结算等读写用例。所有数据访问都经过 store.Store。
package service

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/store"
)

// Cart 是一个用户购物车在内存中的镜像。
// 镜像只在外观层确认写入成功后更新；绑定新身份时整体重载。
type Cart struct {
	store  store.Store
	logger *zap.Logger

	// current 返回会话的当前身份；设置后每次写操作前都与绑定身份核对
	current func() *domain.Identity

	mu         sync.RWMutex
	identity   *domain.Identity
	items      []domain.CartItem
	generation uint64
	loading    int
	pending    map[int64]struct{} // 有未完成写操作的购物车行
}

// NewCart 创建未绑定身份的购物车
func NewCart(st store.Store, lg *zap.Logger) *Cart {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Cart{
		store:   st,
		logger:  lg,
		items:   []domain.CartItem{},
		pending: make(map[int64]struct{}),
	}
}

// withIdentity 把身份的访问令牌放入上下文，后端驱动以该用户的身份发起请求
func withIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return store.WithAccessToken(ctx, identity.AccessToken)
}

// Follow 让购物车跟随会话：身份变化时重新绑定，写操作前核对会话的当前身份
func (c *Cart) Follow(s *Session) {
	c.mu.Lock()
	c.current = s.Identity
	c.mu.Unlock()
	s.OnChange(func(ctx context.Context, identity *domain.Identity) {
		if err := c.Bind(ctx, identity); err != nil {
			c.logger.Warn("cart reload after identity change failed", zap.Error(err))
		}
	})
}

// Bind 切换购物车所属的身份。nil 清空镜像；否则从外观层整体重载。
// 旧身份下发起但尚未返回的调用结果都会被丢弃。
func (c *Cart) Bind(ctx context.Context, identity *domain.Identity) error {
	c.mu.Lock()
	c.generation++
	c.identity = identity
	c.items = []domain.CartItem{}
	c.pending = make(map[int64]struct{})
	c.mu.Unlock()

	if identity == nil {
		return nil
	}
	return c.Refresh(ctx)
}

// Refresh 按当前身份重新加载购物车
func (c *Cart) Refresh(ctx context.Context) error {
	identity, gen, err := c.begin("refresh cart")
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.loading++
	c.mu.Unlock()

	items, err := c.store.GetCartItems(withIdentity(ctx, identity), identity.UserID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	if gen != c.generation {
		c.logger.Debug("discarding stale cart reload", zap.String("user_id", identity.UserID))
		return nil
	}
	if err != nil {
		return err
	}
	c.items = items
	return nil
}

// begin 读取当前身份与代数；未绑定身份时返回 AuthenticationRequiredError
// 跟随会话时，会话身份已过期或已换人也视为未登录
func (c *Cart) begin(op string) (*domain.Identity, uint64, error) {
	c.mu.RLock()
	current := c.current
	identity, gen := c.identity, c.generation
	c.mu.RUnlock()

	if identity == nil {
		return nil, 0, &domain.AuthenticationRequiredError{Operation: op}
	}
	if current != nil {
		if now := current(); now == nil || now.UserID != identity.UserID {
			return nil, 0, &domain.AuthenticationRequiredError{Operation: op}
		}
	}
	return identity, gen, nil
}

// checkStock 在商品快照已知时校验上架状态与库存
func checkStock(p *domain.Product, quantity int) error {
	if p == nil {
		return nil
	}
	if !p.IsActive {
		return domain.ErrProductInactive
	}
	if quantity > p.StockQuantity {
		return domain.ErrInsufficientStock
	}
	return nil
}

// AddToCart 加入购物车。同一商品已在购物车中时数量被覆盖为 quantity，镜像中仍只有一行。
func (c *Cart) AddToCart(ctx context.Context, productID int64, quantity int) (*domain.CartItem, error) {
	identity, gen, err := c.begin("add to cart")
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}

	product, err := c.store.LookupProduct(ctx, productID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, err
		}
		// 拿不到真实商品时只做数量下限校验
		c.logger.Warn("product lookup failed before add to cart",
			zap.Int64("product_id", productID), zap.Error(err))
		product = nil
	}
	if err := checkStock(product, quantity); err != nil {
		return nil, err
	}

	item, err := c.store.AddToCart(withIdentity(ctx, identity), identity.UserID, productID, quantity)
	if err != nil {
		return nil, err
	}
	if item.Product == nil && product != nil {
		item.Product = product
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return item, nil
	}
	for i := range c.items {
		if c.items[i].ProductID == item.ProductID {
			c.items[i] = *item
			return item, nil
		}
	}
	c.items = append(c.items, *item)
	return item, nil
}

// acquire 标记购物车行正在写入；行不存在或已有写操作时返回错误
func (c *Cart) acquire(itemID int64) (*domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.indexOf(itemID)
	if idx < 0 {
		return nil, domain.ErrCartItemNotFound
	}
	if _, busy := c.pending[itemID]; busy {
		return nil, domain.ErrCartItemBusy
	}
	c.pending[itemID] = struct{}{}
	item := c.items[idx]
	return &item, nil
}

func (c *Cart) release(itemID int64, gen uint64) {
	if gen == c.generation {
		delete(c.pending, itemID)
	}
}

func (c *Cart) indexOf(itemID int64) int {
	for i := range c.items {
		if c.items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// UpdateQuantity 修改购物车行数量；该行的上一次写操作未完成时返回 ErrCartItemBusy
func (c *Cart) UpdateQuantity(ctx context.Context, itemID int64, quantity int) (*domain.CartItem, error) {
	identity, gen, err := c.begin("update cart item")
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	current, err := c.acquire(itemID)
	if err != nil {
		return nil, err
	}

	if err := checkStock(current.Product, quantity); err != nil {
		c.mu.Lock()
		c.release(itemID, gen)
		c.mu.Unlock()
		return nil, err
	}

	updated, err := c.store.UpdateCartItem(withIdentity(ctx, identity), identity.UserID, itemID, quantity)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.release(itemID, gen)
	if err != nil {
		return nil, err
	}
	if updated.Product == nil {
		updated.Product = current.Product
	}
	if gen != c.generation {
		return updated, nil
	}
	if idx := c.indexOf(itemID); idx >= 0 {
		c.items[idx] = *updated
	}
	return updated, nil
}

// RemoveFromCart 删除一行，且只删除这一行
func (c *Cart) RemoveFromCart(ctx context.Context, itemID int64) error {
	identity, gen, err := c.begin("remove from cart")
	if err != nil {
		return err
	}
	if _, err := c.acquire(itemID); err != nil {
		return err
	}

	err = c.store.RemoveFromCart(withIdentity(ctx, identity), identity.UserID, itemID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.release(itemID, gen)
	if err != nil {
		return err
	}
	if gen != c.generation {
		return nil
	}
	if idx := c.indexOf(itemID); idx >= 0 {
		c.items = append(c.items[:idx], c.items[idx+1:]...)
	}
	return nil
}

// ClearCart 清空购物车
func (c *Cart) ClearCart(ctx context.Context) error {
	identity, gen, err := c.begin("clear cart")
	if err != nil {
		return err
	}
	if err := c.store.ClearCart(withIdentity(ctx, identity), identity.UserID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.items = []domain.CartItem{}
	}
	return nil
}

// Items 返回镜像的副本
func (c *Cart) Items() []domain.CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// TotalItems 所有行数量之和
func (c *Cart) TotalItems() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return totalItems(c.items)
}

// TotalPrice 单价乘数量之和；缺少商品快照的行按 0 计
func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return totalPrice(c.items)
}

// IsInCart 判断商品是否在购物车中
func (c *Cart) IsInCart(productID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return true
		}
	}
	return false
}

// Loading 是否有重载正在进行
func (c *Cart) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading > 0
}

// Summary 一次性返回镜像与派生值，三者来自同一个快照
func (c *Cart) Summary() domain.CartSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]domain.CartItem, len(c.items))
	copy(items, c.items)
	total := totalPrice(items)
	shipping := domain.ShippingFee(total)
	return domain.CartSummary{
		Items:       items,
		TotalItems:  totalItems(items),
		TotalPrice:  total,
		ShippingFee: shipping,
		GrandTotal:  total.Add(shipping),
		Loading:     c.loading > 0,
	}
}

func totalItems(items []domain.CartItem) int {
	n := 0
	for i := range items {
		n += items[i].Quantity
	}
	return n
}

func totalPrice(items []domain.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for i := range items {
		sum = sum.Add(items[i].Subtotal())
	}
	return sum
}
