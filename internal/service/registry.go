package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/store"
)

// Client 一个浏览器客户端的会话状态与购物车状态，两者只属于这个客户端
type Client struct {
	ID      string
	Session *Session
	Cart    *Cart

	store    store.Store
	logger   *zap.Logger
	lastSeen time.Time
}

// Registry 按客户端 ID 管理 Client，空闲超时的客户端在访问时被惰性清理
type Registry struct {
	store   store.Store
	logger  *zap.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	clients   map[string]*Client
	lastSweep time.Time
}

// NewRegistry 创建客户端注册表
func NewRegistry(st store.Store, idleTTL time.Duration, lg *zap.Logger) *Registry {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Registry{
		store:   st,
		logger:  lg,
		idleTTL: idleTTL,
		now:     time.Now,
		clients: make(map[string]*Client),
	}
}

// newClient 创建客户端并把购物车注册为会话身份的监听器
func (r *Registry) newClient(id string) *Client {
	lg := r.logger.With(zap.String("client_id", id))
	session := NewSession(r.store, lg)
	cart := NewCart(r.store, lg)
	cart.Follow(session)
	return &Client{ID: id, Session: session, Cart: cart, store: r.store, logger: lg}
}

// Resolve 返回 clientID 对应的客户端。未登记的 clientID 一律不采用，
// 由服务端分配新 ID 创建客户端；第二个返回值表示是否新建。
func (r *Registry) Resolve(clientID string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepLocked(now)

	if c, ok := r.clients[clientID]; ok {
		c.lastSeen = now
		return c, false
	}
	id := uuid.NewString()
	c := r.newClient(id)
	c.lastSeen = now
	r.clients[id] = c
	return c, true
}

// Len 当前客户端数量
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep 立即清理空闲客户端，返回清理数量
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSweep = time.Time{}
	return r.sweepLocked(r.now())
}

// sweepLocked 最多每 idleTTL/2 扫描一次
func (r *Registry) sweepLocked(now time.Time) int {
	if r.idleTTL <= 0 || now.Sub(r.lastSweep) < r.idleTTL/2 {
		return 0
	}
	r.lastSweep = now
	removed := 0
	for id, c := range r.clients {
		if now.Sub(c.lastSeen) > r.idleTTL {
			delete(r.clients, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("idle clients swept", zap.Int("removed", removed), zap.Int("remaining", len(r.clients)))
	}
	return removed
}
