package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/store"
)

// IdentityListener 在身份变化后被同步调用；identity 为 nil 表示已登出
type IdentityListener func(ctx context.Context, identity *domain.Identity)

// Session 持有一个客户端当前的登录身份及其个人资料
type Session struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time

	// notifyMu 串行化身份切换与监听器通知，保证监听器按切换顺序收到身份
	notifyMu sync.Mutex

	mu         sync.RWMutex
	identity   *domain.Identity
	profile    *domain.Profile
	generation uint64
	listeners  []IdentityListener
}

// NewSession 创建未登录的会话
func NewSession(st store.Store, lg *zap.Logger) *Session {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Session{store: st, logger: lg, now: time.Now}
}

// OnChange 注册身份变化监听器
func (s *Session) OnChange(l IdentityListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// setIdentity 替换身份并清空资料，然后按注册顺序通知监听器。
// 监听器不得再调用 SignIn/SignUp/SignOut。
func (s *Session) setIdentity(ctx context.Context, identity *domain.Identity) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.generation++
	s.identity = identity
	s.profile = nil
	listeners := append([]IdentityListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(ctx, identity)
	}
}

// SignIn 邮箱密码登录
func (s *Session) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	identity, err := s.store.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed in", zap.String("user_id", identity.UserID))
	s.setIdentity(ctx, identity)
	return identity, nil
}

// SignUp 注册并登录
func (s *Session) SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, error) {
	identity, err := s.store.SignUp(ctx, email, password, fullName)
	if err != nil {
		return nil, err
	}
	if identity.FullName == "" {
		identity.FullName = fullName
	}
	s.logger.Info("user signed up", zap.String("user_id", identity.UserID))
	s.setIdentity(ctx, identity)
	return identity, nil
}

// SignOut 登出。无论后端调用是否成功，本地身份和资料都会被清空，后端错误照常返回。
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.RLock()
	prev := s.identity
	s.mu.RUnlock()
	if prev == nil {
		return nil
	}

	err := s.store.SignOut(withIdentity(ctx, prev), prev)
	if err != nil {
		s.logger.Warn("backend sign out failed", zap.String("user_id", prev.UserID), zap.Error(err))
	}
	s.setIdentity(ctx, nil)
	return err
}

// Identity 当前身份；未登录或访问令牌已过期时返回 nil
func (s *Session) Identity() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil || s.identity.Expired(s.now()) {
		return nil
	}
	id := *s.identity
	return &id
}

func (s *Session) require(op string) (*domain.Identity, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil || s.identity.Expired(s.now()) {
		return nil, 0, &domain.AuthenticationRequiredError{Operation: op}
	}
	return s.identity, s.generation, nil
}

// Profile 返回当前身份的资料。首次访问时从外观层加载，没有资料行时创建一条默认资料。
func (s *Session) Profile(ctx context.Context) (*domain.Profile, error) {
	identity, gen, err := s.require("get profile")
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	cached := s.profile
	s.mu.RUnlock()
	if cached != nil {
		p := *cached
		return &p, nil
	}

	userCtx := withIdentity(ctx, identity)
	profile, err := s.store.GetProfile(userCtx, identity.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile, err = s.store.CreateProfile(userCtx, &domain.Profile{
			ID:       identity.UserID,
			FullName: identity.FullName,
		})
		if err != nil {
			return nil, err
		}
		s.logger.Info("default profile created", zap.String("user_id", identity.UserID))
	}

	s.remember(gen, profile)
	p := *profile
	return &p, nil
}

// UpdateProfile 局部更新资料；资料行不存在时先创建
func (s *Session) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.Profile, error) {
	identity, gen, err := s.require("update profile")
	if err != nil {
		return nil, err
	}
	if _, err := s.Profile(ctx); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return s.Profile(ctx)
	}

	profile, err := s.store.UpdateProfile(withIdentity(ctx, identity), identity.UserID, patch)
	if err != nil {
		return nil, err
	}
	s.remember(gen, profile)
	p := *profile
	return &p, nil
}

// remember 缓存资料，身份已经变化时丢弃
func (s *Session) remember(gen uint64, profile *domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	p := *profile
	s.profile = &p
}

// View 当前身份与已缓存的资料
func (s *Session) View() domain.SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := domain.SessionView{}
	if s.identity != nil && !s.identity.Expired(s.now()) {
		id := *s.identity
		view.Identity = &id
		if s.profile != nil {
			p := *s.profile
			view.Profile = &p
		}
	}
	return view
}
