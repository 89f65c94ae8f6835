// Package token 提供自建后端使用的 JWT 令牌签发、验证与吊销。
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/domain"
)

// JWT相关错误定义
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenNotReady = errors.New("token used before valid")
	ErrTokenRevoked  = errors.New("token revoked")
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Claims 定义JWT载荷结构
type Claims struct {
	UserID string          `json:"user_id"`
	Email  string          `json:"email"`
	Role   domain.UserRole `json:"role"`
	Type   string          `json:"type"` // "access" 或 "refresh"
	jwt.RegisteredClaims
}

// Pair 表示访问令牌和刷新令牌对
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // 访问令牌过期时间
}

// Config 令牌配置
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service 定义令牌服务接口
type Service interface {
	Issue(account *domain.Account) (*Pair, error)
	ValidateAccess(ctx context.Context, tokenString string) (*Claims, error)
	ValidateRefresh(ctx context.Context, tokenString string) (*Claims, error)
	Revoke(ctx context.Context, tokenString string) error
}

type service struct {
	cfg     Config
	revoked cache.Cache
	logger  *zap.Logger
	now     func() time.Time
}

// NewService 创建令牌服务；revoked 保存已吊销令牌的 jti，直到令牌自然过期
func NewService(cfg Config, revoked cache.Cache, lg *zap.Logger) Service {
	if revoked == nil {
		revoked = cache.NewNullCache()
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &service{cfg: cfg, revoked: revoked, logger: lg, now: time.Now}
}

func (s *service) sign(account *domain.Account, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := &Claims{
		UserID: account.ID,
		Email:  account.Email,
		Role:   account.Role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, exp, nil
}

// Issue 为账户签发访问令牌和刷新令牌
func (s *service) Issue(account *domain.Account) (*Pair, error) {
	now := s.now()
	access, exp, err := s.sign(account, typeAccess, now, s.cfg.AccessTTL)
	if err != nil {
		s.logger.Error("failed to sign access token", zap.Error(err))
		return nil, err
	}
	refresh, _, err := s.sign(account, typeRefresh, now, s.cfg.RefreshTTL)
	if err != nil {
		s.logger.Error("failed to sign refresh token", zap.Error(err))
		return nil, err
	}
	s.logger.Debug("token pair issued", zap.String("user_id", account.ID))
	return &Pair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

func (s *service) ValidateAccess(ctx context.Context, tokenString string) (*Claims, error) {
	return s.validate(ctx, tokenString, typeAccess)
}

func (s *service) ValidateRefresh(ctx context.Context, tokenString string) (*Claims, error) {
	return s.validate(ctx, tokenString, typeRefresh)
}

func (s *service) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotReady
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func revokedKey(jti string) string {
	return "token:revoked:" + jti
}

func (s *service) validate(ctx context.Context, tokenString, expectedType string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != expectedType {
		s.logger.Warn("token type mismatch", zap.String("expected", expectedType), zap.String("actual", claims.Type))
		return nil, ErrInvalidToken
	}
	if claims.Issuer != s.cfg.Issuer {
		s.logger.Warn("token issuer mismatch", zap.String("expected", s.cfg.Issuer), zap.String("actual", claims.Issuer))
		return nil, ErrInvalidToken
	}
	if revoked, _ := s.revoked.Exists(ctx, revokedKey(claims.ID)); revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke 吊销令牌，已过期或无效的令牌直接忽略
func (s *service) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Set(ctx, revokedKey(claims.ID), true, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
