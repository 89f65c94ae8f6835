package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/store"
)

type authUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type authSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *authUser `json:"user"`

	// 开启邮箱确认时注册接口只返回用户本身
	ID    string `json:"id"`
	Email string `json:"email"`
}

// toIdentity 将认证响应转为会话身份
func (c *Client) toIdentity(s *authSession) *domain.Identity {
	u := s.User
	if u == nil {
		u = &authUser{ID: s.ID, Email: s.Email}
	}
	id := &domain.Identity{
		UserID:       u.ID,
		Email:        u.Email,
		Role:         domain.UserRoleUser,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		id.FullName = name
	}
	switch {
	case s.ExpiresAt > 0:
		id.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		id.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second)
	default:
		id.ExpiresAt = tokenExpiry(s.AccessToken)
	}
	return id
}

// tokenExpiry 不验签读取访问令牌的 exp，签名由后端负责校验
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// SignIn 邮箱密码登录
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	q := url.Values{}
	q.Set("grant_type", "password")
	body := map[string]string{"email": email, "password": password}
	var s authSession
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/token", query: q, body: body}, &s); err != nil {
		if isStatus(err, http.StatusBadRequest) || isStatus(err, http.StatusUnauthorized) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	return c.toIdentity(&s), nil
}

// SignUp 注册，full_name 写入用户元数据
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}
	var s authSession
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/signup", body: body}, &s); err != nil {
		if isStatus(err, http.StatusUnprocessableEntity) {
			return nil, domain.ErrAccountExists
		}
		return nil, err
	}
	id := c.toIdentity(&s)
	if id.FullName == "" {
		id.FullName = fullName
	}
	return id, nil
}

// SignOut 吊销访问令牌
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	ctx = store.WithAccessToken(ctx, accessToken)
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout"}, nil)
}
