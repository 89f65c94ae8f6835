// Package domain 定义店铺前台的业务领域模型和核心业务规则。
// 领域模型独立于外部依赖（托管后端、数据库、HTTP 等）。
package domain

import (
	"time"
)

// UserRole 定义用户角色类型
type UserRole string

const (
	UserRoleUser  UserRole = "user"  // 普通顾客
	UserRoleAdmin UserRole = "admin" // 管理员
)

// Identity 表示已登录的会话身份
type Identity struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	Role         UserRole  `json:"role,omitempty"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

// Expired 判断访问令牌是否已过期；零值表示未知，视为未过期
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Account 表示自建数据库驱动中的本地账户
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // JSON序列化时忽略密码哈希
	FullName     string    `json:"full_name,omitempty"`
	Role         UserRole  `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SignInRequest 表示登录请求
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignUpRequest 表示注册请求
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	FullName string `json:"full_name" binding:"omitempty,max=100"`
}

// SessionView 返回给调用方的会话视图
type SessionView struct {
	Identity *Identity `json:"identity"`
	Profile  *Profile  `json:"profile,omitempty"`
}
