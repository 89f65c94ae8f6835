package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/MorseWayne/storefront/internal/domain"
)

// AccountRepository 定义本地账户数据访问接口
// 使用接口可以方便单元测试时进行模拟（mock）
type AccountRepository interface {
	// Create 邮箱重复时返回 domain.ErrAccountExists
	Create(ctx context.Context, account *domain.Account) error
	// GetByEmail 账户不存在时返回 (nil, nil)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// accountRepo 是 AccountRepository 接口的数据库实现
type accountRepo struct {
	db *sql.DB
}

// NewAccountRepository 创建账户仓储实例
func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, full_name, role, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.Email, account.PasswordHash, account.FullName, string(account.Role), account.IsActive)
	if err != nil {
		if isMySQLError(err, errDuplicateEntry) {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *accountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	a := &domain.Account{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, full_name, role, is_active, created_at, updated_at
		FROM accounts WHERE email = ?`, email).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.Role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignIn 校验密码并签发令牌。
// 账户不存在、已停用、密码错误统一返回 ErrInvalidCredentials，不暴露账户是否存在
func (d *Driver) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	account, err := d.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if account == nil || !account.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	// bcrypt.CompareHashAndPassword 会自动处理盐值和哈希比较
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}
	return d.issue(account)
}

// SignUp 创建账户并直接登录
func (d *Driver) SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	account := &domain.Account{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		Role:         domain.UserRoleUser,
		IsActive:     true,
	}
	if err := d.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	d.logger.Info("account created", zap.String("user_id", account.ID))
	return d.issue(account)
}

// SignOut 吊销访问令牌；令牌本身已无效时视为已登出
func (d *Driver) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := d.tokens.Revoke(ctx, accessToken); err != nil {
		d.logger.Debug("sign out with unusable token", zap.Error(err))
	}
	return nil
}

func (d *Driver) issue(account *domain.Account) (*domain.Identity, error) {
	pair, err := d.tokens.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &domain.Identity{
		UserID:       account.ID,
		Email:        account.Email,
		FullName:     account.FullName,
		Role:         account.Role,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	}, nil
}
