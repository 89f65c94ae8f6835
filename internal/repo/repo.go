// Package repo 实现自建 MySQL 后端驱动，负责与数据库交互。
// 表结构与托管后端一致，由 migrations 目录维护；账户与令牌由本驱动自行管理。
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/store"
	"github.com/MorseWayne/storefront/internal/token"
)

// MySQL 错误码
const (
	errDuplicateEntry = 1062
	errNoReferenced   = 1452
)

// queryer 是 *sql.DB 与 *sql.Tx 的公共部分
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Driver 是 store.Backend 的 MySQL 实现
type Driver struct {
	db       *sql.DB
	accounts AccountRepository
	tokens   token.Service
	logger   *zap.Logger
}

var _ store.Backend = (*Driver)(nil)

// NewDriver 创建 MySQL 驱动
func NewDriver(db *sql.DB, tokens token.Service, logger *zap.Logger) *Driver {
	return &Driver{
		db:       db,
		accounts: NewAccountRepository(db),
		tokens:   tokens,
		logger:   logger,
	}
}

// Name 驱动名
func (d *Driver) Name() string {
	return "mysql"
}

// Ping 检查数据库连接
func (d *Driver) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// authorize 校验上下文中的访问令牌属于 userID
func (d *Driver) authorize(ctx context.Context, userID, op string) error {
	raw := store.AccessTokenFrom(ctx)
	if raw == "" {
		return &domain.AuthenticationRequiredError{Operation: op}
	}
	claims, err := d.tokens.ValidateAccess(ctx, raw)
	if err != nil {
		d.logger.Debug("access token rejected", zap.String("operation", op), zap.Error(err))
		return &domain.AuthenticationRequiredError{Operation: op}
	}
	if claims.UserID != userID {
		d.logger.Warn("access token does not match user",
			zap.String("operation", op),
			zap.String("token_user", claims.UserID),
			zap.String("user_id", userID),
		)
		return &domain.AuthenticationRequiredError{Operation: op}
	}
	return nil
}

func isMySQLError(err error, number uint16) bool {
	var me *mysqldriver.MySQLError
	return errors.As(err, &me) && me.Number == number
}

// jsonColumn 将值编码为 JSON 列；nil 写入 NULL
func jsonColumn(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

// decodeJSON 解码可空 JSON 列
func decodeJSON(data []byte, dest any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// inTx 在事务中执行 fn
func (d *Driver) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
