// Package database 提供自建 MySQL 后端的连接与迁移功能。
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/config"
)

// DB 封装数据库连接
type DB struct {
	*sql.DB
	logger *zap.Logger
	dsn    string
}

// DSN 根据配置生成连接串
func DSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.MultiStatements = true // 迁移文件包含多条语句
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// New 创建数据库连接
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := DSN(cfg)
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.DBName),
	)

	return &DB{DB: sqlDB, logger: logger, dsn: dsn}, nil
}

// withMigrator 用独立连接创建 migrate 实例并执行 fn，避免迁移出错影响主连接
func (db *DB) withMigrator(migrationsDir string, fn func(m *migrate.Migrate) error) error {
	conn, err := sql.Open("mysql", db.dsn)
	if err != nil {
		return fmt.Errorf("open database for migration: %w", err)
	}
	defer conn.Close()

	driver, err := migratemysql.WithInstance(conn, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("create mysql driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "mysql", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	return fn(m)
}

// currentVersion 返回当前版本；脏状态直接报错
func currentVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("database is in dirty state at version %d, please check and fix manually", v)
	}
	return v, nil
}

// RunMigrations 执行所有待执行的迁移
func (db *DB) RunMigrations(migrationsDir string) error {
	return db.withMigrator(migrationsDir, func(m *migrate.Migrate) error {
		from, err := currentVersion(m)
		if err != nil {
			return err
		}
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				db.logger.Info("no new migrations to apply", zap.Uint("version", from))
				return nil
			}
			return fmt.Errorf("run migrations: %w", err)
		}
		to, _, _ := m.Version()
		db.logger.Info("migrations completed", zap.Uint("from_version", from), zap.Uint("to_version", to))
		return nil
	})
}

// MigrateDown 回滚指定步数
// 注意：生产环境谨慎使用
func (db *DB) MigrateDown(migrationsDir string, steps int) error {
	return db.withMigrator(migrationsDir, func(m *migrate.Migrate) error {
		from, err := currentVersion(m)
		if err != nil {
			return err
		}
		if err := m.Steps(-steps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		to, _, _ := m.Version()
		db.logger.Info("migration rollback completed", zap.Uint("from_version", from), zap.Uint("to_version", to))
		return nil
	})
}

// MigrateToVersion 迁移到指定版本
func (db *DB) MigrateToVersion(migrationsDir string, version uint) error {
	return db.withMigrator(migrationsDir, func(m *migrate.Migrate) error {
		from, err := currentVersion(m)
		if err != nil {
			return err
		}
		if err := m.Migrate(version); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				db.logger.Info("already at target version", zap.Uint("version", version))
				return nil
			}
			return fmt.Errorf("migrate to version %d: %w", version, err)
		}
		db.logger.Info("migration to version completed", zap.Uint("from_version", from), zap.Uint("to_version", version))
		return nil
	})
}

// ForceMigrationVersion 强制设置版本以清除脏状态
func (db *DB) ForceMigrationVersion(migrationsDir string, version uint) error {
	return db.withMigrator(migrationsDir, func(m *migrate.Migrate) error {
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("force migration version: %w", err)
		}
		db.logger.Warn("migration version forced", zap.Uint("version", version))
		return nil
	})
}

// MigrationStatus 当前迁移状态
type MigrationStatus struct {
	Version uint
	Dirty   bool
	Applied bool // 是否执行过任何迁移
}

// Status 读取迁移版本，不修改数据库
func (db *DB) Status(migrationsDir string) (MigrationStatus, error) {
	var st MigrationStatus
	err := db.withMigrator(migrationsDir, func(m *migrate.Migrate) error {
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get current version: %w", err)
		}
		st = MigrationStatus{Version: v, Dirty: dirty, Applied: true}
		return nil
	})
	return st, err
}
