// Package main 管理自建 MySQL 后端的表结构（商品、分类、账户、购物车、订单）。
//
//	migrate                       执行全部待执行迁移
//	migrate -action=status        查看当前版本
//	migrate -action=down -steps=1 回滚一步
//	migrate -action=goto -target=2
//	migrate -action=force -target=0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/database"
	"github.com/MorseWayne/storefront/internal/logger"
)

type options struct {
	steps  int
	target uint
	dir    string
}

type action func(db *database.DB, opts options, lg *zap.Logger) error

var actions = map[string]action{
	"up": func(db *database.DB, opts options, _ *zap.Logger) error {
		return db.RunMigrations(opts.dir)
	},
	"down": func(db *database.DB, opts options, _ *zap.Logger) error {
		if opts.steps < 1 {
			return fmt.Errorf("steps must be >= 1, got %d", opts.steps)
		}
		return db.MigrateDown(opts.dir, opts.steps)
	},
	"goto": func(db *database.DB, opts options, _ *zap.Logger) error {
		if opts.target == 0 {
			return fmt.Errorf("-target is required for goto")
		}
		return db.MigrateToVersion(opts.dir, opts.target)
	},
	// 版本 0 表示回到未迁移状态
	"force": func(db *database.DB, opts options, _ *zap.Logger) error {
		return db.ForceMigrationVersion(opts.dir, opts.target)
	},
	"status": func(db *database.DB, opts options, lg *zap.Logger) error {
		st, err := db.Status(opts.dir)
		if err != nil {
			return err
		}
		if !st.Applied {
			lg.Info("no migrations applied yet")
			return nil
		}
		lg.Info("migration status", zap.Uint("version", st.Version), zap.Bool("dirty", st.Dirty))
		return nil
	},
}

func actionNames() string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	var opts options
	name := flag.String("action", "up", "one of "+actionNames())
	flag.IntVar(&opts.steps, "steps", 1, "steps to roll back for down")
	flag.UintVar(&opts.target, "target", 0, "target version for goto / force")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory (default MIGRATIONS_DIR)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -action=[%s] [options]\n", os.Args[0], actionNames())
		flag.PrintDefaults()
	}
	flag.Parse()

	run, ok := actions[*name]
	if !ok {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if opts.dir == "" {
		opts.dir = cfg.Migrations.Dir
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "migrate", cfg.App.Version)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	db, err := database.New(context.Background(), cfg.Database, lg)
	if err != nil {
		lg.Fatal("database unavailable", zap.Error(err))
	}

	lg.Info("running migration action", zap.String("action", *name), zap.String("dir", opts.dir))
	runErr := run(db, opts, lg)
	if err := db.Close(); err != nil {
		lg.Warn("close database", zap.Error(err))
	}
	if runErr != nil {
		lg.Fatal("migration action failed", zap.String("action", *name), zap.Error(runErr))
	}
}
