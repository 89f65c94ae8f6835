// Package main 把内置商品目录写入已配置的数据后端，重复执行时按分类名称和 SKU 覆盖
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/database"
	"github.com/MorseWayne/storefront/internal/logger"
	"github.com/MorseWayne/storefront/internal/repo"
	"github.com/MorseWayne/storefront/internal/store"
	"github.com/MorseWayne/storefront/internal/supabase"
	"github.com/MorseWayne/storefront/internal/token"
)

func main() {
	timeout := flag.Duration("timeout", time.Minute, "Overall timeout for the seed run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "seed", cfg.App.Version)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if !cfg.Backend.IsConfigured() {
		lg.Fatal("backend is not configured, nothing to seed", zap.String("driver", cfg.Backend.Driver))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var backend store.Backend
	switch cfg.Backend.Driver {
	case config.DriverMySQL:
		db, err := database.New(ctx, cfg.Database, lg)
		if err != nil {
			lg.Sugar().Fatalw("failed to connect to database", "error", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				lg.Sugar().Errorw("failed to close database", "error", err)
			}
		}()
		if err := db.RunMigrations(cfg.Migrations.Dir); err != nil {
			lg.Sugar().Fatalw("failed to run migrations", "error", err)
		}
		// 写目录不需要用户身份，令牌服务只为满足驱动构造
		tokens := token.NewService(token.Config{Secret: cfg.JWT.Secret, Issuer: cfg.App.Name}, nil, lg)
		backend = repo.NewDriver(db.DB, tokens, lg)
	default:
		backend = supabase.New(supabase.Config{
			URL:     cfg.Backend.URL,
			AnonKey: cfg.Backend.AnonKey,
			Timeout: cfg.Backend.Timeout,
		}, lg)
	}

	st := store.New(backend, lg)
	catalog := store.SampleCatalog()
	categories, products, err := st.SeedCatalog(ctx, catalog.Categories, catalog.Products)
	if err != nil {
		lg.Sugar().Fatalw("seed failed", "error", err)
	}
	lg.Sugar().Infow("catalog seeded", "backend", backend.Name(), "categories", categories, "products", products)
}
