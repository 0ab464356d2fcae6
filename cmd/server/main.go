package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"textflow/internal/api"
	"textflow/internal/db/postgres"
	redisdb "textflow/internal/db/redis"
	"textflow/internal/platform/config"
	applog "textflow/internal/platform/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		applog.Fatal("❌ Failed to connect to database", "error", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSeconds) * time.Second)

	if err := db.Ping(); err != nil {
		applog.Fatal("❌ Failed to ping database", "error", err)
	}
	applog.Info("✅ Connected to PostgreSQL")

	repo := postgres.NewRepository(db)

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer migrateCancel()
	if err := repo.EnsureTables(migrateCtx); err != nil {
		applog.Fatal("❌ Failed to ensure tables", "error", err)
	}
	applog.Info("✅ Tables ready (accounts, automation_settings, contact_tags, account_members, campaigns)")

	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		applog.Fatal("❌ Invalid REDIS_URL", "error", err)
	}
	rdb := goredis.NewClient(redisOpts)
	defer rdb.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		applog.Fatal("❌ Failed to ping Redis", "error", err)
	}
	applog.Info("✅ Connected to Redis")

	queue := redisdb.NewTriggerQueue(rdb, cfg.Redis.TriggerQueueKey)
	cache := redisdb.NewLookupCache(rdb, cfg.Redis.LookupCacheTTLSecs)

	serverCfg := &api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		JWTSecret:    cfg.Auth.JWTSecret,
		JWTIssuer:    cfg.Auth.JWTIssuer,
	}
	server := api.NewServer(serverCfg, repo, queue, cache)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			applog.Fatal("❌ Server failed", "error", err)
		}
	case sig := <-quit:
		applog.Info("🧹 Shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			applog.Error("Shutdown error", "error", err)
		}
	}
}
