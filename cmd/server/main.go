package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"merlionpos/internal/cache"
	"merlionpos/internal/config"
	"merlionpos/internal/httpapi"
	"merlionpos/internal/service"
	"merlionpos/internal/store"
	"merlionpos/internal/store/memory"
	"merlionpos/internal/store/sqlite"
	"merlionpos/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if err := logger.Init(cfg.LogEnv); err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if len(cfg.AuthSecret) < 32 {
		logger.Fatal("AUTH_SECRET must be set and at least 32 characters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabasePath != "" {
		db, err := sqlite.Open(ctx, cfg.DatabasePath)
		if err != nil {
			logger.Fatal("sqlite unavailable and DATABASE_PATH is set; refusing in-memory fallback", "path", cfg.DatabasePath, "err", err)
		}
		repo = db
		closers = append(closers, db.Close)
		logger.Info("repository: sqlite", "path", cfg.DatabasePath)
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	productCache := cache.ProductCache(cache.NewMemoryProductCache())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisProductCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using in-memory product cache", "err", err)
		} else {
			productCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", "addr", cfg.RedisAddr)
		}
	}

	svc := service.New(repo, productCache, service.CompanyInfo{
		Name:    cfg.CompanyName,
		Address: cfg.CompanyAddress,
		Width:   cfg.ReceiptWidth,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	if err := auth.EnsureAdmin(ctx, cfg.AdminPassword); err != nil {
		logger.Fatal("admin bootstrap failed", "err", err)
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("POS core listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", "err", err)
		}
	}

	logger.Info("server stopped")
}
