package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"savdopos/backend/internal/cache"
	"savdopos/backend/internal/checkout"
	"savdopos/backend/internal/config"
	"savdopos/backend/internal/httpapi"
	"savdopos/backend/internal/service"
	"savdopos/backend/internal/store"
	"savdopos/backend/internal/store/memory"
	pgstore "savdopos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger()
	defer func() { _ = log.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalw("invalid security configuration", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalw("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", "err", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Infow("repository ready", "kind", "postgres")
	} else {
		repo = memory.NewSeeded()
		log.Infow("repository ready", "kind", "in-memory")
	}

	perms := cache.PermissionCache(cache.NoopPermissionCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisPermissionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warnw("redis unavailable, using in-process permission cache", "err", err)
		} else {
			perms = redisCache
			closers = append(closers, redisCache.Close)
			log.Infow("permission cache ready", "kind", "redis")
		}
	}

	sessions := checkout.NewManager()
	svc := service.New(repo, sessions, log, cfg.DefaultTerminalID)
	tokenTTL := time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute
	auth := httpapi.NewAuthManager(cfg.AuthSecret, tokenTTL, svc, perms)
	api := httpapi.New(svc, auth, log, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("savdopos backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server error", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("shutdown error", "err", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Errorw("close error", "err", err)
		}
	}

	log.Infow("server stopped")
}

// validateSecurityConfig refuses to run against a real database with a
// missing or short signing secret. In-memory mode is for local work and
// may run without one.
func validateSecurityConfig(cfg config.Config) error {
	if cfg.DatabaseURL == "" {
		return nil
	}
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters when DATABASE_URL is set")
	}
	return nil
}
