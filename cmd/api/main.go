package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/auth-session-api/api/swagger"
	"github.com/noah-isme/auth-session-api/internal/handler"
	"github.com/noah-isme/auth-session-api/internal/repository"
	"github.com/noah-isme/auth-session-api/internal/service"
	"github.com/noah-isme/auth-session-api/pkg/cache"
	"github.com/noah-isme/auth-session-api/pkg/config"
	"github.com/noah-isme/auth-session-api/pkg/database"
	"github.com/noah-isme/auth-session-api/pkg/logger"
)

// @title Auth Session API
// @version 1.0.0
// @description Account registration, cookie based sessions with rotating refresh tokens, and a sample authenticated blog resource.
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
	}

	deps, err := buildDependencies(cfg, db, redisClient, logr)
	if err != nil {
		return err
	}

	deps.audit.Start(ctx)
	defer deps.audit.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, deps, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("refresh_store", cfg.RefreshStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type dependencies struct {
	auth    *service.AuthService
	blogs   *service.BlogService
	audit   *service.AuditService
	metrics *service.MetricsService
	checks  map[string]handler.Check
}

func buildDependencies(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*dependencies, error) {
	tokens, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.Expiration,
		RefreshTTL:    cfg.JWT.RefreshExpiration,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	checks := map[string]handler.Check{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var store service.RefreshTokenStore
	if cfg.RefreshStore == config.RefreshStoreRedis && redisClient != nil {
		store = repository.NewRedisRefreshTokenRepository(redisClient, cfg.JWT.RefreshExpiration)
	} else {
		store = repository.NewRefreshTokenRepository(db)
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	var blogOpts []service.BlogOption
	if cfg.Cache.Enabled && redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, "cache")
		blogOpts = append(blogOpts, service.WithBlogCache(service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr.Named("cache"))))
	}

	validate := service.NewValidator()
	audit := service.NewAuditService(repository.NewAuditRepository(db), metrics, logr.Named("audit"), service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
	})

	auth := service.NewAuthService(
		repository.NewUserRepository(db),
		store,
		tokens,
		service.NewBcryptHasher(cfg.Password.BcryptCost),
		validate,
		metrics,
		audit,
		logr.Named("auth"),
	)
	blogs := service.NewBlogService(repository.NewBlogRepository(db), validate, audit, logr.Named("blog"), blogOpts...)

	return &dependencies{auth: auth, blogs: blogs, audit: audit, metrics: metrics, checks: checks}, nil
}
