package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/api"
	"github.com/ayo6706/mobile-money-ledger/internal/auth"
	"github.com/ayo6706/mobile-money-ledger/internal/config"
	"github.com/ayo6706/mobile-money-ledger/internal/db"
	"github.com/ayo6706/mobile-money-ledger/internal/idempotency"
	"github.com/ayo6706/mobile-money-ledger/internal/idgen"
	"github.com/ayo6706/mobile-money-ledger/internal/observability"
	"github.com/ayo6706/mobile-money-ledger/internal/repository"
	"github.com/ayo6706/mobile-money-ledger/internal/repository/memory"
	"github.com/ayo6706/mobile-money-ledger/internal/security"
	"github.com/ayo6706/mobile-money-ledger/internal/service"
	"github.com/ayo6706/mobile-money-ledger/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// ledgerStore is a storage driver: the unit-of-work API plus a liveness probe.
type ledgerStore interface {
	service.QueryStore
	Ping(ctx context.Context) error
}

// Run bootstraps the HTTP server and reconciliation worker, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var cache redis.Cmdable
	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = redisClient
		logger.Info("redis cache enabled")
	}

	tokens, err := auth.NewTokenManager(auth.Config{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("init tokens: %w", err)
	}

	secrets := security.NewBcrypt(cfg.PINHashCost)
	accountSvc := service.NewAccountService(store, secrets)
	ledgerSvc := service.NewLedgerService(store, secrets, idgen.New())
	authSvc := service.NewAuthService(store, tokens, auth.NewRevocationList(store.Queries(), redisClient), secrets)
	reconciliationSvc := service.NewReconciliationService(store)
	idemStore := idempotency.NewStore(cache, store.Queries(), cfg.IdempotencyTTL)

	if cfg.AdminUsername != "" {
		if err := accountSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		logger.Info("admin user ready", zap.String("username", cfg.AdminUsername))
	}

	router := api.NewRouter(cfg, logger, store, cache, idemStore, tokens, accountSvc, ledgerSvc, authSvc)
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	reconciler := worker.NewReconciliationWorker(reconciliationSvc).WithInterval(cfg.ReconciliationInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.StorageDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		reconciler.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		reconciler.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// openStore builds the configured storage driver and returns its closer.
func openStore(ctx context.Context, cfg *config.Config) (ledgerStore, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		zap.L().Warn("using in-memory storage; all data is lost on exit")
		return memory.NewStore(cfg.LockTimeout), func() {}, nil
	default:
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return nil, nil, fmt.Errorf("migrate database: %w", err)
			}
		}
		pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.LockTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		return repository.NewStore(pool), pool.Close, nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

// newRedisClient returns nil when no URL is configured.
func newRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
