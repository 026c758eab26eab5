package api

import (
	"github.com/ayo6706/mobile-money-ledger/internal/api/handler"
	"github.com/ayo6706/mobile-money-ledger/internal/api/middleware"
	"github.com/ayo6706/mobile-money-ledger/internal/api/spec"
	"github.com/ayo6706/mobile-money-ledger/internal/auth"
	"github.com/ayo6706/mobile-money-ledger/internal/config"
	"github.com/ayo6706/mobile-money-ledger/internal/domain"
	"github.com/ayo6706/mobile-money-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg         *config.Config
	logger      *zap.Logger
	store       handler.Pinger
	redis       redis.Cmdable
	idempotency middleware.IdempotencyStore
	tokens      *auth.TokenManager
	accountSvc  *service.AccountService
	ledgerSvc   *service.LedgerService
	authSvc     *service.AuthService
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	store handler.Pinger,
	redisClient redis.Cmdable,
	idemStore middleware.IdempotencyStore,
	tokens *auth.TokenManager,
	accountSvc *service.AccountService,
	ledgerSvc *service.LedgerService,
	authSvc *service.AuthService,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		redis:       redisClient,
		idempotency: idemStore,
		tokens:      tokens,
		accountSvc:  accountSvc,
		ledgerSvc:   ledgerSvc,
		authSvc:     authSvc,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.store, api.redis)
	authHandler := handler.NewAuthHandler(api.authSvc, api.accountSvc)
	walletHandler := handler.NewWalletHandler(api.accountSvc, api.ledgerSvc)
	adminHandler := handler.NewAdminHandler(api.accountSvc)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/refresh", authHandler.Refresh)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(api.tokens))
			r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/balance", walletHandler.Balance)
			r.Get("/transactions", walletHandler.Transactions)

			r.Group(func(r chi.Router) {
				r.Use(middleware.IdempotencyMiddleware(api.idempotency, api.logger))
				r.Post("/send", walletHandler.Send)
				r.Post("/deposit", walletHandler.Deposit)
				r.Post("/withdraw", walletHandler.Withdraw)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin))
				r.Get("/accounts", adminHandler.ListAccounts)
				r.Post("/accounts/{id}/activate", adminHandler.Activate)
				r.Post("/accounts/{id}/deactivate", adminHandler.Deactivate)
			})
		})
	})

	return r
}
