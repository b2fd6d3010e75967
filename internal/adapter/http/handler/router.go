package handler

import (
	"flowpay-ledger/internal/adapter/http/middleware"
	"flowpay-ledger/internal/core/ports"
	"flowpay-ledger/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AccountSvc     ports.AccountService
	TransactionSvc ports.TransactionService
	TokenSvc       ports.TokenService
	HealthCheckers []ports.HealthChecker
	Metrics        *observability.Metrics // nil = /metrics disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus scrape endpoint
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			deps.Metrics.Registry,
			promhttp.HandlerOpts{},
		)))
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	adminOnly := middleware.RequireAdmin()

	accountHandler := NewAccountHandler(deps.AccountSvc)
	txHandler := NewTransactionHandler(deps.TransactionSvc)

	v1 := r.Group("/api/v1")

	accounts := v1.Group("/accounts", jwtAuth)
	{
		accounts.POST("", accountHandler.Open)
		accounts.GET("/:id", accountHandler.Get)
		accounts.GET("/:id/transactions", txHandler.ListByAccount)
		accounts.PUT("/:id/status", adminOnly, accountHandler.UpdateStatus)
		accounts.PUT("/:id/limit", adminOnly, accountHandler.UpdateDailyLimit)
	}

	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.POST("/deposit", txHandler.Deposit)
		transactions.POST("/withdrawal", txHandler.Withdraw)
		transactions.POST("/transfer", txHandler.Transfer)
		transactions.GET("/:id", txHandler.Get)
		transactions.POST("/:id/reverse", adminOnly, txHandler.Reverse)
	}

	return r
}
