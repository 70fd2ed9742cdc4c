package handler

import (
	"payloom/internal/adapter/http/middleware"
	redisStore "payloom/internal/adapter/storage/redis"
	"payloom/internal/core/ports"
	"payloom/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	EscrowSvc       ports.EscrowService
	VerificationSvc ports.VerificationService
	AutoReleaseSvc  ports.AutoReleaseService
	WithdrawalSvc   ports.WithdrawalService
	ReconSvc        ports.ReconciliationService
	AuthSvc         ports.AuthService
	TokenSvc        ports.TokenService
	OrderRepo       ports.OrderRepository
	DisputeRepo     ports.DisputeRepository
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	CronSecret      string
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	r.Use(metrics.Middleware())

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", metrics.Handler())

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Provider callbacks (no auth — providers sign nothing we verify here;
	// dedupe and amount checks protect the ledger) ---
	webhookHandler := NewWebhookHandler(deps.VerificationSvc, deps.Logger)
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/mpesa", rl("webhooks"), webhookHandler.Mpesa)
		webhooks.POST("/intasend", rl("webhooks"), webhookHandler.IntaSend)
		webhooks.POST("/pesapal", rl("webhooks"), webhookHandler.Pesapal)
	}

	// --- Buyer-facing routes ---
	depositHandler := NewDepositHandler(deps.VerificationSvc)
	v1.POST("/deposits", rl("deposits"), depositHandler.Submit)

	orderHandler := NewOrderHandler(deps.EscrowSvc, deps.OrderRepo, deps.DisputeRepo)
	orders := v1.Group("/orders")
	{
		orders.POST("/:id/confirm", rl("orders"), orderHandler.Confirm)
		orders.POST("/:id/dispute", rl("orders"), orderHandler.Dispute)
		orders.GET("/:id/escrow", rl("orders"), orderHandler.Escrow)
	}

	// --- Operator login ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/auth/login", rl("auth_login"), authHandler.Login)

	// --- JWT-authenticated routes (operators) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	adminHandler := NewAdminHandler(deps.VerificationSvc, deps.EscrowSvc, deps.ReconSvc, deps.WithdrawalSvc)

	admin := v1.Group("/admin", jwtAuth)
	{
		admin.POST("/deposits/:id/approve", rl("admin"), adminHandler.ApproveDeposit)
		admin.POST("/deposits/:id/reject", rl("admin"), adminHandler.RejectDeposit)
		admin.POST("/orders/:id/release", rl("admin"), adminHandler.ReleaseOrder)
		admin.POST("/orders/:id/refund", rl("admin"), adminHandler.RefundOrder)
		admin.GET("/reconciliation", rl("admin"), adminHandler.Reconciliation)
	}

	sellers := v1.Group("/sellers", jwtAuth)
	{
		sellers.POST("/:id/withdraw", rl("withdraw"), adminHandler.Withdraw)
	}

	// --- Scheduler routes ---
	cronHandler := NewCronHandler(deps.AutoReleaseSvc)
	v1.POST("/cron/auto-release", middleware.CronAuth(deps.CronSecret), cronHandler.AutoRelease)

	return r
}
