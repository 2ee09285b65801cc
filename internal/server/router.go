package server

import (
	"log/slog"
	"net/http"

	"github.com/creditoya/backend/internal/config"
	"github.com/creditoya/backend/internal/http/handlers"
	"github.com/creditoya/backend/internal/http/middleware"
	"github.com/creditoya/backend/internal/observability"
	"github.com/creditoya/backend/internal/version"
	"github.com/creditoya/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

type Dependencies struct {
	Pinger        handlers.Pinger
	AuthHandler   *handlers.AuthHandler
	LoanHandler   *handlers.LoanHandler
	WSHandler     *ws.Handler
	Authenticator middleware.Authenticator
	Metrics       *observability.Metrics
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.Env == "prod" || cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.RegisterValidators()

	var observer middleware.HTTPObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger, observer))
	r.Use(middleware.RequestBodyLimit(cfg.MaxBodyBytes))

	health := handlers.NewHealthHandler(deps.Pinger, cfg.StoreDriver)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version, cfg.RateTable(), cfg.ApprovalThreshold)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	requireAuth := middleware.RequireAuth(deps.Authenticator)

	if deps.AuthHandler != nil && deps.Authenticator != nil {
		authGroup := r.Group("/v1/auth")
		authGroup.POST("/register", deps.AuthHandler.Register)
		authGroup.POST("/login", deps.AuthHandler.Login)
		authGroup.POST("/logout", deps.AuthHandler.Logout)
		authGroup.GET("/me", requireAuth, deps.AuthHandler.Me)
	}

	if deps.LoanHandler != nil {
		public := r.Group("/v1/loans")
		public.GET("/quote", deps.LoanHandler.Quote)
		public.POST("/apply", deps.LoanHandler.Apply)
		public.GET("/:loanId/status", deps.LoanHandler.GetStatus)

		if deps.Authenticator != nil {
			borrower := r.Group("/v1/loans")
			borrower.Use(requireAuth)
			borrower.GET("/dashboard", deps.LoanHandler.Dashboard)
			borrower.GET("/:loanId", deps.LoanHandler.GetLoan)
			borrower.GET("/:loanId/payments", deps.LoanHandler.ListPayments)
			borrower.POST("/:loanId/payments", deps.LoanHandler.RecordPayment)
			borrower.POST("/:loanId/sign", deps.LoanHandler.Sign)
		}
	}

	if deps.WSHandler != nil && deps.Authenticator != nil {
		r.GET("/v1/ws", requireAuth, deps.WSHandler.HandleWebSocket)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}

// NewHandler wraps the router with CORS for the configured origins.
func NewHandler(cfg config.Config, router http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.IdempotencyKeyHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)
}
