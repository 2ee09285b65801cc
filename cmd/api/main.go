package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creditoya/backend/internal/auth"
	"github.com/creditoya/backend/internal/config"
	"github.com/creditoya/backend/internal/db"
	"github.com/creditoya/backend/internal/domain/amortization"
	loandomain "github.com/creditoya/backend/internal/domain/loan"
	"github.com/creditoya/backend/internal/domain/scoring"
	"github.com/creditoya/backend/internal/http/handlers"
	"github.com/creditoya/backend/internal/http/middleware"
	"github.com/creditoya/backend/internal/idempotency"
	"github.com/creditoya/backend/internal/jobs"
	"github.com/creditoya/backend/internal/messaging/rabbitmq"
	"github.com/creditoya/backend/internal/observability"
	"github.com/creditoya/backend/internal/repository/memory"
	postgresrepo "github.com/creditoya/backend/internal/repository/postgres"
	"github.com/creditoya/backend/internal/server"
	"github.com/creditoya/backend/internal/ws"
	"github.com/joho/godotenv"
)

type stores struct {
	pinger   handlers.Pinger
	users    auth.Repository
	loans    loandomain.Repository
	outbox   loandomain.OutboxRepository
	events   ws.PaymentEventSource
	memOut   *memory.OutboxRepository
	shutdown func()
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)
	metrics := observability.NewMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer st.shutdown()

	var idem idempotency.Store = idempotency.Noop{}
	if cfg.RedisURL != "" {
		client, err := idempotency.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect redis", "err", err)
			os.Exit(1)
		}
		defer client.Close()
		idem = idempotency.NewRedisStore(client, cfg.IdempotencyTTL)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	authService := auth.NewService(st.users, jwtManager, auth.NewPasswordHasher(cfg.BcryptCost), cfg.JWTAccessTTL)
	authHandler := handlers.NewAuthHandler(authService, auth.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}, cfg.JWTAccessTTL, logger)

	calc := amortization.NewCalculator(cfg.RateTable())
	scoringPolicy := scoring.DefaultPolicy()
	scoringPolicy.MaxRiskPercent = cfg.ScoringMaxRiskPercent
	loanService := loandomain.NewService(
		st.loans,
		st.outbox,
		calc,
		scoring.NewScorer(calc, scoringPolicy),
		loandomain.WithMetrics(metrics),
		loandomain.WithLogger(logger),
		loandomain.WithPolicy(loandomain.DecisionPolicy{ApprovalThreshold: cfg.ApprovalThreshold}),
	)
	loanHandler := handlers.NewLoanHandler(loanService, idem, logger)

	hub := ws.NewHub()
	notifier := ws.NewNotifier(st.events, hub, logger, cfg.WSPollInterval)

	if err := notifier.Seed(ctx); err != nil {
		logger.Warn("ws notifier seed failed, retrying on first poll", "err", err)
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go func() {
		_ = notifier.Run(runCtx)
	}()

	// The memory store has no separate worker process to drain it.
	if st.memOut != nil {
		worker := jobs.NewWorker(st.memOut, &rabbitmq.FallbackPublisher{Logger: logger}, logger)
		worker.SetRecorder(metrics)
		scheduler := jobs.NewScheduler(worker, logger, cfg.WorkerSchedule, cfg.WorkerBatchSize)
		if err := scheduler.Start(); err != nil {
			logger.Error("failed to schedule outbox relay", "err", err)
			os.Exit(1)
		}
		defer scheduler.Stop()
	}

	r := server.NewRouter(cfg, logger, server.Dependencies{
		Pinger:        st.pinger,
		AuthHandler:   authHandler,
		LoanHandler:   loanHandler,
		WSHandler:     ws.NewHandler(hub, middleware.RUT),
		Authenticator: authService,
		Metrics:       metrics,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.NewHandler(cfg, r),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr(), "store", cfg.StoreDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	stopRun()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.UseMemoryStore() {
		logger.Warn("using in-memory store; data is lost on restart")
		loans := memory.NewLoanRepository()
		outbox := memory.NewOutboxRepository()
		return &stores{
			users:    memory.NewUserRepository(),
			loans:    loans,
			outbox:   outbox,
			events:   loans,
			memOut:   outbox,
			shutdown: func() {},
		}, nil
	}

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &stores{
		pinger:   pool,
		users:    db.NewUserRepository(pool),
		loans:    postgresrepo.NewLoanRepository(pool),
		outbox:   postgresrepo.NewOutboxRepository(pool),
		events:   postgresrepo.NewEventsRepository(pool),
		shutdown: pool.Close,
	}, nil
}
