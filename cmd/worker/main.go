package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creditoya/backend/internal/config"
	"github.com/creditoya/backend/internal/db"
	"github.com/creditoya/backend/internal/jobs"
	"github.com/creditoya/backend/internal/messaging/rabbitmq"
	"github.com/creditoya/backend/internal/observability"
	postgresrepo "github.com/creditoya/backend/internal/repository/postgres"
	"github.com/joho/godotenv"
)

type closablePublisher interface {
	jobs.Publisher
	Close()
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var publisher closablePublisher = &rabbitmq.FallbackPublisher{Logger: logger}
	if cfg.AMQPURL != "" {
		producer, err := rabbitmq.NewProducer(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("rabbitmq unavailable, using fallback publisher", "err", err)
		} else {
			publisher = producer
		}
	} else {
		logger.Warn("AMQP_URL not set, outbox events are dropped")
	}
	defer publisher.Close()

	worker := jobs.NewWorker(postgresrepo.NewOutboxRepository(pool), publisher, logger)
	scheduler := jobs.NewScheduler(worker, logger, cfg.WorkerSchedule, cfg.WorkerBatchSize)
	if err := scheduler.Start(); err != nil {
		logger.Error("invalid worker schedule", "schedule", cfg.WorkerSchedule, "err", err)
		os.Exit(1)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("worker stopping")
	select {
	case <-scheduler.Stop().Done():
	case <-time.After(30 * time.Second):
		logger.Warn("worker stop timed out")
	}
	logger.Info("worker stopped")
}
