package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the outbox relay on a cron spec ("@every 5s", "*/1 * * * *").
// Overlapping runs are skipped rather than queued.
type Scheduler struct {
	cron      *cron.Cron
	worker    *Worker
	logger    *slog.Logger
	spec      string
	batchSize int32
	timeout   time.Duration
}

func NewScheduler(worker *Worker, logger *slog.Logger, spec string, batchSize int32) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	return &Scheduler{
		cron:      c,
		worker:    worker,
		logger:    logger,
		spec:      spec,
		batchSize: batchSize,
		timeout:   30 * time.Second,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return err
	}
	s.logger.Info("scheduled outbox relay", "schedule", s.spec, "batch_size", s.batchSize)
	s.cron.Start()
	return nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.worker.RunOnce(ctx, s.batchSize); err != nil {
		s.logger.Error("worker_run_failed", "error", err)
	}
}

// Stop halts scheduling and returns a context that is done once any running
// tick has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
