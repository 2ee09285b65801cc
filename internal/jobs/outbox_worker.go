package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/creditoya/backend/internal/domain/loan"
)

var errUnsupportedTopic = errors.New("unsupported_topic")

type OutboxJob struct {
	ID          int64
	Topic       string
	Payload     []byte
	Status      string
	Attempts    int32
	LastError   string
	AvailableAt time.Time
}

type OutboxRepository interface {
	ClaimPending(ctx context.Context, limit int32) ([]OutboxJob, error)
	MarkDone(ctx context.Context, jobID int64) error
	MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, jobID int64, lastError string) error
}

// Publisher delivers one outbox event to the message broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// OutcomeRecorder counts jobs by outcome: done, retry or failed.
type OutcomeRecorder interface {
	OutboxJob(outcome string)
}

type Worker struct {
	outboxRepo   OutboxRepository
	recorder     OutcomeRecorder
	publisher    Publisher
	logger       *slog.Logger
	maxAttempts  int32
	now          func() time.Time
	retryBackoff func(attempt int32) time.Duration
}

func NewWorker(outboxRepo OutboxRepository, publisher Publisher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		outboxRepo:  outboxRepo,
		publisher:   publisher,
		logger:      logger,
		maxAttempts: 5,
		now:         func() time.Time { return time.Now().UTC() },
		retryBackoff: func(attempt int32) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			return time.Duration(attempt*15) * time.Second
		},
	}
}

func (w *Worker) SetRecorder(r OutcomeRecorder) {
	w.recorder = r
}

func (w *Worker) record(outcome string) {
	if w.recorder != nil {
		w.recorder.OutboxJob(outcome)
	}
}

func (w *Worker) RunOnce(ctx context.Context, batchSize int32) error {
	jobs, err := w.outboxRepo.ClaimPending(ctx, batchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			return err
		}
	}

	return nil
}

func (w *Worker) processJob(ctx context.Context, job OutboxJob) error {
	switch job.Topic {
	case loan.TopicLoanDecided, loan.TopicPaymentRecorded, loan.TopicLoanSigned:
		if err := w.publisher.Publish(ctx, job.Topic, job.Payload); err != nil {
			return w.handleJobError(ctx, job, err)
		}
		w.logger.Info("outbox_job_published", "job_id", job.ID, "topic", job.Topic)
		w.record("done")
		return w.outboxRepo.MarkDone(ctx, job.ID)
	default:
		return w.handleJobError(ctx, job, errUnsupportedTopic)
	}
}

func (w *Worker) handleJobError(ctx context.Context, job OutboxJob, err error) error {
	msg := err.Error()
	if job.Attempts >= w.maxAttempts {
		w.record("failed")
		w.logger.Error("outbox_job_failed", "job_id", job.ID, "topic", job.Topic, "attempts", job.Attempts, "error", msg)
		return w.outboxRepo.MarkFailed(ctx, job.ID, msg)
	}
	next := w.now().Add(w.retryBackoff(job.Attempts))
	w.record("retry")
	w.logger.Warn("outbox_job_retry", "job_id", job.ID, "topic", job.Topic, "attempts", job.Attempts, "next", next, "error", msg)
	return w.outboxRepo.MarkRetry(ctx, job.ID, next, msg)
}
