package memory

import (
	"context"
	"sync"
	"time"

	"github.com/creditoya/backend/internal/jobs"
)

// OutboxRepository is the in-process outbox used with the memory store. It
// satisfies both the enqueue side used by services and the claim side used
// by jobs.Worker.
type OutboxRepository struct {
	mu   sync.Mutex
	jobs []*jobs.OutboxJob
	next int64
	now  func() time.Time
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{now: func() time.Time { return time.Now().UTC() }}
}

func (r *OutboxRepository) Enqueue(_ context.Context, topic string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	body := make([]byte, len(payload))
	copy(body, payload)
	r.jobs = append(r.jobs, &jobs.OutboxJob{
		ID:          r.next,
		Topic:       topic,
		Payload:     body,
		Status:      "pending",
		AvailableAt: r.now(),
	})
	return nil
}

func (r *OutboxRepository) ClaimPending(_ context.Context, limit int32) ([]jobs.OutboxJob, error) {
	if limit <= 0 {
		limit = 25
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	out := make([]jobs.OutboxJob, 0)
	for _, job := range r.jobs {
		if int32(len(out)) >= limit {
			break
		}
		if job.Status != "pending" || job.AvailableAt.After(now) {
			continue
		}
		job.Status = "processing"
		job.Attempts++
		out = append(out, *job)
	}
	return out, nil
}

func (r *OutboxRepository) MarkDone(_ context.Context, jobID int64) error {
	return r.update(jobID, func(j *jobs.OutboxJob) {
		j.Status = "done"
		j.LastError = ""
	})
}

func (r *OutboxRepository) MarkRetry(_ context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error {
	return r.update(jobID, func(j *jobs.OutboxJob) {
		j.Status = "pending"
		j.AvailableAt = nextAvailableAt
		j.LastError = lastError
	})
}

func (r *OutboxRepository) MarkFailed(_ context.Context, jobID int64, lastError string) error {
	return r.update(jobID, func(j *jobs.OutboxJob) {
		j.Status = "failed"
		j.LastError = lastError
	})
}

func (r *OutboxRepository) update(jobID int64, fn func(*jobs.OutboxJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.ID == jobID {
			fn(job)
			return nil
		}
	}
	return nil
}

// Jobs returns a snapshot of every job, in enqueue order.
func (r *OutboxRepository) Jobs() []jobs.OutboxJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]jobs.OutboxJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	return out
}
