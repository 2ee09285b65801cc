package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/creditoya/backend/internal/db"
	"github.com/creditoya/backend/internal/jobs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, topic string, payload []byte) error {
	q := `INSERT INTO outbox_jobs (topic, payload, status) VALUES ($1, $2::jsonb, 'pending')`
	_, err := r.pool.Exec(ctx, q, topic, payload)
	return err
}

// ClaimPending moves up to limit due jobs to processing and bumps their
// attempt counter. SKIP LOCKED lets several workers claim disjoint batches.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int32) ([]jobs.OutboxJob, error) {
	if limit <= 0 {
		limit = 25
	}
	out := make([]jobs.OutboxJob, 0)
	err := db.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
UPDATE outbox_jobs
SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
WHERE id IN (
  SELECT id FROM outbox_jobs
  WHERE status = 'pending' AND available_at <= NOW()
  ORDER BY id ASC
  LIMIT $1
  FOR UPDATE SKIP LOCKED
)
RETURNING id, topic, payload, status, attempts, last_error, available_at`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var job jobs.OutboxJob
			if err := rows.Scan(&job.ID, &job.Topic, &job.Payload, &job.Status, &job.Attempts, &job.LastError, &job.AvailableAt); err != nil {
				return err
			}
			out = append(out, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbox jobs: %w", err)
	}
	return out, nil
}

func (r *OutboxRepository) MarkDone(ctx context.Context, jobID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox_jobs SET status = 'done', last_error = '', updated_at = NOW() WHERE id = $1`, jobID)
	return err
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE outbox_jobs
SET status = 'pending', available_at = $2, last_error = $3, updated_at = NOW()
WHERE id = $1`, jobID, nextAvailableAt, lastError)
	return err
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, jobID int64, lastError string) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox_jobs SET status = 'failed', last_error = $2, updated_at = NOW() WHERE id = $1`, jobID, lastError)
	return err
}
