package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/creditoya/backend/internal/domain/loan"
	"github.com/creditoya/backend/internal/jobs"
	"github.com/creditoya/backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

type countingRecorder struct {
	outcomes map[string]int
}

func (r *countingRecorder) OutboxJob(outcome string) {
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func TestWorkerPublishesKnownTopics(t *testing.T) {
	ctx := context.Background()
	outbox := memory.NewOutboxRepository()
	require.NoError(t, outbox.Enqueue(ctx, loan.TopicLoanDecided, []byte(`{"loan_id":1}`)))
	require.NoError(t, outbox.Enqueue(ctx, loan.TopicPaymentRecorded, []byte(`{"loan_id":1,"payment_id":1}`)))

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, loan.TopicLoanDecided, []byte(`{"loan_id":1}`)).Return(nil).Once()
	pub.On("Publish", mock.Anything, loan.TopicPaymentRecorded, mock.Anything).Return(nil).Once()
	rec := &countingRecorder{}

	worker := jobs.NewWorker(outbox, pub, nil)
	worker.SetRecorder(rec)
	require.NoError(t, worker.RunOnce(ctx, 10))

	pub.AssertExpectations(t)
	for _, job := range outbox.Jobs() {
		assert.Equal(t, "done", job.Status)
		assert.Equal(t, int32(1), job.Attempts)
	}
	assert.Equal(t, 2, rec.outcomes["done"])

	// nothing left to claim
	require.NoError(t, worker.RunOnce(ctx, 10))
	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestWorkerRetriesOnPublishError(t *testing.T) {
	ctx := context.Background()
	outbox := memory.NewOutboxRepository()
	require.NoError(t, outbox.Enqueue(ctx, loan.TopicLoanSigned, []byte(`{"loan_id":3}`)))

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, loan.TopicLoanSigned, mock.Anything).Return(errors.New("broker down"))

	worker := jobs.NewWorker(outbox, pub, nil)
	require.NoError(t, worker.RunOnce(ctx, 10))

	got := outbox.Jobs()
	require.Len(t, got, 1)
	assert.Equal(t, "pending", got[0].Status)
	assert.Equal(t, "broker down", got[0].LastError)
	assert.True(t, got[0].AvailableAt.After(time.Now()), "retry must be delayed")

	// backoff keeps it from being claimed again immediately
	require.NoError(t, worker.RunOnce(ctx, 10))
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

type staticOutbox struct {
	jobs      []jobs.OutboxJob
	doneIDs   []int64
	retryIDs  []int64
	failedIDs []int64
}

func (r *staticOutbox) ClaimPending(context.Context, int32) ([]jobs.OutboxJob, error) {
	return r.jobs, nil
}

func (r *staticOutbox) MarkDone(_ context.Context, jobID int64) error {
	r.doneIDs = append(r.doneIDs, jobID)
	return nil
}

func (r *staticOutbox) MarkRetry(_ context.Context, jobID int64, _ time.Time, _ string) error {
	r.retryIDs = append(r.retryIDs, jobID)
	return nil
}

func (r *staticOutbox) MarkFailed(_ context.Context, jobID int64, _ string) error {
	r.failedIDs = append(r.failedIDs, jobID)
	return nil
}

func TestWorkerTerminalFailureAfterMaxAttempts(t *testing.T) {
	outbox := &staticOutbox{jobs: []jobs.OutboxJob{{ID: 9, Topic: loan.TopicPaymentRecorded, Attempts: 5, Payload: []byte(`{}`)}}}
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	require.NoError(t, jobs.NewWorker(outbox, pub, nil).RunOnce(context.Background(), 10))
	assert.Equal(t, []int64{9}, outbox.failedIDs)
	assert.Empty(t, outbox.retryIDs)
}

func TestWorkerUnsupportedTopic(t *testing.T) {
	outbox := &staticOutbox{jobs: []jobs.OutboxJob{
		{ID: 1, Topic: "register_loan", Attempts: 1},
		{ID: 2, Topic: "register_loan", Attempts: 5},
	}}
	pub := &mockPublisher{}

	require.NoError(t, jobs.NewWorker(outbox, pub, nil).RunOnce(context.Background(), 10))
	assert.Equal(t, []int64{1}, outbox.retryIDs)
	assert.Equal(t, []int64{2}, outbox.failedIDs)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
