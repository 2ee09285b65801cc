package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/creditoya/backend/internal/domain/loan"
)

type PaymentEventSource interface {
	LatestPaymentID(ctx context.Context) (int64, error)
	ListPaymentEventsSince(ctx context.Context, lastID int64, limit int32) ([]loan.PaymentEvent, error)
}

const defaultPageSize int32 = 100

// Notifier polls the payment ledger and fans new entries out to the
// owning borrower's channel. Only payments recorded after the notifier
// starts are delivered.
type Notifier struct {
	repo         PaymentEventSource
	hub          *Hub
	logger       *slog.Logger
	pollInterval time.Duration
	pageSize     int32
	lastID       int64
	seeded       bool
}

func NewNotifier(repo PaymentEventSource, hub *Hub, logger *slog.Logger, pollInterval time.Duration) *Notifier {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{repo: repo, hub: hub, logger: logger, pollInterval: pollInterval, pageSize: defaultPageSize}
}

// Run polls until ctx is cancelled. Poll errors are logged and retried on
// the next tick.
func (n *Notifier) Run(ctx context.Context) error {
	if err := n.Seed(ctx); err != nil {
		n.logger.Warn("ws_notifier_seed_failed", "error", err)
	}

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.tick(ctx); err != nil {
				n.logger.Warn("ws_notifier_poll_failed", "last_id", n.lastID, "error", err)
			}
		}
	}
}

// Seed moves the cursor past the existing ledger. Run seeds on its own;
// callers that need the cursor fixed before Run starts call it first.
func (n *Notifier) Seed(ctx context.Context) error {
	if n.seeded {
		return nil
	}
	id, err := n.repo.LatestPaymentID(ctx)
	if err != nil {
		return err
	}
	n.lastID = id
	n.seeded = true
	return nil
}

// tick publishes every payment recorded since the last one delivered,
// paging until the ledger is drained.
func (n *Notifier) tick(ctx context.Context) error {
	if err := n.Seed(ctx); err != nil {
		return err
	}
	for {
		count, err := n.publishPage(ctx)
		if err != nil {
			return err
		}
		if count < int(n.pageSize) || ctx.Err() != nil {
			return nil
		}
	}
}

func (n *Notifier) publishPage(ctx context.Context) (int, error) {
	events, err := n.repo.ListPaymentEventsSince(ctx, n.lastID, n.pageSize)
	if err != nil {
		return 0, err
	}
	for _, ev := range events {
		if ev.ID > n.lastID {
			n.lastID = ev.ID
		}
		payload, err := json.Marshal(map[string]any{
			"event": "payment_recorded",
			"data": map[string]any{
				"payment_id":        ev.ID,
				"loan_id":           ev.LoanID,
				"amount":            ev.Amount,
				"applied_amount":    ev.AppliedAmount,
				"method":            ev.Method,
				"remaining_balance": ev.BalanceAfter,
				"paid_at":           ev.PaidAt.UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			return 0, err
		}
		n.hub.Publish(BorrowerChannel(ev.RUT), payload)
	}
	return len(events), nil
}
