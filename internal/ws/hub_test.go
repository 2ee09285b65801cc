package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/creditoya/backend/internal/domain/loan"
	"github.com/creditoya/backend/internal/repository/memory"
)

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.out:
		return msg
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for message")
	}
	return nil
}

func TestHubSubscribeAndPublish(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil)

	hub.Subscribe(BorrowerChannel("123456785"), client)
	hub.Publish(BorrowerChannel("123456785"), []byte(`{"event":"payment_recorded"}`))

	if msg := receive(t, client); string(msg) != `{"event":"payment_recorded"}` {
		t.Fatalf("unexpected payload: %s", string(msg))
	}

	hub.UnsubscribeAll(client)
	if hub.Subscribers(BorrowerChannel("123456785")) != 0 {
		t.Fatalf("expected channel to be removed")
	}
}

func TestClosedClientIgnoresPublish(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil)
	hub.Subscribe("c", client)
	client.close()
	client.close()

	hub.Publish("c", []byte("x"))
}

func approvedLoan(t *testing.T, repo *memory.LoanRepository, rut string) *loan.Entity {
	t.Helper()
	l, err := repo.CreateDecided(context.Background(), loan.CreateInput{RUT: rut, Amount: 1000, TermMonths: 12},
		func(loan.Entity) loan.Decision {
			score := 80
			return loan.Decision{Status: loan.StatusApproved, Scoring: &score}
		})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	return l
}

func quietNotifier(repo PaymentEventSource, hub *Hub) *Notifier {
	return NewNotifier(repo, hub, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
}

type paymentMessage struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func decodeMessage(t *testing.T, raw []byte) paymentMessage {
	t.Helper()
	var msg paymentMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case extra := <-c.out:
		t.Fatalf("unexpected message: %s", extra)
	default:
	}
}

func TestNotifierRoutesPaymentsToOwner(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLoanRepository()
	mine := approvedLoan(t, repo, "123456785")
	theirs := approvedLoan(t, repo, "76543216")

	hub := NewHub()
	me := NewClient(nil)
	hub.Subscribe(BorrowerChannel("123456785"), me)

	n := quietNotifier(repo, hub)
	if err := n.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.RecordPayment(ctx, theirs.ID, 100, ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := repo.RecordPayment(ctx, mine.ID, 250, "transferencia"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := n.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	msg := decodeMessage(t, receive(t, me))
	if msg.Event != "payment_recorded" || msg.Data["remaining_balance"] != float64(750) || msg.Data["method"] != "transferencia" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	expectNothing(t, me)

	// already delivered events are not sent again
	if err := n.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	expectNothing(t, me)
}

func TestNotifierSkipsPaymentsRecordedBeforeStart(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLoanRepository()
	l := approvedLoan(t, repo, "123456785")
	for _, amount := range []int64{100, 200} {
		if _, err := repo.RecordPayment(ctx, l.ID, amount, ""); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	hub := NewHub()
	me := NewClient(nil)
	hub.Subscribe(BorrowerChannel("123456785"), me)
	n := quietNotifier(repo, hub)

	if err := n.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	expectNothing(t, me)

	if _, err := repo.RecordPayment(ctx, l.ID, 300, ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := n.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	msg := decodeMessage(t, receive(t, me))
	if msg.Data["amount"] != float64(300) || msg.Data["remaining_balance"] != float64(400) {
		t.Fatalf("unexpected message: %+v", msg)
	}
	expectNothing(t, me)
}

func TestNotifierDrainsBacklogInOneTick(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLoanRepository()
	l := approvedLoan(t, repo, "123456785")

	hub := NewHub()
	me := NewClient(nil)
	hub.Subscribe(BorrowerChannel("123456785"), me)
	n := quietNotifier(repo, hub)
	n.pageSize = 2
	if err := n.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := repo.RecordPayment(ctx, l.ID, 100, ""); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := n.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	want := []float64{900, 800, 700, 600, 500}
	for _, balance := range want {
		msg := decodeMessage(t, receive(t, me))
		if msg.Data["remaining_balance"] != balance {
			t.Fatalf("expected balance %v, got %+v", balance, msg.Data)
		}
	}
	expectNothing(t, me)
}
