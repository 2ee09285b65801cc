package loan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/creditoya/backend/internal/domain/amortization"
	"github.com/creditoya/backend/internal/validate"
	"github.com/go-playground/validator/v10"
)

// Outbox topics published for loan events.
const (
	TopicLoanDecided     = "loan_decided"
	TopicPaymentRecorded = "payment_recorded"
	TopicLoanSigned      = "loan_signed"
)

var paymentMethods = map[string]struct{}{
	"tarjeta_credito": {},
	"tarjeta_debito":  {},
	"transferencia":   {},
}

// PaymentMethods lists the accepted payment method tags in display order.
func PaymentMethods() []string {
	return []string{"tarjeta_credito", "tarjeta_debito", "transferencia"}
}

type ApplyInput struct {
	RUT        string `json:"rut"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Amount     int64  `json:"amount"`
	TermMonths int    `json:"term_months"`
	Income     *int64 `json:"income"`
}

type ApplyResult struct {
	ID      int64  `json:"id"`
	Status  Status `json:"status"`
	Scoring *int   `json:"scoring"`
}

type PaymentInput struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
}

type QuoteResult struct {
	amortization.Quote
	Schedule []amortization.Entry `json:"schedule,omitempty"`
}

type PendingPayment struct {
	LoanID  int64     `json:"loan_id"`
	Amount  int64     `json:"amount"`
	DueDate time.Time `json:"due_date"`
}

type Dashboard struct {
	LatestStatus    *Status          `json:"latest_status"`
	LoanRequests    []Entity         `json:"loan_requests"`
	PendingPayments []PendingPayment `json:"pending_payments"`
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, topic string, payload []byte) error
}

// Recorder receives business counters. A nil Recorder is allowed.
type Recorder interface {
	LoanDecided(status string)
	PaymentRecorded(applied int64)
}

type Service struct {
	loanRepo   Repository
	outboxRepo OutboxRepository
	calc       *amortization.Calculator
	scorer     Scorer
	policy     DecisionPolicy
	metrics    Recorder
	logger     *slog.Logger
	validator  *validator.Validate
	now        func() time.Time
}

type Option func(*Service)

func WithMetrics(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithPolicy(p DecisionPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func NewService(loanRepo Repository, outboxRepo OutboxRepository, calc *amortization.Calculator, scorer Scorer, opts ...Option) *Service {
	s := &Service{
		loanRepo:   loanRepo,
		outboxRepo: outboxRepo,
		calc:       calc,
		scorer:     scorer,
		policy:     DefaultDecisionPolicy(),
		logger:     slog.Default(),
		validator:  validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Quote(amount int64, termMonths int, withSchedule bool) (*QuoteResult, error) {
	if amount <= 0 {
		return nil, validate.Field("amount", "must be greater than zero")
	}
	if termMonths <= 0 {
		return nil, validate.Field("term_months", "must be greater than zero")
	}
	q := s.calc.Quote(amount, termMonths)
	out := &QuoteResult{Quote: q}
	if withSchedule {
		out.Schedule = amortization.Schedule(float64(amount), q.AppliedAnnualRate, termMonths, s.now())
	}
	return out, nil
}

// Apply validates an application and decides it synchronously. The pending
// application and its decision are stored as one unit, so a failed request
// leaves nothing behind to be resubmitted as a duplicate.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (*ApplyResult, error) {
	clean, err := s.validateApplication(in)
	if err != nil {
		return nil, err
	}

	decided, err := s.loanRepo.CreateDecided(ctx, clean, func(pending Entity) Decision {
		return Decide(pending, s.scorer, s.policy)
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.LoanDecided(string(decided.Status))
	}

	s.enqueue(ctx, TopicLoanDecided, map[string]any{
		"loan_id": decided.ID,
		"rut":     decided.RUT,
		"status":  decided.Status,
		"scoring": decided.Scoring,
	})

	return &ApplyResult{ID: decided.ID, Status: decided.Status, Scoring: decided.Scoring}, nil
}

func (s *Service) validateApplication(in ApplyInput) (CreateInput, error) {
	rut, err := validate.ParseRUT(in.RUT)
	if err != nil {
		return CreateInput{}, validate.Field("rut", "invalid rut")
	}
	fullName := strings.Join(strings.Fields(in.FullName), " ")
	if len([]rune(fullName)) < 3 {
		return CreateInput{}, validate.Field("full_name", "must have at least 3 characters")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return CreateInput{}, validate.Field("email", "is required")
	}
	if err := s.validator.Var(email, "email"); err != nil {
		return CreateInput{}, validate.Field("email", "invalid email")
	}
	var phone string
	if strings.TrimSpace(in.Phone) != "" {
		p, err := validate.ParsePhone(in.Phone)
		if err != nil {
			return CreateInput{}, validate.Field("phone", "invalid chilean mobile number")
		}
		phone = p.String()
	}
	if in.Amount <= 0 {
		return CreateInput{}, validate.Field("amount", "must be greater than zero")
	}
	if in.TermMonths <= 0 {
		return CreateInput{}, validate.Field("term_months", "must be greater than zero")
	}
	if in.Income != nil && *in.Income < 0 {
		return CreateInput{}, validate.Field("income", "must not be negative")
	}
	return CreateInput{
		RUT:        rut.String(),
		FullName:   fullName,
		Email:      strings.ToLower(email),
		Phone:      phone,
		Amount:     in.Amount,
		TermMonths: in.TermMonths,
		Income:     in.Income,
	}, nil
}

// GetStatus is the unauthenticated polling view used right after applying.
func (s *Service) GetStatus(ctx context.Context, loanID int64) (*ApplyResult, error) {
	l, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return &ApplyResult{ID: l.ID, Status: l.Status, Scoring: l.Scoring}, nil
}

// GetLoan returns ErrNotFound for loans owned by someone else.
func (s *Service) GetLoan(ctx context.Context, ownerRUT string, loanID int64) (*Entity, error) {
	l, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.RUT != ownerRUT {
		return nil, ErrNotFound
	}
	return l, nil
}

func (s *Service) Dashboard(ctx context.Context, ownerRUT string) (*Dashboard, error) {
	loans, err := s.loanRepo.ListByRUT(ctx, ownerRUT)
	if err != nil {
		return nil, err
	}
	out := &Dashboard{LoanRequests: loans, PendingPayments: []PendingPayment{}}
	if out.LoanRequests == nil {
		out.LoanRequests = []Entity{}
	}
	if len(loans) > 0 {
		latest := loans[0].Status
		out.LatestStatus = &latest
	}
	due := s.now().AddDate(0, 1, 0)
	for _, l := range loans {
		if !l.Status.Payable() || l.RemainingBalance <= 0 {
			continue
		}
		out.PendingPayments = append(out.PendingPayments, PendingPayment{
			LoanID:  l.ID,
			Amount:  s.nextInstallment(l),
			DueDate: due,
		})
	}
	return out, nil
}

func (s *Service) nextInstallment(l Entity) int64 {
	rate := s.calc.MockAnnualRateForTerm(l.TermMonths)
	installment, _ := amortization.MonthlyPayment(float64(l.Amount), rate, l.TermMonths).Float64()
	amount := int64(math.Round(installment))
	if amount <= 0 || amount > l.RemainingBalance {
		amount = l.RemainingBalance
	}
	return amount
}

func (s *Service) RecordPayment(ctx context.Context, ownerRUT string, loanID int64, in PaymentInput) (*PaymentResult, error) {
	if in.Amount <= 0 {
		return nil, validate.Field("amount", "must be greater than zero")
	}
	method := strings.ToLower(strings.TrimSpace(in.Method))
	if method != "" {
		if _, ok := paymentMethods[method]; !ok {
			return nil, validate.Field("method", "unsupported payment method")
		}
	}
	if _, err := s.GetLoan(ctx, ownerRUT, loanID); err != nil {
		return nil, err
	}

	res, err := s.loanRepo.RecordPayment(ctx, loanID, in.Amount, method)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PaymentRecorded(res.Payment.AppliedAmount)
	}

	// The payment is already committed; a failed enqueue must not make the
	// client retry it.
	s.enqueue(ctx, TopicPaymentRecorded, map[string]any{
		"loan_id":           res.Loan.ID,
		"payment_id":        res.Payment.ID,
		"rut":               res.Loan.RUT,
		"amount":            res.Payment.Amount,
		"applied_amount":    res.Payment.AppliedAmount,
		"remaining_balance": res.Loan.RemainingBalance,
		"method":            res.Payment.Method,
	})
	return res, nil
}

func (s *Service) ListPayments(ctx context.Context, ownerRUT string, loanID int64) ([]Payment, error) {
	if _, err := s.GetLoan(ctx, ownerRUT, loanID); err != nil {
		return nil, err
	}
	payments, err := s.loanRepo.ListPayments(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []Payment{}
	}
	return payments, nil
}

func (s *Service) Sign(ctx context.Context, ownerRUT string, loanID int64) (*Entity, error) {
	if _, err := s.GetLoan(ctx, ownerRUT, loanID); err != nil {
		return nil, err
	}
	signed, err := s.loanRepo.Sign(ctx, loanID)
	if err != nil {
		return nil, err
	}
	s.enqueue(ctx, TopicLoanSigned, map[string]any{"loan_id": signed.ID, "rut": signed.RUT})
	return signed, nil
}

func (s *Service) enqueue(ctx context.Context, topic string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("outbox_marshal_failed", "topic", topic, "error", err)
		return
	}
	if err := s.outboxRepo.Enqueue(ctx, topic, body); err != nil {
		s.logger.Error("outbox_enqueue_failed", "topic", topic, "error", fmt.Errorf("enqueue %s: %w", topic, err))
	}
}
