package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/creditoya/backend/internal/domain/loan"
	"github.com/creditoya/backend/internal/http/middleware"
	"github.com/creditoya/backend/internal/idempotency"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLoanService struct {
	mock.Mock
}

func (m *mockLoanService) Quote(amount int64, termMonths int, withSchedule bool) (*loan.QuoteResult, error) {
	args := m.Called(amount, termMonths, withSchedule)
	res, _ := args.Get(0).(*loan.QuoteResult)
	return res, args.Error(1)
}

func (m *mockLoanService) Apply(ctx context.Context, in loan.ApplyInput) (*loan.ApplyResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*loan.ApplyResult)
	return res, args.Error(1)
}

func (m *mockLoanService) GetStatus(ctx context.Context, loanID int64) (*loan.ApplyResult, error) {
	args := m.Called(ctx, loanID)
	res, _ := args.Get(0).(*loan.ApplyResult)
	return res, args.Error(1)
}

func (m *mockLoanService) GetLoan(ctx context.Context, ownerRUT string, loanID int64) (*loan.Entity, error) {
	args := m.Called(ctx, ownerRUT, loanID)
	res, _ := args.Get(0).(*loan.Entity)
	return res, args.Error(1)
}

func (m *mockLoanService) Dashboard(ctx context.Context, ownerRUT string) (*loan.Dashboard, error) {
	args := m.Called(ctx, ownerRUT)
	res, _ := args.Get(0).(*loan.Dashboard)
	return res, args.Error(1)
}

func (m *mockLoanService) RecordPayment(ctx context.Context, ownerRUT string, loanID int64, in loan.PaymentInput) (*loan.PaymentResult, error) {
	args := m.Called(ctx, ownerRUT, loanID, in)
	res, _ := args.Get(0).(*loan.PaymentResult)
	return res, args.Error(1)
}

func (m *mockLoanService) ListPayments(ctx context.Context, ownerRUT string, loanID int64) ([]loan.Payment, error) {
	args := m.Called(ctx, ownerRUT, loanID)
	res, _ := args.Get(0).([]loan.Payment)
	return res, args.Error(1)
}

func (m *mockLoanService) Sign(ctx context.Context, ownerRUT string, loanID int64) (*loan.Entity, error) {
	args := m.Called(ctx, ownerRUT, loanID)
	res, _ := args.Get(0).(*loan.Entity)
	return res, args.Error(1)
}

// releaseSpy wraps a store and counts releases.
type releaseSpy struct {
	idempotency.Noop
	released []string
}

func (s *releaseSpy) Release(_ context.Context, key string) error {
	s.released = append(s.released, key)
	return nil
}

func loanEngine(h *LoanHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	r := gin.New()
	asBorrower := func(c *gin.Context) {
		c.Set(middleware.ContextRUT, "123456785")
		c.Next()
	}
	r.POST("/loans/apply", h.Apply)
	r.GET("/loans/:loanId/status", h.GetStatus)
	r.GET("/loans/:loanId", asBorrower, h.GetLoan)
	r.POST("/loans/:loanId/payments", asBorrower, h.RecordPayment)
	return r
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUnexpectedErrorIsNotLeaked(t *testing.T) {
	svc := new(mockLoanService)
	svc.On("GetStatus", mock.Anything, int64(7)).Return(nil, errors.New("pq: connection reset"))
	r := loanEngine(NewLoanHandler(svc, nil, discardLogger()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/loans/7/status", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestGetLoanPassesCallerRUT(t *testing.T) {
	svc := new(mockLoanService)
	svc.On("GetLoan", mock.Anything, "123456785", int64(3)).Return(nil, loan.ErrNotFound)
	r := loanEngine(NewLoanHandler(svc, nil, discardLogger()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/loans/3", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"loan_not_found"}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestLoanStateConflictsMapTo409(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"already paid":    {fmt.Errorf("record payment: %w", loan.ErrAlreadyPaid), "loan_already_paid"},
		"not payable":     {loan.ErrNotPayable, "loan_not_payable"},
		"not approved":    {loan.ErrNotApproved, "loan_not_approved"},
		"key in progress": {idempotency.ErrInProgress, idempotency.ErrInProgress.Error()},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := new(mockLoanService)
			svc.On("GetLoan", mock.Anything, "123456785", int64(4)).Return(nil, tc.err)
			r := loanEngine(NewLoanHandler(svc, nil, discardLogger()))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/loans/4", nil))

			assert.Equal(t, http.StatusConflict, w.Code)
			assert.JSONEq(t, `{"error":"`+tc.want+`"}`, w.Body.String())
		})
	}
}

func TestApplyBindingRejectsBeforeService(t *testing.T) {
	svc := new(mockLoanService)
	r := loanEngine(NewLoanHandler(svc, nil, discardLogger()))

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"wrong type", `{"rut":"12345678-5","full_name":"Ana Rojas","email":"a@b.cl","amount":"mucho","term_months":12}`, "amount"},
		{"short name", `{"rut":"12345678-5","full_name":"Al","email":"a@b.cl","amount":1000,"term_months":12}`, "full_name"},
		{"bad json", `{"rut":`, "body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/loans/apply", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"field":"`+tc.field+`"`)
		})
	}
	svc.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
}

func TestFailedPaymentReleasesKey(t *testing.T) {
	svc := new(mockLoanService)
	svc.On("RecordPayment", mock.Anything, "123456785", int64(5), loan.PaymentInput{Amount: 100}).
		Return(nil, loan.ErrNotPayable)
	spy := &releaseSpy{}
	r := loanEngine(NewLoanHandler(svc, spy, discardLogger()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/loans/5/payments", bytes.NewBufferString(`{"amount":100}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyKeyHeader, "abc")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"loan_not_payable"}`, w.Body.String())
	assert.Equal(t, []string{"idem:payments:123456785:5:abc"}, spy.released)
}
