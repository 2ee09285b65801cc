package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/creditoya/backend/internal/domain/loan"
	"github.com/creditoya/backend/internal/http/middleware"
	"github.com/creditoya/backend/internal/idempotency"
	"github.com/creditoya/backend/internal/validate"
	"github.com/gin-gonic/gin"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type LoanService interface {
	Quote(amount int64, termMonths int, withSchedule bool) (*loan.QuoteResult, error)
	Apply(ctx context.Context, in loan.ApplyInput) (*loan.ApplyResult, error)
	GetStatus(ctx context.Context, loanID int64) (*loan.ApplyResult, error)
	GetLoan(ctx context.Context, ownerRUT string, loanID int64) (*loan.Entity, error)
	Dashboard(ctx context.Context, ownerRUT string) (*loan.Dashboard, error)
	RecordPayment(ctx context.Context, ownerRUT string, loanID int64, in loan.PaymentInput) (*loan.PaymentResult, error)
	ListPayments(ctx context.Context, ownerRUT string, loanID int64) ([]loan.Payment, error)
	Sign(ctx context.Context, ownerRUT string, loanID int64) (*loan.Entity, error)
}

type LoanHandler struct {
	loanService LoanService
	idempotency idempotency.Store
	logger      *slog.Logger
}

func NewLoanHandler(loanService LoanService, store idempotency.Store, logger *slog.Logger) *LoanHandler {
	if store == nil {
		store = idempotency.Noop{}
	}
	return &LoanHandler{loanService: loanService, idempotency: store, logger: logger}
}

type applyRequest struct {
	RUT        string `json:"rut" binding:"required,rut"`
	FullName   string `json:"full_name" binding:"required,min=3"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone" binding:"omitempty,cl_mobile"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	TermMonths int    `json:"term_months" binding:"required,gt=0"`
	Income     *int64 `json:"income" binding:"omitempty,gte=0"`
}

type paymentRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Method string `json:"method"`
}

func (h *LoanHandler) Quote(c *gin.Context) {
	amount, err := strconv.ParseInt(strings.TrimSpace(c.Query("amount")), 10, 64)
	if err != nil {
		writeError(c, h.logger, validate.Field("amount", "must be a whole number of pesos"))
		return
	}
	term, err := strconv.Atoi(strings.TrimSpace(c.Query("term_months")))
	if err != nil {
		writeError(c, h.logger, validate.Field("term_months", "must be a whole number of months"))
		return
	}
	withSchedule, _ := strconv.ParseBool(c.DefaultQuery("schedule", "false"))

	q, err := h.loanService.Quote(amount, term, withSchedule)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *LoanHandler) Apply(c *gin.Context) {
	var req applyRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.loanService.Apply(c.Request.Context(), loan.ApplyInput(req))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *LoanHandler) GetStatus(c *gin.Context) {
	loanID, ok := loanIDParam(c)
	if !ok {
		return
	}
	res, err := h.loanService.GetStatus(c.Request.Context(), loanID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LoanHandler) Dashboard(c *gin.Context) {
	d, err := h.loanService.Dashboard(c.Request.Context(), middleware.RUT(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	loanID, ok := loanIDParam(c)
	if !ok {
		return
	}
	item, err := h.loanService.GetLoan(c.Request.Context(), middleware.RUT(c), loanID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LoanHandler) ListPayments(c *gin.Context) {
	loanID, ok := loanIDParam(c)
	if !ok {
		return
	}
	items, err := h.loanService.ListPayments(c.Request.Context(), middleware.RUT(c), loanID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// RecordPayment honours Idempotency-Key: a repeated key for the same
// borrower and loan replays the first response instead of paying again.
func (h *LoanHandler) RecordPayment(c *gin.Context) {
	loanID, ok := loanIDParam(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	rut := middleware.RUT(c)
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if key != "" {
		key = idempotency.Key("payments", rut, loanID, key)
		stored, err := h.idempotency.Reserve(ctx, key)
		switch {
		case errors.Is(err, idempotency.ErrInProgress):
			writeError(c, h.logger, err)
			return
		case err != nil:
			h.logger.Error("idempotency_reserve_failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "idempotency_unavailable"})
			return
		case stored != nil:
			c.Header("Idempotent-Replayed", "true")
			c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
			return
		}
	}

	res, err := h.loanService.RecordPayment(ctx, rut, loanID, loan.PaymentInput(req))
	if err != nil {
		if key != "" {
			if relErr := h.idempotency.Release(ctx, key); relErr != nil {
				h.logger.Warn("idempotency_release_failed", "error", relErr)
			}
		}
		writeError(c, h.logger, err)
		return
	}

	body, err := json.Marshal(res)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if key != "" {
		if err := h.idempotency.Complete(ctx, key, idempotency.Record{Status: http.StatusCreated, Body: body}); err != nil {
			h.logger.Warn("idempotency_complete_failed", "error", err)
		}
	}
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

func (h *LoanHandler) Sign(c *gin.Context) {
	loanID, ok := loanIDParam(c)
	if !ok {
		return
	}
	item, err := h.loanService.Sign(c.Request.Context(), middleware.RUT(c), loanID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// loanIDParam answers 404 itself for ids that cannot exist.
func loanIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("loanId")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": loan.ErrNotFound.Error()})
		return 0, false
	}
	return id, true
}
