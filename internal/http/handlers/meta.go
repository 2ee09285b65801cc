package handlers

import (
	"net/http"

	"github.com/creditoya/backend/internal/domain/amortization"
	"github.com/creditoya/backend/internal/domain/loan"
	"github.com/gin-gonic/gin"
)

type MetaHandler struct {
	env               string
	version           string
	rates             amortization.RateTable
	approvalThreshold int
}

func NewMetaHandler(env, version string, rates amortization.RateTable, approvalThreshold int) *MetaHandler {
	return &MetaHandler{env: env, version: version, rates: rates, approvalThreshold: approvalThreshold}
}

// GetMeta also publishes the active rate tiers so clients can explain quotes.
func (h *MetaHandler) GetMeta(c *gin.Context) {
	tiers := make([]gin.H, 0, len(h.rates.Tiers))
	for _, t := range h.rates.Tiers {
		tiers = append(tiers, gin.H{"max_term_months": t.MaxTermMonths, "annual_rate_percent": t.AnnualRatePercent})
	}
	c.JSON(http.StatusOK, gin.H{
		"name":               "CreditoYa Backend",
		"version":            h.version,
		"env":                h.env,
		"currency":           "CLP",
		"rate_tiers":         tiers,
		"default_rate":       h.rates.DefaultRate,
		"approval_threshold": h.approvalThreshold,
		"payment_methods":    loan.PaymentMethods(),
	})
}
