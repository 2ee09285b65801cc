package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	pinger Pinger
	store  string
}

// NewHealthHandler takes the store driver name for reporting. A nil pinger
// means there is no external database to check.
func NewHealthHandler(pinger Pinger, store string) *HealthHandler {
	return &HealthHandler{pinger: pinger, store: store}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "creditoya-backend",
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if h.pinger == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "store": h.store})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not_ready",
			"store":    h.store,
			"database": "error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"store":    h.store,
		"database": "ok",
	})
}
