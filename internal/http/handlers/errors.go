package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/creditoya/backend/internal/auth"
	"github.com/creditoya/backend/internal/db"
	"github.com/creditoya/backend/internal/domain/loan"
	"github.com/creditoya/backend/internal/idempotency"
	"github.com/creditoya/backend/internal/validate"
	"github.com/gin-gonic/gin"
)

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and answered with a generic 500.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var fieldErr *validate.FieldError
	switch {
	case errors.As(err, &fieldErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "field": fieldErr.Field, "message": fieldErr.Message})
	case errors.Is(err, loan.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": loan.ErrNotFound.Error()})
	case loan.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": errorCode(err, loanConflicts, "loan_conflict")})
	case errorCode(err, requestConflicts, "") != "":
		c.JSON(http.StatusConflict, gin.H{"error": errorCode(err, requestConflicts, "")})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidCredentials.Error()})
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		logger.Error("request_failed",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

var loanConflicts = []error{
	loan.ErrAlreadyPaid,
	loan.ErrNotPayable,
	loan.ErrNotApproved,
}

var requestConflicts = []error{
	auth.ErrAccountExists,
	idempotency.ErrInProgress,
}

// errorCode returns the text of the first target err wraps, or fallback.
func errorCode(err error, targets []error, fallback string) string {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return fallback
}
