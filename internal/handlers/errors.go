package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

// writeError maps orchestrator errors to HTTP answers.
func writeError(c *gin.Context, err error) {
	var (
		ve *models.ValidationError
		me *models.MissingRemarkError
		te *models.TransitionRefusedError
		rf *models.RemoteFailure
	)
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "fields": ve.Fields})
	case errors.As(err, &me):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "role": me.Role, "payment_id": me.PaymentID})
	case errors.As(err, &te):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": te.From})
	case errors.Is(err, models.ErrLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &rf):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "unknown_outcome": rf.Unknown})
	default:
		telemetry.Logger.Error("Unhandled refund error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
