package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/handlers"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/service"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

func NewRouter(orchestrator *service.Orchestrator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": telemetry.ServiceName})
	})

	stateHandler := handlers.NewRefundStateHandler(orchestrator)
	r.GET("/refunds/:id", stateHandler.GetRefund)
	r.POST("/refunds/:id/transitions", stateHandler.Transition)

	refundHandler := handlers.NewRefundHandler(orchestrator)
	r.GET("/pay-modes", refundHandler.PayModes)
	r.POST("/orders/:orderId/refunds", refundHandler.CreateRefund)
	r.POST("/refunds/:id/deductions", refundHandler.AddDeduction)
	r.PUT("/refunds/:id/deductions/:key", refundHandler.ModifyDeduction)
	r.DELETE("/refunds/:id/deductions/:key", refundHandler.DeleteDeduction)
	r.POST("/refunds/:id/payments", refundHandler.AddPayment)
	r.PUT("/refunds/:id/payments/:paymentId", refundHandler.ModifyPayment)
	r.DELETE("/refunds/:id/payments/:paymentId", refundHandler.DeletePayment)
	r.POST("/refunds/:id/details/:paymentId/direct-refund", refundHandler.DirectRefund)

	return r
}
