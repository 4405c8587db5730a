package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/editor"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/service"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

type RefundHandler struct {
	orchestrator *service.Orchestrator
}

func NewRefundHandler(orchestrator *service.Orchestrator) *RefundHandler {
	return &RefundHandler{orchestrator: orchestrator}
}

type deductionRequest struct {
	ParentPaymentID int64           `json:"parent_payment_id"`
	FeeType         models.FeeType  `json:"fee_type"`
	Fee             decimal.Decimal `json:"fee"`
	Remark          string          `json:"remark"`
}

func (r deductionRequest) input() editor.DeductionInput {
	return editor.DeductionInput{ParentPaymentID: r.ParentPaymentID, FeeType: r.FeeType, Fee: r.Fee, Remark: r.Remark}
}

type createRefundRequest struct {
	Type       models.RefundType  `json:"type" binding:"required"`
	TaskID     string             `json:"task_id"`
	Signature  models.Signature   `json:"signature"`
	Remark     string             `json:"remark"`
	Deductions []deductionRequest `json:"deductions"`
	Lines      []lineEdit         `json:"lines"`
}

// CreateRefund prepares a refund for an order, applies the launcher's edits
// and submits it.
func (h *RefundHandler) CreateRefund(c *gin.Context) {
	orderID, ok := idParam(c, "orderId")
	if !ok {
		return
	}
	var req createRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	s, err := h.orchestrator.Prepare(ctx, orderID, req.Type, req.TaskID)
	if err != nil {
		writeError(c, err)
		return
	}
	for _, d := range req.Deductions {
		if _, err := h.orchestrator.AddDeduction(ctx, s, d.input()); err != nil {
			writeError(c, err)
			return
		}
	}
	if err := applyLineEdits(h.orchestrator, s, models.RoleDeliver, req.Lines); err != nil {
		writeError(c, err)
		return
	}

	res, err := h.orchestrator.Submit(ctx, s, req.Signature, req.Remark)
	if err != nil {
		telemetry.Logger.Warn("Refund submission failed", zap.Int64("order_id", orderID), zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *RefundHandler) AddDeduction(c *gin.Context) {
	var req deductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.withSession(c, func(s *service.Session) (any, error) {
		return h.orchestrator.AddDeduction(c.Request.Context(), s, req.input())
	})
}

func (h *RefundHandler) ModifyDeduction(c *gin.Context) {
	var req deductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.withSession(c, func(s *service.Session) (any, error) {
		return h.orchestrator.ModifyDeduction(c.Request.Context(), s, c.Param("key"), req.Fee, req.Remark)
	})
}

func (h *RefundHandler) DeleteDeduction(c *gin.Context) {
	h.withSession(c, func(s *service.Session) (any, error) {
		return h.orchestrator.DeleteDeduction(c.Request.Context(), s, c.Param("key"))
	})
}

type paymentRequest struct {
	FeeType            models.FeeType     `json:"fee_type"`
	Fee                decimal.Decimal    `json:"fee"`
	ContractualAmount  decimal.Decimal    `json:"contractual_amount"`
	PayMode            models.PayMode     `json:"pay_mode"`
	Direction          models.Direction   `json:"direction"`
	Remark             string             `json:"remark"`
	CustomerHasBalance bool               `json:"customer_has_balance"`
	Deductions         []deductionRequest `json:"deductions"`
}

func (h *RefundHandler) AddPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := service.PaymentInput{
		FeeType:            req.FeeType,
		Fee:                req.Fee,
		ContractualAmount:  req.ContractualAmount,
		PayMode:            req.PayMode,
		Direction:          req.Direction,
		Remark:             req.Remark,
		CustomerHasBalance: req.CustomerHasBalance,
	}
	for _, d := range req.Deductions {
		in.Deductions = append(in.Deductions, d.input())
	}
	h.withSession(c, func(s *service.Session) (any, error) {
		return h.orchestrator.AddPayment(c.Request.Context(), s, in)
	})
}

func (h *RefundHandler) ModifyPayment(c *gin.Context) {
	paymentID, ok := idParam(c, "paymentId")
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.withSession(c, func(s *service.Session) (any, error) {
		return h.orchestrator.ModifyPayment(c.Request.Context(), s, models.Payment{
			ID:      paymentID,
			FeeType: req.FeeType,
			Fee:     req.Fee,
			PayMode: req.PayMode,
			Remark:  req.Remark,
		})
	})
}

func (h *RefundHandler) DeletePayment(c *gin.Context) {
	paymentID, ok := idParam(c, "paymentId")
	if !ok {
		return
	}
	h.withSession(c, func(s *service.Session) (any, error) {
		if err := h.orchestrator.DeletePayment(c.Request.Context(), s, paymentID); err != nil {
			return nil, err
		}
		return gin.H{"deleted": paymentID}, nil
	})
}

type directRefundRequest struct {
	Amount  *decimal.Decimal `json:"amount"`
	PayMode models.PayMode   `json:"pay_mode"`
	Remark  string           `json:"remark"`
}

// DirectRefund refunds a line through its own channel, or records a manual
// refund when an amount is given.
func (h *RefundHandler) DirectRefund(c *gin.Context) {
	paymentID, ok := idParam(c, "paymentId")
	if !ok {
		return
	}
	var req directRefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	h.withSession(c, func(s *service.Session) (any, error) {
		if req.Amount != nil {
			return h.orchestrator.RecordManualRefund(c.Request.Context(), s, paymentID, *req.Amount, req.PayMode, req.Remark)
		}
		return h.orchestrator.DirectRefund(c.Request.Context(), s, paymentID)
	})
}

// PayModes lists the pay modes offered for a new payment.
func (h *RefundHandler) PayModes(c *gin.Context) {
	feeType := models.FeeType(c.Query("fee_type"))
	hasBalance := c.Query("customer_has_balance") == "true"
	c.JSON(http.StatusOK, gin.H{"pay_modes": service.PayModeOptions(feeType, hasBalance)})
}

func (h *RefundHandler) withSession(c *gin.Context, fn func(*service.Session) (any, error)) {
	refundID, ok := idParam(c, "id")
	if !ok {
		return
	}
	s, err := h.orchestrator.Load(c.Request.Context(), refundID)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := fn(s)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
