package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/service"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/workflow"
)

type RefundStateHandler struct {
	orchestrator *service.Orchestrator
}

func NewRefundStateHandler(orchestrator *service.Orchestrator) *RefundStateHandler {
	return &RefundStateHandler{orchestrator: orchestrator}
}

func (h *RefundStateHandler) GetRefund(c *gin.Context) {
	refundID, ok := idParam(c, "id")
	if !ok {
		return
	}
	s, err := h.orchestrator.Load(c.Request.Context(), refundID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(h.orchestrator, s))
}

// lineEdit is a reviewer's change to one refund line.
type lineEdit struct {
	PaymentID     int64            `json:"payment_id" binding:"required"`
	Fee           *decimal.Decimal `json:"fee"`
	Remark        *string          `json:"remark"`
	Account       *string          `json:"account"`
	BankOfDeposit *string          `json:"bank_of_deposit"`
}

type transitionRequest struct {
	Action    string              `json:"action" binding:"required,oneof=approve reject restart cashier_complete"`
	Stage     models.RefundStatus `json:"stage"`
	Signature models.Signature    `json:"signature"`
	Remark    string              `json:"remark"`
	Lines     []lineEdit          `json:"lines"`
}

func (h *RefundStateHandler) Transition(c *gin.Context) {
	refundID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	s, err := h.orchestrator.Load(ctx, refundID)
	if err != nil {
		writeError(c, err)
		return
	}
	if req.Stage == "" {
		req.Stage = s.Request.Status
	}
	role, _ := workflow.RoleFor(s.Request.Status)
	if err := applyLineEdits(h.orchestrator, s, role, req.Lines); err != nil {
		writeError(c, err)
		return
	}

	var res *service.Result
	switch req.Action {
	case "approve":
		res, err = h.orchestrator.Approve(ctx, s, req.Stage, req.Signature, req.Remark)
	case "reject":
		res, err = h.orchestrator.Reject(ctx, s, req.Stage, req.Remark)
	case "restart":
		res, err = h.orchestrator.Restart(ctx, s, req.Signature, req.Remark)
	case "cashier_complete":
		res, err = h.orchestrator.CashierComplete(ctx, s, req.Remark)
	}
	if err != nil {
		telemetry.Logger.Warn("Refund transition failed",
			zap.Int64("refund_id", refundID),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func applyLineEdits(o *service.Orchestrator, s *service.Session, role models.Role, lines []lineEdit) error {
	for _, l := range lines {
		if l.Fee != nil {
			if _, err := o.SetRefundDetailFee(s, l.PaymentID, *l.Fee); err != nil {
				return err
			}
		}
		if l.Remark != nil && role != "" {
			if err := o.SetDetailRemark(s, l.PaymentID, role, *l.Remark); err != nil {
				return err
			}
		}
		if l.Account != nil || l.BankOfDeposit != nil {
			d := detailOf(s, l.PaymentID)
			account, bank := d.Account, d.BankOfDeposit
			if l.Account != nil {
				account = *l.Account
			}
			if l.BankOfDeposit != nil {
				bank = *l.BankOfDeposit
			}
			if err := o.SetAccount(s, l.PaymentID, account, bank); err != nil {
				return err
			}
		}
	}
	return nil
}

func detailOf(s *service.Session, paymentID int64) models.RefundDetail {
	for _, d := range s.Details {
		if d.PaymentID == paymentID {
			return d
		}
	}
	return models.RefundDetail{}
}

func sessionView(o *service.Orchestrator, s *service.Session) gin.H {
	l := s.Ledger()
	lines := make([]gin.H, 0, len(s.Details))
	for _, d := range s.Details {
		lines = append(lines, gin.H{
			"detail":               d,
			"refundable":           l.RefundableAmount(d),
			"already_refunded":     l.AmountAlreadyRefunded(d.ID),
			"unrefunded":           l.UnrefundedAmount(d),
			"remaining_deductible": l.RemainingDeductible(d.PaymentID),
		})
	}
	return gin.H{
		"refund":        s.Request,
		"payments":      s.Payments,
		"deductions":    s.Deductions,
		"lines":         lines,
		"fee_types":     s.FeeTypes,
		"over_refunded": l.OverRefunded(),
		"summary":       o.ConfirmationSummary(s),
		"hint":          o.ConfirmationHint(s),
	}
}
