package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/editor"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

// AddDeduction withholds an amount from a payment's refund line. Drafts are
// edited locally; stored refunds commit once the ledger service accepts the
// deduction with the recomputed line.
func (o *Orchestrator) AddDeduction(ctx context.Context, s *Session, in editor.DeductionInput) (editor.Change, error) {
	return o.editDeduction(ctx, s, "addDeductionPayment",
		func(st editor.State) (editor.State, editor.Change, error) {
			return editor.AddDeduction(st, in)
		},
		func(ctx context.Context, c editor.Change) (*models.DeductionChange, error) {
			return o.remote.AddDeductionPayment(ctx, c.Deduction, c.Detail)
		})
}

func (o *Orchestrator) ModifyDeduction(ctx context.Context, s *Session, key string, fee decimal.Decimal, remark string) (editor.Change, error) {
	return o.editDeduction(ctx, s, "modifyDeductionPayment",
		func(st editor.State) (editor.State, editor.Change, error) {
			return editor.ModifyDeduction(st, key, fee, remark)
		},
		func(ctx context.Context, c editor.Change) (*models.DeductionChange, error) {
			return o.remote.ModifyDeductionPayment(ctx, c.Deduction, c.Detail)
		})
}

func (o *Orchestrator) DeleteDeduction(ctx context.Context, s *Session, key string) (editor.Change, error) {
	return o.editDeduction(ctx, s, "deleteDeductionPayment",
		func(st editor.State) (editor.State, editor.Change, error) {
			return editor.DeleteDeduction(st, key)
		},
		func(ctx context.Context, c editor.Change) (*models.DeductionChange, error) {
			return o.remote.DeleteDeductionPayment(ctx, c.Deduction.ID, c.Detail)
		})
}

type editFunc func(editor.State) (editor.State, editor.Change, error)

type deductionCall func(context.Context, editor.Change) (*models.DeductionChange, error)

func (o *Orchestrator) editDeduction(ctx context.Context, s *Session, op string, edit editFunc, call deductionCall) (editor.Change, error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator."+op, s.Request.ID)
	defer span.End()

	if err := o.checkFresh(s, op); err != nil {
		return editor.Change{}, o.refusal(span, op, err)
	}
	if s.Request.Status == models.StatusFinish {
		return editor.Change{}, o.refusal(span, op, &models.TransitionRefusedError{From: s.Request.Status, Action: op, Reason: "refund is finished"})
	}
	next, change, err := edit(s.state())
	if err != nil {
		return editor.Change{}, o.refusal(span, op, err)
	}
	if s.Draft() {
		s.apply(next)
		return change, nil
	}

	err = o.withLock(ctx, s, func() error {
		res, err := call(ctx, change)
		if err != nil {
			return o.remoteError(span, op, err)
		}
		// The service assigns ids; keep its view of the deduction and line.
		if pos := deductionPos(next.Deductions, change.Deduction.Key); pos >= 0 {
			stored := res.Deduction
			stored.Seq = next.Deductions[pos].Seq
			stored.RefundDetailIndex = change.DetailIndex
			next.Deductions[pos] = stored
			change.Deduction = stored
		}
		detail := res.RefundDetail
		detail.FeeType = next.Details[change.DetailIndex].FeeType
		next.Details[change.DetailIndex] = detail
		change.Detail = detail
		change.Deductions = next.Deductions
		s.apply(next)
		return nil
	})
	return change, err
}

// SetRefundDetailFee edits a refund line directly. The new amount travels
// with the next submission.
func (o *Orchestrator) SetRefundDetailFee(s *Session, paymentID int64, fee decimal.Decimal) (editor.Change, error) {
	if err := o.checkEditable(s, "setRefundDetailFee"); err != nil {
		return editor.Change{}, err
	}
	next, change, err := editor.SetRefundDetailFee(s.state(), paymentID, fee)
	if err != nil {
		return editor.Change{}, err
	}
	s.apply(next)
	return change, nil
}

// SetDetailRemark records role's explanation on a refund line.
func (o *Orchestrator) SetDetailRemark(s *Session, paymentID int64, role models.Role, remark string) error {
	if err := o.checkEditable(s, "setDetailRemark"); err != nil {
		return err
	}
	next, err := editor.SetDetailRemark(s.state(), paymentID, role, remark)
	if err != nil {
		return err
	}
	s.apply(next)
	return nil
}

// SetAccount sets the payee account of a refund line.
func (o *Orchestrator) SetAccount(s *Session, paymentID int64, account, bank string) error {
	if err := o.checkEditable(s, "setAccount"); err != nil {
		return err
	}
	_, idx := findDetail(s.Details, paymentID)
	if idx < 0 {
		return models.NewValidationError("set account", "payment_id", "no_refund_detail")
	}
	details := models.CloneDetails(s.Details)
	details[idx].Account = strings.TrimSpace(account)
	details[idx].BankOfDeposit = strings.TrimSpace(bank)
	s.Details = details
	return nil
}

func (o *Orchestrator) checkEditable(s *Session, action string) error {
	if err := o.checkFresh(s, action); err != nil {
		return err
	}
	if s.Request.Status == models.StatusFinish {
		return &models.TransitionRefusedError{From: s.Request.Status, Action: action, Reason: "refund is finished"}
	}
	return nil
}

func deductionPos(deductions []models.DeductionPayment, key string) int {
	for i, d := range deductions {
		if d.Key == key {
			return i
		}
	}
	return -1
}
