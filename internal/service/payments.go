package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/editor"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

// PayModeOptions lists the pay modes offered for a new paid-in payment of
// feeType. Balance is offered only to customers holding a balance and never
// for deposits; POS pre-authorization is never offered.
func PayModeOptions(feeType models.FeeType, customerHasBalance bool) []models.PayMode {
	out := make([]models.PayMode, 0, len(models.AllPayModes))
	for _, m := range models.AllPayModes {
		switch m {
		case models.PayModePosPreLicensing:
			continue
		case models.PayModeBalance:
			if !customerHasBalance || !balanceFeeTypes[feeType] {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

var balanceFeeTypes = map[models.FeeType]bool{
	models.FeeTypeRent:    true,
	models.FeeTypeDeliver: true,
	models.FeeTypeReceive: true,
	models.FeeTypeOther:   true,
}

// PaymentInput describes a paid-in payment to record. ContractualAmount is
// what the order's contract charges for FeeType; a zero Fee defaults to the
// part of it still unpaid.
type PaymentInput struct {
	FeeType            models.FeeType
	Fee                decimal.Decimal
	ContractualAmount  decimal.Decimal
	PayMode            models.PayMode
	Direction          models.Direction
	Remark             string
	CustomerHasBalance bool
	Deductions         []editor.DeductionInput
}

// AddPayment records a payment on the order and opens its refund line.
func (o *Orchestrator) AddPayment(ctx context.Context, s *Session, in PaymentInput) (*models.Payment, error) {
	const op = "addPayment"
	ctx, span := telemetry.StartSpan(ctx, "orchestrator."+op, s.Request.ID)
	defer span.End()

	if err := o.checkEditable(s, op); err != nil {
		return nil, o.refusal(span, op, err)
	}
	if in.Direction == "" {
		in.Direction = models.DirectionCustomerToWagons
	}
	v := models.Violations{}
	remaining := s.Ledger().RemainingToBePaid(in.FeeType, in.ContractualAmount)
	if in.Fee.IsZero() && remaining.IsPositive() {
		in.Fee = remaining
	}
	switch {
	case !remaining.IsPositive():
		v["fee"] = "nothing_remaining_to_be_paid"
	case !in.Fee.IsPositive():
		v["fee"] = "must_be_positive"
	case in.Fee.GreaterThan(remaining):
		v["fee"] = "exceeds_remaining_to_be_paid"
	}
	if !in.Direction.IsPaidIn() {
		v["direction"] = "must_be_paid_in"
	}
	if !offered(PayModeOptions(in.FeeType, in.CustomerHasBalance), in.PayMode) {
		v["pay_mode"] = "not_offered"
	}
	if keep := relevantFeeTypes(s.Request.Type); keep != nil && !keep[in.FeeType] {
		v["fee_type"] = "not_refundable_by_type"
	}
	deducted := decimal.Zero
	deductions := make([]models.DeductionPayment, 0, len(in.Deductions))
	for _, d := range in.Deductions {
		if strings.TrimSpace(d.Remark) == "" {
			v["deductions"] = "remark_required"
		}
		if !d.Fee.IsPositive() {
			v["deductions"] = "must_be_positive"
		}
		deducted = deducted.Add(d.Fee)
		deductions = append(deductions, models.DeductionPayment{
			FeeType: in.FeeType,
			Fee:     d.Fee,
			PayMode: in.PayMode,
			Remark:  strings.TrimSpace(d.Remark),
		})
	}
	if deducted.GreaterThan(in.Fee) {
		v["deductions"] = "exceeds_payment_fee"
	}
	if !v.Empty() {
		return nil, o.refusal(span, op, &models.ValidationError{Op: "add payment", Fields: v})
	}

	var created *models.Payment
	err := o.withLock(ctx, s, func() error {
		p, err := o.remote.AddPayment(ctx, models.Payment{
			OrderID:         s.Request.OrderID,
			FeeType:         in.FeeType,
			Fee:             in.Fee,
			PayMode:         in.PayMode,
			Direction:       in.Direction,
			FinancialStatus: models.FinancialStatusToReview,
			Remark:          strings.TrimSpace(in.Remark),
			PayTime:         o.now(),
		}, deductions)
		if err != nil {
			return o.remoteError(span, op, err)
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Deductions sent with the payment get their ids on the next load.
	s.Payments = append(append([]models.Payment(nil), s.Payments...), *created)
	s.Details = append(models.CloneDetails(s.Details), models.RefundDetail{
		RefundID:  s.Request.ID,
		PaymentID: created.ID,
		FeeType:   created.FeeType,
		Fee:       decimal.NewNullDecimal(created.Fee.Sub(deducted)),
	})
	s.FeeTypes = s.Ledger().FeeTypeList()
	return created, nil
}

// ModifyPayment changes a payment's amount, mode or remark. The refund line
// is capped at the new amount net of deductions.
func (o *Orchestrator) ModifyPayment(ctx context.Context, s *Session, payment models.Payment) (*models.PaymentChange, error) {
	const op = "modifyPayment"
	ctx, span := telemetry.StartSpan(ctx, "orchestrator."+op, s.Request.ID)
	defer span.End()

	if err := o.checkEditable(s, op); err != nil {
		return nil, o.refusal(span, op, err)
	}
	current, pos := findPayment(s.Payments, payment.ID)
	if pos < 0 {
		return nil, o.refusal(span, op, models.NewValidationError("modify payment", "payment_id", "unknown_payment"))
	}
	if current.FinancialStatus == models.FinancialStatusApproved {
		return nil, o.refusal(span, op, models.NewValidationError("modify payment", "payment_id", "financially_approved"))
	}
	if payment.Fee.IsNegative() {
		return nil, o.refusal(span, op, models.NewValidationError("modify payment", "fee", "must_not_be_negative"))
	}
	l := s.Ledger()
	net := payment.Fee.Sub(l.TotalDeducted(payment.ID))
	if net.IsNegative() {
		return nil, o.refusal(span, op, models.NewValidationError("modify payment", "fee", "below_deductions"))
	}

	updated := current
	updated.Fee = payment.Fee
	if payment.PayMode != "" {
		updated.PayMode = payment.PayMode
	}
	if payment.FeeType != "" {
		updated.FeeType = payment.FeeType
	}
	updated.Remark = strings.TrimSpace(payment.Remark)

	detail, idx := findDetail(s.Details, payment.ID)
	if idx >= 0 {
		detail = detail.Clone()
		if !detail.Fee.Valid || detail.Fee.Decimal.GreaterThan(net) {
			detail.Fee = decimal.NewNullDecimal(net)
		}
	}

	var change *models.PaymentChange
	err := o.withLock(ctx, s, func() error {
		res, err := o.remote.ModifyPayment(ctx, updated, detail)
		if err != nil {
			return o.remoteError(span, op, err)
		}
		change = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	payments := append([]models.Payment(nil), s.Payments...)
	payments[pos] = change.Payment
	s.Payments = payments
	if idx >= 0 {
		details := models.CloneDetails(s.Details)
		if change.RefundDetail.PaymentID != 0 {
			detail = change.RefundDetail
			detail.FeeType = change.Payment.FeeType
		}
		details[idx] = detail
		s.Details = details
	}
	s.FeeTypes = s.Ledger().FeeTypeList()
	return change, nil
}

// DeletePayment removes a payment with its refund line and deductions.
func (o *Orchestrator) DeletePayment(ctx context.Context, s *Session, paymentID int64) error {
	const op = "deletePayment"
	ctx, span := telemetry.StartSpan(ctx, "orchestrator."+op, s.Request.ID)
	defer span.End()

	if err := o.checkEditable(s, op); err != nil {
		return o.refusal(span, op, err)
	}
	current, pos := findPayment(s.Payments, paymentID)
	if pos < 0 {
		return o.refusal(span, op, models.NewValidationError("delete payment", "payment_id", "unknown_payment"))
	}
	if current.FinancialStatus == models.FinancialStatusApproved {
		return o.refusal(span, op, models.NewValidationError("delete payment", "payment_id", "financially_approved"))
	}

	err := o.withLock(ctx, s, func() error {
		if err := o.remote.DeletePayment(ctx, paymentID); err != nil {
			return o.remoteError(span, op, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var payments []models.Payment
	for _, p := range s.Payments {
		if p.ID != paymentID {
			payments = append(payments, p)
		}
	}
	var details []models.RefundDetail
	for _, d := range s.Details {
		if d.PaymentID != paymentID {
			details = append(details, d.Clone())
		}
	}
	var deductions []models.DeductionPayment
	for _, d := range s.Deductions {
		if d.ParentPaymentID != paymentID {
			d.Seq = len(deductions) + 1
			deductions = append(deductions, d)
		}
	}
	s.Payments, s.Details, s.Deductions = payments, details, deductions
	s.reindex()
	s.FeeTypes = s.Ledger().FeeTypeList()
	return nil
}

// DirectRefund pays a line back through the channel it was paid with:
// balance payments to the customer balance, online payments through the
// gateway. Other channels need RecordManualRefund.
func (o *Orchestrator) DirectRefund(ctx context.Context, s *Session, paymentID int64) (*models.DirectRefund, error) {
	const op = "directRefund"
	ctx, span := telemetry.StartSpan(ctx, "orchestrator."+op, s.Request.ID)
	defer span.End()

	p, detail, err := o.cashierLine(s, op, paymentID)
	if err != nil {
		return nil, o.refusal(span, op, err)
	}
	if !p.PayMode.SupportsDirectRefund() {
		return nil, o.refusal(span, op, models.NewValidationError("direct refund", "pay_mode", "manual_refund_required"))
	}
	if !s.Ledger().UnrefundedAmount(detail).IsPositive() {
		return nil, o.refusal(span, op, models.NewValidationError("direct refund", "payment_id", "nothing_to_refund"))
	}

	var res *models.DirectRefund
	err = o.withLock(ctx, s, func() error {
		var err error
		remoteOp := "refundByGateway"
		if p.PayMode == models.PayModeBalance {
			remoteOp = "refundByBalance"
			res, err = o.remote.RefundByBalance(ctx, detail.ID)
		} else {
			res, err = o.remote.RefundByGateway(ctx, detail.ID)
		}
		if err != nil {
			return o.remoteError(span, remoteOp, err)
		}
		if !res.Success {
			return o.remoteRefusal(span, remoteOp, res.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Payment != nil {
		s.Payments = append(append([]models.Payment(nil), s.Payments...), *res.Payment)
	}
	telemetry.Logger.Info("Direct refund issued",
		zap.Int64("refund_id", s.Request.ID),
		zap.Int64("payment_id", paymentID),
		zap.String("pay_mode", string(p.PayMode)),
	)
	return res, nil
}

// RecordManualRefund records a refund the cashier paid outside the online
// channels. The amount may not exceed what is still owed on the line.
func (o *Orchestrator) RecordManualRefund(ctx context.Context, s *Session, paymentID int64, amount decimal.Decimal, mode models.PayMode, remark string) (*models.Payment, error) {
	const op = "recordManualRefund"
	ctx, span := telemetry.StartSpan(ctx, "orchestrator."+op, s.Request.ID)
	defer span.End()

	p, detail, err := o.cashierLine(s, op, paymentID)
	if err != nil {
		return nil, o.refusal(span, op, err)
	}
	if mode == "" {
		mode = p.PayMode
	}
	v := models.Violations{}
	if !amount.IsPositive() {
		v["amount"] = "must_be_positive"
	} else if amount.GreaterThan(s.Ledger().UnrefundedAmount(detail)) {
		v["amount"] = "exceeds_unrefunded_amount"
	}
	if mode == models.PayModePosPreLicensing || mode == models.PayModeBalance || mode.IsGatewayChannel() {
		v["pay_mode"] = "not_manual"
	}
	if !v.Empty() {
		return nil, o.refusal(span, op, &models.ValidationError{Op: "record manual refund", Fields: v})
	}

	detailID := detail.ID
	var created *models.Payment
	err = o.withLock(ctx, s, func() error {
		res, err := o.remote.AddPayment(ctx, models.Payment{
			OrderID:         s.Request.OrderID,
			FeeType:         p.FeeType,
			Fee:             amount,
			PayMode:         mode,
			Direction:       p.Direction.RefundDirection(),
			FinancialStatus: models.FinancialStatusToReview,
			RefundDetailID:  &detailID,
			Remark:          strings.TrimSpace(remark),
			PayTime:         o.now(),
		}, nil)
		if err != nil {
			return o.remoteError(span, "addPayment", err)
		}
		created = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Payments = append(append([]models.Payment(nil), s.Payments...), *created)
	return created, nil
}

// cashierLine resolves a paid-in payment and its stored refund line while the
// request waits for the cashier.
func (o *Orchestrator) cashierLine(s *Session, action string, paymentID int64) (models.Payment, models.RefundDetail, error) {
	if err := o.checkFresh(s, action); err != nil {
		return models.Payment{}, models.RefundDetail{}, err
	}
	if s.Request.Status != models.StatusCashierRefunding {
		return models.Payment{}, models.RefundDetail{}, &models.TransitionRefusedError{From: s.Request.Status, Action: action, Reason: "refund is not waiting for the cashier"}
	}
	p, pos := findPayment(s.Payments, paymentID)
	if pos < 0 || !p.Direction.IsPaidIn() {
		return models.Payment{}, models.RefundDetail{}, models.NewValidationError(action, "payment_id", "unknown_payment")
	}
	if p.PayMode == models.PayModePosPreLicensing {
		return models.Payment{}, models.RefundDetail{}, models.NewValidationError(action, "pay_mode", "pos_pre_licensing_not_refundable")
	}
	detail, idx := findDetail(s.Details, paymentID)
	if idx < 0 || detail.ID == 0 {
		return models.Payment{}, models.RefundDetail{}, models.NewValidationError(action, "payment_id", "no_refund_detail")
	}
	return p, detail, nil
}

func offered(modes []models.PayMode, m models.PayMode) bool {
	for _, x := range modes {
		if x == m {
			return true
		}
	}
	return false
}
