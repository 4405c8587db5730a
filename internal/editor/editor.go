// Package editor applies deduction and fee edits to a refund's detail lines.
// Each operation validates against the ledger first and then returns a new
// State; the input State is never modified.
package editor

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/ledger"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

// State is the editable part of a refund request.
type State struct {
	Payments   []models.Payment
	Details    []models.RefundDetail
	Deductions []models.DeductionPayment
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := State{
		Payments: append([]models.Payment(nil), s.Payments...),
		Details:  models.CloneDetails(s.Details),
	}
	if s.Deductions != nil {
		out.Deductions = append([]models.DeductionPayment{}, s.Deductions...)
	}
	return out
}

// Ledger returns the ledger view of the state.
func (s State) Ledger() ledger.Ledger {
	return ledger.New(s.Payments, s.Details, s.Deductions)
}

// Change is the outcome of one edit: the touched refund line, the touched
// deduction (zero for fee edits) and the resulting deduction list.
type Change struct {
	Detail      models.RefundDetail       `json:"detail"`
	DetailIndex int                       `json:"detail_index"`
	Deduction   models.DeductionPayment   `json:"deduction"`
	Deductions  []models.DeductionPayment `json:"deductions"`
}

// DeductionInput describes a deduction to add or the new values of one to modify.
type DeductionInput struct {
	ParentPaymentID int64
	FeeType         models.FeeType
	Fee             decimal.Decimal
	Remark          string
}

// SeedRefundDetails builds one refund line per payment, defaulting the fee
// to the payment fee net of its deductions.
func SeedRefundDetails(payments []models.Payment, deductions []models.DeductionPayment) []models.RefundDetail {
	l := ledger.New(payments, nil, deductions)
	details := make([]models.RefundDetail, 0, len(payments))
	for _, p := range payments {
		details = append(details, models.RefundDetail{
			PaymentID: p.ID,
			FeeType:   p.FeeType,
			Fee:       decimal.NewNullDecimal(l.DefaultRefundable(p)),
		})
	}
	return details
}

// AddDeduction withholds in.Fee from the parent payment's refund line.
func AddDeduction(s State, in DeductionInput) (State, Change, error) {
	const op = "add deduction"
	l := s.Ledger()
	parent, ok := l.Payment(in.ParentPaymentID)
	if !ok {
		return s, Change{}, models.NewValidationError(op, "parent_payment_id", "unknown_payment")
	}
	idx := detailIndex(s.Details, in.ParentPaymentID)
	if idx < 0 {
		return s, Change{}, models.NewValidationError(op, "parent_payment_id", "no_refund_detail")
	}
	if v := checkDeduction(in.Fee, in.Remark, l.RemainingDeductible(in.ParentPaymentID)); !v.Empty() {
		return s, Change{}, &models.ValidationError{Op: op, Fields: v}
	}

	next := s.Clone()
	feeType := in.FeeType
	if feeType == "" {
		feeType = parent.FeeType
	}
	d := models.DeductionPayment{
		Key:               uuid.NewString(),
		Seq:               len(next.Deductions) + 1,
		ParentPaymentID:   in.ParentPaymentID,
		FeeType:           feeType,
		Fee:               in.Fee,
		PayMode:           parent.PayMode,
		Remark:            strings.TrimSpace(in.Remark),
		RefundDetailIndex: idx,
	}
	next.Deductions = append(next.Deductions, d)
	detail := &next.Details[idx]
	detail.Fee = decimal.NewNullDecimal(lineFee(l, *detail, parent).Sub(in.Fee))

	return next, Change{Detail: *detail, DetailIndex: idx, Deduction: d, Deductions: next.Deductions}, nil
}

// ModifyDeduction changes the fee and remark of the deduction identified by key.
// The refund line becomes oldFee + previousDeductionFee - newFee.
func ModifyDeduction(s State, key string, newFee decimal.Decimal, newRemark string) (State, Change, error) {
	const op = "modify deduction"
	pos := deductionIndex(s.Deductions, key)
	if pos < 0 {
		return s, Change{}, models.NewValidationError(op, "key", "unknown_deduction")
	}
	prev := s.Deductions[pos]
	l := s.Ledger()
	parent, ok := l.Payment(prev.ParentPaymentID)
	if !ok {
		return s, Change{}, models.NewValidationError(op, "parent_payment_id", "unknown_payment")
	}
	idx := detailIndex(s.Details, prev.ParentPaymentID)
	if idx < 0 {
		return s, Change{}, models.NewValidationError(op, "parent_payment_id", "no_refund_detail")
	}
	limit := l.RemainingDeductible(prev.ParentPaymentID).Add(prev.Fee)
	if v := checkDeduction(newFee, newRemark, limit); !v.Empty() {
		return s, Change{}, &models.ValidationError{Op: op, Fields: v}
	}

	next := s.Clone()
	updated := prev
	updated.Fee = newFee
	updated.Remark = strings.TrimSpace(newRemark)
	updated.RefundDetailIndex = idx
	next.Deductions[pos] = updated
	detail := &next.Details[idx]
	detail.Fee = decimal.NewNullDecimal(lineFee(l, *detail, parent).Add(prev.Fee).Sub(newFee))

	return next, Change{Detail: *detail, DetailIndex: idx, Deduction: updated, Deductions: next.Deductions}, nil
}

// DeleteDeduction removes the deduction identified by key, gives its fee back
// to the refund line and renumbers the remaining deductions.
func DeleteDeduction(s State, key string) (State, Change, error) {
	const op = "delete deduction"
	pos := deductionIndex(s.Deductions, key)
	if pos < 0 {
		return s, Change{}, models.NewValidationError(op, "key", "unknown_deduction")
	}
	removed := s.Deductions[pos]
	l := s.Ledger()
	parent, ok := l.Payment(removed.ParentPaymentID)
	if !ok {
		return s, Change{}, models.NewValidationError(op, "parent_payment_id", "unknown_payment")
	}
	idx := detailIndex(s.Details, removed.ParentPaymentID)
	if idx < 0 {
		return s, Change{}, models.NewValidationError(op, "parent_payment_id", "no_refund_detail")
	}

	next := s.Clone()
	remaining := make([]models.DeductionPayment, 0, len(next.Deductions)-1)
	remaining = append(remaining, next.Deductions[:pos]...)
	remaining = append(remaining, next.Deductions[pos+1:]...)
	for i := range remaining {
		remaining[i].Seq = i + 1
	}
	next.Deductions = remaining
	detail := &next.Details[idx]
	detail.Fee = decimal.NewNullDecimal(lineFee(l, *detail, parent).Add(removed.Fee))

	return next, Change{Detail: *detail, DetailIndex: idx, Deduction: removed, Deductions: next.Deductions}, nil
}

// SetRefundDetailFee edits the refund line of paymentID directly. The fee must
// lie between zero and the payment fee net of its deductions.
func SetRefundDetailFee(s State, paymentID int64, fee decimal.Decimal) (State, Change, error) {
	const op = "set refund detail fee"
	l := s.Ledger()
	p, ok := l.Payment(paymentID)
	if !ok {
		return s, Change{}, models.NewValidationError(op, "payment_id", "unknown_payment")
	}
	idx := detailIndex(s.Details, paymentID)
	if idx < 0 {
		return s, Change{}, models.NewValidationError(op, "payment_id", "no_refund_detail")
	}
	if fee.IsNegative() || fee.GreaterThan(l.DefaultRefundable(p)) {
		return s, Change{}, models.NewValidationError(op, "fee", "out_of_range")
	}

	next := s.Clone()
	next.Details[idx].Fee = decimal.NewNullDecimal(fee)
	return next, Change{Detail: next.Details[idx], DetailIndex: idx, Deductions: next.Deductions}, nil
}

// SetDetailRemark records role's remark on the refund line of paymentID.
func SetDetailRemark(s State, paymentID int64, role models.Role, remark string) (State, error) {
	idx := detailIndex(s.Details, paymentID)
	if idx < 0 {
		return s, models.NewValidationError("set detail remark", "payment_id", "no_refund_detail")
	}
	next := s.Clone()
	if next.Details[idx].Remarks == nil {
		next.Details[idx].Remarks = models.Remarks{}
	}
	next.Details[idx].Remarks[role] = strings.TrimSpace(remark)
	return next, nil
}

func checkDeduction(fee decimal.Decimal, remark string, limit decimal.Decimal) models.Violations {
	v := models.Violations{}
	if strings.TrimSpace(remark) == "" {
		v["remark"] = "required"
	}
	if !fee.IsPositive() {
		v["fee"] = "must_be_positive"
	} else if fee.GreaterThan(limit) {
		v["fee"] = "exceeds_remaining_deductible"
	}
	return v
}

// lineFee is the current refundable amount of a line, falling back to the
// payment default while the fee is undetermined.
func lineFee(l ledger.Ledger, d models.RefundDetail, p models.Payment) decimal.Decimal {
	if d.Fee.Valid {
		return d.Fee.Decimal
	}
	return l.DefaultRefundable(p)
}

func detailIndex(details []models.RefundDetail, paymentID int64) int {
	for i, d := range details {
		if d.PaymentID == paymentID {
			return i
		}
	}
	return -1
}

func deductionIndex(deductions []models.DeductionPayment, key string) int {
	for i, d := range deductions {
		if d.Key == key {
			return i
		}
	}
	return -1
}
