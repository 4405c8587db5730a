// Package ledger computes paid, deducted and refunded amounts for a refund
// request. Every function is pure; callers pass in the collections they hold.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Ledger is a read-only view over the money records of one refund request.
type Ledger struct {
	payments   []models.Payment
	details    []models.RefundDetail
	deductions []models.DeductionPayment
}

// New builds a ledger. Payments must not include deduction records; those are
// passed separately.
func New(payments []models.Payment, details []models.RefundDetail, deductions []models.DeductionPayment) Ledger {
	return Ledger{payments: payments, details: details, deductions: deductions}
}

// Payment finds a payment by id.
func (l Ledger) Payment(id int64) (models.Payment, bool) {
	for _, p := range l.payments {
		if p.ID == id {
			return p, true
		}
	}
	return models.Payment{}, false
}

// AmountAlreadyPaid sums paid-in payments of feeType.
func (l Ledger) AmountAlreadyPaid(feeType models.FeeType) decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.payments {
		if p.FeeType == feeType && p.Direction.IsPaidIn() {
			total = total.Add(p.Fee)
		}
	}
	return total
}

// RemainingToBePaid is the contractual amount still open for feeType.
func (l Ledger) RemainingToBePaid(feeType models.FeeType, contractual decimal.Decimal) decimal.Decimal {
	return contractual.Sub(l.AmountAlreadyPaid(feeType))
}

// TotalDeducted sums the deductions attached to paymentID.
func (l Ledger) TotalDeducted(paymentID int64) decimal.Decimal {
	total := decimal.Zero
	for _, d := range l.deductions {
		if d.ParentPaymentID == paymentID {
			total = total.Add(d.Fee)
		}
	}
	return total
}

// DefaultRefundable is the refundable amount of a payment before anyone
// edits its refund line.
func (l Ledger) DefaultRefundable(p models.Payment) decimal.Decimal {
	return p.Fee.Sub(l.TotalDeducted(p.ID))
}

// RemainingDeductible is how much more can be deducted from paymentID.
// It is bounded by the payment fee net of existing deductions and, when the
// refund line is already set, by the line's refundable amount.
func (l Ledger) RemainingDeductible(paymentID int64) decimal.Decimal {
	p, ok := l.Payment(paymentID)
	if !ok {
		return decimal.Zero
	}
	remaining := l.DefaultRefundable(p)
	if d, ok := l.DetailForPayment(paymentID); ok && d.Fee.Valid && d.Fee.Decimal.LessThan(remaining) {
		remaining = d.Fee.Decimal
	}
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// DetailForPayment finds the refund line of a payment.
func (l Ledger) DetailForPayment(paymentID int64) (models.RefundDetail, bool) {
	for _, d := range l.details {
		if d.PaymentID == paymentID {
			return d, true
		}
	}
	return models.RefundDetail{}, false
}

// RefundableAmount is the line's fee. A line whose fee is not yet determined
// has nothing to refund.
func (l Ledger) RefundableAmount(d models.RefundDetail) decimal.Decimal {
	if !d.Fee.Valid {
		return decimal.Zero
	}
	return d.Fee.Decimal
}

// AmountAlreadyRefunded sums refund-out payments recorded against detailID.
func (l Ledger) AmountAlreadyRefunded(detailID int64) decimal.Decimal {
	total := decimal.Zero
	if detailID == 0 {
		return total
	}
	for _, p := range l.payments {
		if p.RefundDetailID != nil && *p.RefundDetailID == detailID && p.Direction.IsRefundOut() {
			total = total.Add(p.Fee)
		}
	}
	return total
}

// UnrefundedAmount is what is still owed on a line. A negative result means
// the line was over-refunded and is returned as is.
func (l Ledger) UnrefundedAmount(d models.RefundDetail) decimal.Decimal {
	return l.RefundableAmount(d).Sub(l.AmountAlreadyRefunded(d.ID))
}

// OverRefunded lists the lines whose refunds exceed their refundable amount.
func (l Ledger) OverRefunded() []models.RefundDetail {
	var out []models.RefundDetail
	for _, d := range l.details {
		if l.UnrefundedAmount(d).IsNegative() {
			out = append(out, d)
		}
	}
	return out
}

// FeeTypeList returns, in canonical order, the fee types with a nonzero paid total.
func (l Ledger) FeeTypeList() []models.FeeType {
	var out []models.FeeType
	for _, ft := range models.AllFeeTypes {
		if l.AmountAlreadyPaid(ft).IsPositive() {
			out = append(out, ft)
		}
	}
	return out
}

// FeeTypeSummary compares what was paid with what is planned to be refunded.
type FeeTypeSummary struct {
	FeeType models.FeeType  `json:"fee_type"`
	Paid    decimal.Decimal `json:"paid"`
	Refund  decimal.Decimal `json:"refund"`
	Percent decimal.Decimal `json:"percent"`
}

// Summarize aggregates paid and planned refund amounts per fee type, for fee
// types that were paid.
func (l Ledger) Summarize() []FeeTypeSummary {
	out := make([]FeeTypeSummary, 0, len(models.AllFeeTypes))
	for _, ft := range l.FeeTypeList() {
		refund := decimal.Zero
		for _, d := range l.details {
			if d.FeeType == ft {
				refund = refund.Add(l.RefundableAmount(d))
			}
		}
		paid := l.AmountAlreadyPaid(ft)
		out = append(out, FeeTypeSummary{
			FeeType: ft,
			Paid:    paid,
			Refund:  refund,
			Percent: PercentOfTotal(refund, paid),
		})
	}
	return out
}

// SumRefundDetails is the sum row over a refund detail list; undetermined
// fees count as zero.
func SumRefundDetails(details []models.RefundDetail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		if d.Fee.Valid {
			total = total.Add(d.Fee.Decimal)
		}
	}
	return total
}

// PercentOfTotal returns part/whole as a percentage rounded to 2 places, or
// zero when whole is zero.
func PercentOfTotal(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole).Round(2)
}
