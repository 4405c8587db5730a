package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Remarks holds one free-text remark per role.
type Remarks map[Role]string

// Get returns the trimmed remark written by role.
func (r Remarks) Get(role Role) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r[role])
}

// Has reports whether role left a non-empty remark.
func (r Remarks) Has(role Role) bool {
	return r.Get(role) != ""
}

// Clone returns an independent copy.
func (r Remarks) Clone() Remarks {
	if r == nil {
		return nil
	}
	out := make(Remarks, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RefundRequest is the aggregate root of a refund.
type RefundRequest struct {
	ID            int64          `json:"id"`
	Type          RefundType     `json:"type"`
	Status        RefundStatus   `json:"status"`
	OrderID       int64          `json:"order_id"`
	TaskID        string         `json:"task_id,omitempty"`
	Remarks       Remarks        `json:"remarks,omitempty"`
	RefundDetails []RefundDetail `json:"refund_details"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Payment is a single paid-in or paid-out money movement. Deductions share
// the same shape and point at their parent through ParentPaymentID.
type Payment struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	FeeType         FeeType         `json:"fee_type"`
	Fee             decimal.Decimal `json:"fee"`
	PayMode         PayMode         `json:"pay_mode"`
	Direction       Direction       `json:"direction"`
	FinancialStatus FinancialStatus `json:"financial_status"`
	ParentPaymentID *int64          `json:"parent_payment_id,omitempty"`
	RefundDetailID  *int64          `json:"refund_detail_id,omitempty"`
	Remark          string          `json:"remark,omitempty"`
	PayTime         time.Time       `json:"pay_time"`
}

// IsDeduction reports whether the payment is a deduction record.
func (p Payment) IsDeduction() bool {
	return p.ParentPaymentID != nil
}

// RefundDetail is the planned refund for one originating payment.
type RefundDetail struct {
	ID                 int64               `json:"id"`
	RefundID           int64               `json:"refund_id"`
	PaymentID          int64               `json:"payment_id"`
	FeeType            FeeType             `json:"fee_type"`
	Fee                decimal.NullDecimal `json:"fee"`
	Account            string              `json:"account,omitempty"`
	BankOfDeposit      string              `json:"bank_of_deposit,omitempty"`
	Remarks            Remarks             `json:"remarks,omitempty"`
	ApplicationFormURL string              `json:"application_form_url,omitempty"`
	// StageEntryFee and StageEntryRemarks are the line as it stood when the
	// refund entered its current status.
	StageEntryFee     decimal.NullDecimal `json:"stage_entry_fee"`
	StageEntryRemarks Remarks             `json:"stage_entry_remarks,omitempty"`
}

// Clone returns a copy that shares no maps with d.
func (d RefundDetail) Clone() RefundDetail {
	d.Remarks = d.Remarks.Clone()
	d.StageEntryRemarks = d.StageEntryRemarks.Clone()
	return d
}

// AtStageEntry returns the line as it stood when the current status was
// entered. Lines stored before that snapshot existed are returned as is.
func (d RefundDetail) AtStageEntry() RefundDetail {
	out := d.Clone()
	if d.StageEntryFee.Valid {
		out.Fee = d.StageEntryFee
		out.Remarks = d.StageEntryRemarks.Clone()
	}
	return out
}

// DeductionPayment is an amount withheld from a payment before it is refunded.
type DeductionPayment struct {
	ID                int64           `json:"id"`
	Key               string          `json:"key"`
	Seq               int             `json:"seq"`
	ParentPaymentID   int64           `json:"parent_payment_id"`
	FeeType           FeeType         `json:"fee_type"`
	Fee               decimal.Decimal `json:"fee"`
	PayMode           PayMode         `json:"pay_mode"`
	Remark            string          `json:"remark"`
	RefundDetailIndex int             `json:"refund_detail_index"`
}

// DeductionKey is the key of a persisted deduction. Draft deductions get a
// random key until the ledger service stores them.
func DeductionKey(id int64) string {
	return "d" + strconv.FormatInt(id, 10)
}

// AsPayment converts a deduction to the payment shape the ledger service stores.
func (d DeductionPayment) AsPayment(orderID int64) Payment {
	parent := d.ParentPaymentID
	return Payment{
		ID:              d.ID,
		OrderID:         orderID,
		FeeType:         d.FeeType,
		Fee:             d.Fee,
		PayMode:         d.PayMode,
		Direction:       DirectionCustomerToWagons,
		FinancialStatus: FinancialStatusToReview,
		ParentPaymentID: &parent,
		Remark:          d.Remark,
	}
}

// CloneDetails deep-copies a refund detail list.
func CloneDetails(in []RefundDetail) []RefundDetail {
	if in == nil {
		return nil
	}
	out := make([]RefundDetail, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}

// Signature is an opaque signature artifact captured by the client.
type Signature []byte

// Empty reports whether no signature was captured.
func (s Signature) Empty() bool {
	return len(s) == 0
}
