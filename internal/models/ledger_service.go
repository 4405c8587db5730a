package models

import "time"

// Ack is the ledger service answer to a workflow submission.
type Ack struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	RefundID int64  `json:"refund_id,omitempty"`
}

// SubmitOp names a review-chain submission on the ledger service.
type SubmitOp string

const (
	OpShopManagerExamine SubmitOp = "submitShopManagerExamine"
	OpCeoExamine         SubmitOp = "submitCeoExamine"
	OpAccountantExamine  SubmitOp = "submitAccountantExamine"
	OpCashierRefund      SubmitOp = "submitCashierRefund"
	OpRestart            SubmitOp = "submitRestart"
)

// StageSubmission carries one role's decision together with the full
// refund detail snapshot.
type StageSubmission struct {
	RefundID      int64          `json:"refund_id"`
	Passed        bool           `json:"passed"`
	Remark        string         `json:"remark,omitempty"`
	Signature     Signature      `json:"signature,omitempty"`
	RefundDetails []RefundDetail `json:"refund_details"`
	// ExpectedStatus is the status the caller reviewed; the service refuses
	// the submission when the stored status moved on.
	ExpectedStatus RefundStatus `json:"expected_status"`
}

// LaunchRequest starts a refund for an order.
type LaunchRequest struct {
	Type               RefundType         `json:"type"`
	OrderID            int64              `json:"order_id"`
	Remark             string             `json:"remark,omitempty"`
	Signature          Signature          `json:"signature,omitempty"`
	RefundDetails      []RefundDetail     `json:"refund_details"`
	Deductions         []DeductionPayment `json:"deductions"`
	NeedLaunchWorkflow bool               `json:"need_launch_workflow"`
}

// ReviewRequest rejects an order under review and opens its cancellation refund.
type ReviewRequest struct {
	TaskID             string             `json:"task_id"`
	OrderID            int64              `json:"order_id"`
	Pass               bool               `json:"pass"`
	Signature          Signature          `json:"signature,omitempty"`
	RefundDetails      []RefundDetail     `json:"refund_details"`
	Deductions         []DeductionPayment `json:"deductions"`
	NeedLaunchWorkflow bool               `json:"need_launch_workflow"`
}

// PaymentChange is returned by payment edits that also touch the refund line.
type PaymentChange struct {
	Payment      Payment      `json:"payment"`
	RefundDetail RefundDetail `json:"refund_detail"`
}

// DeductionChange is returned by deduction edits.
type DeductionChange struct {
	Deduction    DeductionPayment `json:"deduction"`
	RefundDetail RefundDetail     `json:"refund_detail"`
}

// DirectRefund is the result of a same-channel refund issuance.
type DirectRefund struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Payment *Payment `json:"payment,omitempty"`
}

// GatewayRefundRequest is sent to an online payment gateway.
type GatewayRefundRequest struct {
	RequestID      string  `json:"request_id"`
	Channel        string  `json:"channel"`
	PayMode        PayMode `json:"pay_mode"`
	RefundDetailID int64   `json:"refund_detail_id"`
	PaymentID      int64   `json:"payment_id"`
	Amount         string  `json:"amount"`
}

// GatewayReceipt is the gateway's answer.
type GatewayReceipt struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// StatusChangedEvent is published after a committed workflow transition.
type StatusChangedEvent struct {
	EventID       string       `json:"event_id"`
	RefundID      int64        `json:"refund_id"`
	RefundType    RefundType   `json:"refund_type"`
	State         RefundStatus `json:"state"`
	PreviousState RefundStatus `json:"previous_state"`
	Role          Role         `json:"role"`
	FastPath      bool         `json:"fast_path"`
	Timestamp     time.Time    `json:"timestamp"`
}
