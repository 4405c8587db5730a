package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

// LedgerService is the remote service that owns refunds and payments. Every
// mutating call carries the full current refund detail and/or deduction
// snapshot; the service recomputes its state from the snapshot.
type LedgerService interface {
	GetRefundByID(ctx context.Context, refundID int64) (*models.RefundRequest, error)
	// GetPaymentList returns every payment of an order, deductions included.
	GetPaymentList(ctx context.Context, orderID int64) ([]models.Payment, error)

	AddPayment(ctx context.Context, payment models.Payment, deductions []models.DeductionPayment) (*models.Payment, error)
	ModifyPayment(ctx context.Context, payment models.Payment, detail models.RefundDetail) (*models.PaymentChange, error)
	DeletePayment(ctx context.Context, paymentID int64) error

	AddDeductionPayment(ctx context.Context, deduction models.DeductionPayment, detail models.RefundDetail) (*models.DeductionChange, error)
	ModifyDeductionPayment(ctx context.Context, deduction models.DeductionPayment, detail models.RefundDetail) (*models.DeductionChange, error)
	DeleteDeductionPayment(ctx context.Context, deductionID int64, detail models.RefundDetail) (*models.DeductionChange, error)

	Launch(ctx context.Context, req models.LaunchRequest) (*models.Ack, error)
	Review(ctx context.Context, req models.ReviewRequest) (*models.Ack, error)
	Submit(ctx context.Context, op models.SubmitOp, req models.StageSubmission) (*models.Ack, error)

	RefundByBalance(ctx context.Context, refundDetailID int64) (*models.DirectRefund, error)
	RefundByGateway(ctx context.Context, refundDetailID int64) (*models.DirectRefund, error)
}
