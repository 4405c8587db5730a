package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/ledger"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/workflow"
)

const msgRestarted = "refund process has been restarted"

// RefundRepository is the ledger service backed by a SQL store. It checks
// fee conservation on every snapshot it receives and moves a refund's status
// only from the status the caller reviewed.
type RefundRepository struct {
	db      *gorm.DB
	machine *workflow.Machine
	gateway interfaces.RefundGateway
}

func NewRefundRepository(db *gorm.DB, machine *workflow.Machine, gateway interfaces.RefundGateway) *RefundRepository {
	if machine == nil {
		machine = workflow.New(nil)
	}
	return &RefundRepository{db: db, machine: machine, gateway: gateway}
}

func (r *RefundRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&RefundRecord{}, &PaymentRecord{}, &RefundDetailRecord{})
}

func (r *RefundRepository) GetRefundByID(ctx context.Context, refundID int64) (*models.RefundRequest, error) {
	var rec RefundRecord
	if err := r.db.WithContext(ctx).First(&rec, refundID).Error; err != nil {
		return nil, notFound(err, "refund", refundID)
	}
	var details []RefundDetailRecord
	if err := r.db.WithContext(ctx).Where("refund_id = ?", refundID).Order("id").Find(&details).Error; err != nil {
		return nil, err
	}
	refund := rec.ToDomain(details)
	return &refund, nil
}

func (r *RefundRepository) GetPaymentList(ctx context.Context, orderID int64) ([]models.Payment, error) {
	recs, err := orderPayments(r.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Payment, 0, len(recs))
	for _, p := range recs {
		out = append(out, p.ToDomain())
	}
	return out, nil
}

// AddPayment records a payment together with its initial deductions.
func (r *RefundRepository) AddPayment(ctx context.Context, payment models.Payment, deductions []models.DeductionPayment) (*models.Payment, error) {
	if payment.Fee.IsNegative() {
		return nil, rejected("payment fee must not be negative")
	}
	total := decimal.Zero
	for _, d := range deductions {
		total = total.Add(d.Fee)
	}
	if total.GreaterThan(payment.Fee) {
		return nil, rejected("deductions exceed payment fee")
	}

	var created models.Payment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := PaymentRecordFromDomain(payment)
		rec.ID = 0
		if rec.PayTime.IsZero() {
			rec.PayTime = time.Now()
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		for _, d := range deductions {
			d.ParentPaymentID = rec.ID
			drec := PaymentRecordFromDomain(d.AsPayment(payment.OrderID))
			drec.ID = 0
			drec.PayTime = rec.PayTime
			if err := tx.Create(&drec).Error; err != nil {
				return err
			}
		}
		created = rec.ToDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ModifyPayment updates a payment and stores the caller's refund line for it.
func (r *RefundRepository) ModifyPayment(ctx context.Context, payment models.Payment, detail models.RefundDetail) (*models.PaymentChange, error) {
	var change models.PaymentChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec PaymentRecord
		if err := tx.First(&rec, payment.ID).Error; err != nil {
			return notFound(err, "payment", payment.ID)
		}
		if models.FinancialStatus(rec.FinancialStatus) == models.FinancialStatusApproved {
			return rejected(fmt.Sprintf("payment %d is financially approved", rec.ID))
		}
		if payment.Fee.IsNegative() {
			return rejected("payment fee must not be negative")
		}
		deducted, err := deductedFrom(tx, rec.ID)
		if err != nil {
			return err
		}
		if deducted.GreaterThan(payment.Fee) {
			return rejected("deductions exceed payment fee")
		}

		rec.FeeType = string(payment.FeeType)
		rec.Fee = payment.Fee
		rec.PayMode = string(payment.PayMode)
		rec.Remark = payment.Remark
		if !payment.PayTime.IsZero() {
			rec.PayTime = payment.PayTime
		}
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		change.Payment = rec.ToDomain()

		if detail.PaymentID == 0 {
			return nil
		}
		if detail.PaymentID != rec.ID {
			return rejected("refund detail belongs to another payment")
		}
		saved, err := saveDetail(tx, detail, payment.Fee.Sub(deducted))
		if err != nil {
			return err
		}
		change.RefundDetail = saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// DeletePayment removes a payment, its deductions and its refund line.
func (r *RefundRepository) DeletePayment(ctx context.Context, paymentID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec PaymentRecord
		if err := tx.First(&rec, paymentID).Error; err != nil {
			return notFound(err, "payment", paymentID)
		}
		if models.FinancialStatus(rec.FinancialStatus) == models.FinancialStatusApproved {
			return rejected(fmt.Sprintf("payment %d is financially approved", rec.ID))
		}
		if err := tx.Where("parent_payment_id = ?", paymentID).Delete(&PaymentRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("payment_id = ?", paymentID).Delete(&RefundDetailRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&PaymentRecord{}, paymentID).Error
	})
}

func (r *RefundRepository) AddDeductionPayment(ctx context.Context, deduction models.DeductionPayment, detail models.RefundDetail) (*models.DeductionChange, error) {
	return r.writeDeduction(ctx, "add deduction", deduction, detail)
}

func (r *RefundRepository) ModifyDeductionPayment(ctx context.Context, deduction models.DeductionPayment, detail models.RefundDetail) (*models.DeductionChange, error) {
	if deduction.ID == 0 {
		return nil, rejected("deduction is not stored yet")
	}
	return r.writeDeduction(ctx, "modify deduction", deduction, detail)
}

func (r *RefundRepository) DeleteDeductionPayment(ctx context.Context, deductionID int64, detail models.RefundDetail) (*models.DeductionChange, error) {
	var change models.DeductionChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec PaymentRecord
		if err := tx.Where("parent_payment_id IS NOT NULL").First(&rec, deductionID).Error; err != nil {
			return notFound(err, "deduction", deductionID)
		}
		parent, err := loadPayment(tx, *rec.ParentPaymentID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&PaymentRecord{}, deductionID).Error; err != nil {
			return err
		}
		deducted, err := deductedFrom(tx, parent.ID)
		if err != nil {
			return err
		}
		saved, err := saveDetail(tx, detail, parent.Fee.Sub(deducted))
		if err != nil {
			return err
		}
		change = models.DeductionChange{Deduction: rec.DeductionToDomain(0), RefundDetail: saved}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

func (r *RefundRepository) writeDeduction(ctx context.Context, op string, deduction models.DeductionPayment, detail models.RefundDetail) (*models.DeductionChange, error) {
	if !deduction.Fee.IsPositive() {
		return nil, rejected(op + ": fee must be positive")
	}
	var change models.DeductionChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parent, err := loadPayment(tx, deduction.ParentPaymentID)
		if err != nil {
			return err
		}
		if detail.PaymentID != parent.ID {
			return rejected(op + ": refund detail belongs to another payment")
		}

		rec := PaymentRecordFromDomain(deduction.AsPayment(parent.OrderID))
		rec.PayTime = parent.PayTime
		if deduction.ID != 0 {
			var existing PaymentRecord
			if err := tx.Where("parent_payment_id = ?", parent.ID).First(&existing, deduction.ID).Error; err != nil {
				return notFound(err, "deduction", deduction.ID)
			}
			rec.CreatedAt = existing.CreatedAt
		}
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}

		deducted, err := deductedFrom(tx, parent.ID)
		if err != nil {
			return err
		}
		if deducted.GreaterThan(parent.Fee) {
			return rejected(fmt.Sprintf("%s: deductions exceed fee of payment %d", op, parent.ID))
		}
		saved, err := saveDetail(tx, detail, parent.Fee.Sub(deducted))
		if err != nil {
			return err
		}
		d := rec.DeductionToDomain(deduction.Seq)
		d.RefundDetailIndex = deduction.RefundDetailIndex
		change = models.DeductionChange{Deduction: d, RefundDetail: saved}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// Launch stores a new refund with its deductions and refund lines. It enters
// the first review stage, or FINISH when no review is needed.
func (r *RefundRepository) Launch(ctx context.Context, req models.LaunchRequest) (*models.Ack, error) {
	return r.create(ctx, createParams{
		Type:       req.Type,
		OrderID:    req.OrderID,
		Remark:     req.Remark,
		Details:    req.RefundDetails,
		Deductions: req.Deductions,
		Review:     req.NeedLaunchWorkflow,
	})
}

// Review records a rejected order review and opens its cancellation refund.
// A passed review opens nothing.
func (r *RefundRepository) Review(ctx context.Context, req models.ReviewRequest) (*models.Ack, error) {
	if req.Pass {
		return &models.Ack{Success: true}, nil
	}
	return r.create(ctx, createParams{
		Type:       models.RefundTypeOrderRentCancel,
		OrderID:    req.OrderID,
		TaskID:     req.TaskID,
		Details:    req.RefundDetails,
		Deductions: req.Deductions,
		Review:     req.NeedLaunchWorkflow,
	})
}

type createParams struct {
	Type       models.RefundType
	OrderID    int64
	TaskID     string
	Remark     string
	Details    []models.RefundDetail
	Deductions []models.DeductionPayment
	Review     bool
}

func (r *RefundRepository) create(ctx context.Context, p createParams) (*models.Ack, error) {
	status := models.StatusFinish
	if p.Review {
		first, err := r.machine.FirstStage(p.Type)
		if err != nil {
			return &models.Ack{Message: err.Error()}, nil
		}
		status = first
	}

	var ack models.Ack
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&RefundRecord{}).
			Where("order_id = ? AND type = ? AND status <> ?", p.OrderID, string(p.Type), string(models.StatusFinish)).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			ack = models.Ack{Message: "a refund of this type is already in progress for the order"}
			return nil
		}

		payments, err := orderPayments(tx, p.OrderID)
		if err != nil {
			return err
		}
		var drafts []models.DeductionPayment
		for _, d := range p.Deductions {
			if d.ID == 0 {
				drafts = append(drafts, d)
			}
		}
		deductions := append(deductionsOf(payments), drafts...)
		l := snapshotLedger(payments, deductions, p.Details)
		if msg := checkConservation(l, deductions, p.Details); msg != "" {
			ack = models.Ack{Message: msg}
			return nil
		}

		rec := RefundRecord{
			Type:    string(p.Type),
			Status:  string(status),
			OrderID: p.OrderID,
			TaskID:  p.TaskID,
			Remarks: models.Remarks{},
		}
		if p.Remark != "" {
			rec.Remarks[models.RoleDeliver] = p.Remark
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		for _, d := range drafts {
			drec := PaymentRecordFromDomain(d.AsPayment(p.OrderID))
			drec.ID = 0
			drec.PayTime = time.Now()
			if err := tx.Create(&drec).Error; err != nil {
				return err
			}
		}
		for _, d := range p.Details {
			drec := RefundDetailRecordFromDomain(d)
			drec.ID = 0
			drec.RefundID = rec.ID
			drec.StageEntryFee = drec.Fee
			drec.StageEntryRemarks = drec.Remarks.Clone()
			if err := tx.Create(&drec).Error; err != nil {
				return err
			}
		}
		ack = models.Ack{Success: true, RefundID: rec.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ack.Success {
		telemetry.Logger.Info("Refund created",
			zap.Int64("refund_id", ack.RefundID),
			zap.Int64("order_id", p.OrderID),
			zap.String("state", string(status)),
		)
	}
	return &ack, nil
}

// Submit records a stage decision. The status moves only if it still equals
// sub.ExpectedStatus; otherwise the refund was restarted or advanced by
// someone else and the submission is refused.
func (r *RefundRepository) Submit(ctx context.Context, op models.SubmitOp, sub models.StageSubmission) (*models.Ack, error) {
	var ack models.Ack
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec RefundRecord
		if err := tx.First(&rec, sub.RefundID).Error; err != nil {
			return notFound(err, "refund", sub.RefundID)
		}
		from := models.RefundStatus(rec.Status)
		if from != sub.ExpectedStatus {
			ack = models.Ack{Message: msgRestarted}
			return nil
		}
		if expected, ok := workflow.SubmitOpFor(from); !ok || expected != op {
			ack = models.Ack{Message: fmt.Sprintf("%s does not apply in state %s", op, from)}
			return nil
		}
		to, err := r.nextStatus(models.RefundType(rec.Type), from, sub.Passed)
		if err != nil {
			ack = models.Ack{Message: err.Error()}
			return nil
		}

		payments, err := orderPayments(tx, rec.OrderID)
		if err != nil {
			return err
		}
		deductions := deductionsOf(payments)
		l := snapshotLedger(payments, deductions, sub.RefundDetails)
		if msg := checkConservation(l, deductions, sub.RefundDetails); msg != "" {
			ack = models.Ack{Message: msg}
			return nil
		}
		var stored []RefundDetailRecord
		if err := tx.Where("refund_id = ?", rec.ID).Find(&stored).Error; err != nil {
			return err
		}
		created := make(map[int64]time.Time, len(stored))
		for _, d := range stored {
			created[d.ID] = d.CreatedAt
		}
		for _, d := range sub.RefundDetails {
			at, ok := created[d.ID]
			if d.ID != 0 && !ok {
				ack = models.Ack{Message: fmt.Sprintf("refund line %d does not belong to refund %d", d.ID, rec.ID)}
				return errRollback
			}
			d.RefundID = rec.ID
			drec := RefundDetailRecordFromDomain(d)
			drec.CreatedAt = at
			if err := tx.Save(&drec).Error; err != nil {
				return err
			}
		}

		remarks := rec.Remarks.Clone()
		if remarks == nil {
			remarks = models.Remarks{}
		}
		if role, ok := workflow.RoleFor(from); ok && sub.Remark != "" {
			remarks[role] = sub.Remark
		}
		result := tx.Model(&RefundRecord{}).
			Where("id = ? AND status = ?", rec.ID, string(from)).
			Updates(RefundRecord{Status: string(to), Remarks: remarks})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			ack = models.Ack{Message: msgRestarted}
			return errRollback
		}
		if err := enterStage(tx, rec.ID); err != nil {
			return err
		}

		telemetry.Logger.Info("Refund state transition",
			zap.Int64("refund_id", rec.ID),
			zap.String("from_state", string(from)),
			zap.String("to_state", string(to)),
		)
		ack = models.Ack{Success: true, RefundID: rec.ID}
		return nil
	})
	if err != nil && !errors.Is(err, errRollback) {
		return nil, err
	}
	return &ack, nil
}

func (r *RefundRepository) nextStatus(t models.RefundType, from models.RefundStatus, passed bool) (models.RefundStatus, error) {
	if from == models.StatusRestarting {
		if !passed {
			return "", fmt.Errorf("a restart cannot be rejected")
		}
		return r.machine.FirstStage(t)
	}
	if passed {
		return r.machine.Next(t, from)
	}
	if from == models.StatusCashierRefunding {
		return "", fmt.Errorf("the cashier cannot reject a refund")
	}
	return models.StatusRestarting, nil
}

// RefundByBalance pays the unrefunded amount of a line back to the customer
// balance.
func (r *RefundRepository) RefundByBalance(ctx context.Context, refundDetailID int64) (*models.DirectRefund, error) {
	target, res, err := r.directRefundTarget(ctx, refundDetailID, func(p models.Payment) bool {
		return p.PayMode == models.PayModeBalance
	})
	if err != nil || res != nil {
		return res, err
	}
	payment, err := r.recordRefundOut(ctx, target, models.PayModeBalance, "balance refund")
	if err != nil {
		return nil, err
	}
	return &models.DirectRefund{Success: true, Payment: payment}, nil
}

// RefundByGateway asks the online gateway to refund the unrefunded amount of
// a line and records the refund once the gateway confirms it.
func (r *RefundRepository) RefundByGateway(ctx context.Context, refundDetailID int64) (*models.DirectRefund, error) {
	if r.gateway == nil {
		return nil, fmt.Errorf("no refund gateway configured")
	}
	target, res, err := r.directRefundTarget(ctx, refundDetailID, func(p models.Payment) bool {
		return p.PayMode.IsGatewayChannel()
	})
	if err != nil || res != nil {
		return res, err
	}

	receipt, err := r.gateway.Refund(ctx, models.GatewayRefundRequest{
		RequestID:      uuid.NewString(),
		Channel:        target.payment.PayMode.Channel(),
		PayMode:        target.payment.PayMode,
		RefundDetailID: target.detail.ID,
		PaymentID:      target.payment.ID,
		Amount:         target.amount.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("gateway refund: %w", err)
	}
	if !receipt.Success {
		return &models.DirectRefund{Message: receipt.Message}, nil
	}
	payment, err := r.recordRefundOut(ctx, target, target.payment.PayMode, "gateway transaction "+receipt.TransactionID)
	if err != nil {
		return nil, err
	}
	return &models.DirectRefund{Success: true, Payment: payment}, nil
}

type refundTarget struct {
	detail  models.RefundDetail
	payment models.Payment
	amount  decimal.Decimal
}

// directRefundTarget resolves what a direct refund of refundDetailID would
// pay. A non-nil DirectRefund is a refusal to hand back as is.
func (r *RefundRepository) directRefundTarget(ctx context.Context, refundDetailID int64, channelOK func(models.Payment) bool) (refundTarget, *models.DirectRefund, error) {
	db := r.db.WithContext(ctx)
	var drec RefundDetailRecord
	if err := db.First(&drec, refundDetailID).Error; err != nil {
		return refundTarget{}, nil, notFound(err, "refund detail", refundDetailID)
	}
	var refund RefundRecord
	if err := db.First(&refund, drec.RefundID).Error; err != nil {
		return refundTarget{}, nil, notFound(err, "refund", drec.RefundID)
	}
	if models.RefundStatus(refund.Status) != models.StatusCashierRefunding {
		return refundTarget{}, &models.DirectRefund{Message: "refund is not waiting for the cashier"}, nil
	}
	prec, err := loadPayment(db, drec.PaymentID)
	if err != nil {
		return refundTarget{}, nil, err
	}
	payment := prec.ToDomain()
	if !channelOK(payment) || payment.PayMode == models.PayModePosPreLicensing {
		return refundTarget{}, &models.DirectRefund{Message: fmt.Sprintf("pay mode %s cannot be refunded this way", payment.PayMode)}, nil
	}

	payments, err := orderPayments(db, refund.OrderID)
	if err != nil {
		return refundTarget{}, nil, err
	}
	detail := drec.ToDomain()
	l := ledger.New(domainPayments(payments), []models.RefundDetail{detail}, nil)
	amount := l.UnrefundedAmount(detail)
	if !amount.IsPositive() {
		return refundTarget{}, &models.DirectRefund{Message: "nothing left to refund on this line"}, nil
	}
	return refundTarget{detail: detail, payment: payment, amount: amount}, nil, nil
}

func (r *RefundRepository) recordRefundOut(ctx context.Context, t refundTarget, mode models.PayMode, remark string) (*models.Payment, error) {
	detailID := t.detail.ID
	rec := PaymentRecord{
		OrderID:         t.payment.OrderID,
		FeeType:         string(t.payment.FeeType),
		Fee:             t.amount,
		PayMode:         string(mode),
		Direction:       string(t.payment.Direction.RefundDirection()),
		FinancialStatus: string(models.FinancialStatusToReview),
		RefundDetailID:  &detailID,
		Remark:          remark,
		PayTime:         time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	telemetry.Logger.Info("Refund paid out",
		zap.Int64("refund_detail_id", detailID),
		zap.String("pay_mode", string(mode)),
		zap.String("amount", t.amount.String()),
	)
	p := rec.ToDomain()
	return &p, nil
}

var errRollback = errors.New("rollback")

func orderPayments(db *gorm.DB, orderID int64) ([]PaymentRecord, error) {
	var recs []PaymentRecord
	err := db.Where("order_id = ?", orderID).Order("id").Find(&recs).Error
	return recs, err
}

func loadPayment(db *gorm.DB, id int64) (PaymentRecord, error) {
	var rec PaymentRecord
	if err := db.Where("parent_payment_id IS NULL").First(&rec, id).Error; err != nil {
		return rec, notFound(err, "payment", id)
	}
	return rec, nil
}

func deductedFrom(db *gorm.DB, paymentID int64) (decimal.Decimal, error) {
	var recs []PaymentRecord
	if err := db.Where("parent_payment_id = ?", paymentID).Find(&recs).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, d := range recs {
		total = total.Add(d.Fee)
	}
	return total, nil
}

// saveDetail stores a refund line after checking it against the payment's
// refundable amount.
func saveDetail(tx *gorm.DB, d models.RefundDetail, limit decimal.Decimal) (models.RefundDetail, error) {
	if d.Fee.Valid && (d.Fee.Decimal.IsNegative() || d.Fee.Decimal.GreaterThan(limit)) {
		return d, rejected(fmt.Sprintf("refund fee of payment %d exceeds %s", d.PaymentID, limit))
	}
	if d.ID == 0 {
		return d, nil
	}
	var existing RefundDetailRecord
	if err := tx.First(&existing, d.ID).Error; err != nil {
		return d, notFound(err, "refund detail", d.ID)
	}
	rec := RefundDetailRecordFromDomain(d)
	rec.RefundID = existing.RefundID
	rec.CreatedAt = existing.CreatedAt
	// The stage-entry baseline only moves with the status.
	rec.StageEntryFee = existing.StageEntryFee
	rec.StageEntryRemarks = existing.StageEntryRemarks
	if err := tx.Save(&rec).Error; err != nil {
		return d, err
	}
	return rec.ToDomain(), nil
}

func deductionsOf(recs []PaymentRecord) []models.DeductionPayment {
	var out []models.DeductionPayment
	for _, p := range recs {
		if p.ParentPaymentID != nil {
			out = append(out, p.DeductionToDomain(len(out)+1))
		}
	}
	return out
}

func domainPayments(recs []PaymentRecord) []models.Payment {
	out := make([]models.Payment, 0, len(recs))
	for _, p := range recs {
		if p.ParentPaymentID == nil {
			out = append(out, p.ToDomain())
		}
	}
	return out
}

func snapshotLedger(recs []PaymentRecord, deductions []models.DeductionPayment, details []models.RefundDetail) ledger.Ledger {
	return ledger.New(domainPayments(recs), details, deductions)
}

// checkConservation returns a message for the first snapshot entry that
// breaks fee conservation, or "" when the snapshot is consistent.
func checkConservation(l ledger.Ledger, deductions []models.DeductionPayment, details []models.RefundDetail) string {
	for _, d := range deductions {
		p, ok := l.Payment(d.ParentPaymentID)
		if !ok {
			return fmt.Sprintf("deduction refers to unknown payment %d", d.ParentPaymentID)
		}
		if l.TotalDeducted(p.ID).GreaterThan(p.Fee) {
			return fmt.Sprintf("deductions exceed fee of payment %d", p.ID)
		}
	}
	for _, d := range details {
		p, ok := l.Payment(d.PaymentID)
		if !ok {
			return fmt.Sprintf("refund line refers to unknown payment %d", d.PaymentID)
		}
		if d.Fee.Valid && (d.Fee.Decimal.IsNegative() || d.Fee.Decimal.GreaterThan(l.DefaultRefundable(p))) {
			return fmt.Sprintf("refund fee of payment %d exceeds %s", p.ID, l.DefaultRefundable(p))
		}
	}
	return ""
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, models.ErrNotFound)
	}
	return err
}

func rejected(msg string) error {
	return fmt.Errorf("%w: %s", models.ErrRejected, msg)
}
