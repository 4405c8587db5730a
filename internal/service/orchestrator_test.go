package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/editor"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/lock"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/lookup"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/repository"
)

const testOrder = 501

var sig = models.Signature("signed")

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.StatusChangedEvent
}

func (p *recordingPublisher) PublishStatusChanged(_ context.Context, e models.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) states() []models.RefundStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.RefundStatus, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.State)
	}
	return out
}

type harness struct {
	repo   *repository.RefundRepository
	orch   *Orchestrator
	pub    *recordingPublisher
	locker *lock.LocalLocker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	repo := repository.NewRefundRepository(db, nil, nil)
	require.NoError(t, repo.AutoMigrate())
	return newHarnessWith(t, repo, repo)
}

func newHarnessWith(t *testing.T, repo *repository.RefundRepository, remote interfaces.LedgerService) *harness {
	t.Helper()
	h := &harness{repo: repo, pub: &recordingPublisher{}, locker: lock.NewLocalLocker()}
	h.orch = NewOrchestrator(remote, h.pub, h.locker, lookup.NewStatic(), nil, time.Minute)
	return h
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (h *harness) pay(t *testing.T, ft models.FeeType, fee string, mode models.PayMode, status models.FinancialStatus) models.Payment {
	t.Helper()
	p, err := h.repo.AddPayment(context.Background(), models.Payment{
		OrderID:         testOrder,
		FeeType:         ft,
		Fee:             dec(fee),
		PayMode:         mode,
		Direction:       models.DirectionCustomerToWagons,
		FinancialStatus: status,
	}, nil)
	require.NoError(t, err)
	return *p
}

func (h *harness) load(t *testing.T, id int64) *Session {
	t.Helper()
	s, err := h.orch.Load(context.Background(), id)
	require.NoError(t, err)
	return s
}

// launched prepares and submits a refund of type rt and returns it reloaded.
func (h *harness) launched(t *testing.T, rt models.RefundType) *Session {
	t.Helper()
	s, err := h.orch.Prepare(context.Background(), testOrder, rt, "")
	require.NoError(t, err)
	res, err := h.orch.Submit(context.Background(), s, sig, "")
	require.NoError(t, err)
	return h.load(t, res.RefundID)
}

func fee(t *testing.T, s *Session, paymentID int64) decimal.Decimal {
	t.Helper()
	d, idx := findDetail(s.Details, paymentID)
	require.GreaterOrEqual(t, idx, 0)
	require.True(t, d.Fee.Valid)
	return d.Fee.Decimal
}

func TestPrepareFiltersPaymentsByType(t *testing.T) {
	h := newHarness(t)
	rent := h.pay(t, models.FeeTypeRent, "1000", models.PayModeCash, models.FinancialStatusApproved)
	dep := h.pay(t, models.FeeTypeDamageDeposit, "500", models.PayModeCash, models.FinancialStatusApproved)
	h.pay(t, models.FeeTypeViolationDeposit, "300", models.PayModeCash, models.FinancialStatusApproved)
	_, err := h.repo.AddPayment(context.Background(), models.Payment{
		OrderID: testOrder, FeeType: models.FeeTypeRent, Fee: dec("0"), PayMode: models.PayModeCash,
		Direction: models.DirectionCustomerToWagons, FinancialStatus: models.FinancialStatusApproved,
	}, nil)
	require.NoError(t, err)

	s, err := h.orch.Prepare(context.Background(), testOrder, models.RefundTypeDamageDepositReturn, "")
	require.NoError(t, err)
	require.Len(t, s.Payments, 1)
	assert.Equal(t, dep.ID, s.Payments[0].ID)
	assert.Equal(t, []models.FeeType{models.FeeTypeDamageDeposit}, s.FeeTypes)
	assert.True(t, fee(t, s, dep.ID).Equal(dec("500")))

	s, err = h.orch.Prepare(context.Background(), testOrder, models.RefundTypeOrderRentCancel, "")
	require.NoError(t, err)
	assert.Len(t, s.Payments, 4)
	assert.Equal(t, []models.FeeType{models.FeeTypeRent, models.FeeTypeDamageDeposit, models.FeeTypeViolationDeposit}, s.FeeTypes)
	assert.True(t, fee(t, s, rent.ID).Equal(dec("1000")))
	assert.Equal(t, models.StatusNew, s.Request.Status)
	assert.True(t, s.Draft())

	_, err = h.orch.Prepare(context.Background(), testOrder, "UNKNOWN", "")
	assert.True(t, models.IsBusinessRule(err))
}

func TestOrderRentCancelWalksEveryStage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rent := h.pay(t, models.FeeTypeRent, "1000", models.PayModeCash, models.FinancialStatusApproved)
	deliver := h.pay(t, models.FeeTypeDeliver, "100", models.PayModeCash, models.FinancialStatusApproved)

	s, err := h.orch.Prepare(ctx, testOrder, models.RefundTypeOrderRentCancel, "")
	require.NoError(t, err)
	_, err = h.orch.AddDeduction(ctx, s, editor.DeductionInput{ParentPaymentID: rent.ID, Fee: dec("200"), Remark: "scratched door"})
	require.NoError(t, err)
	assert.True(t, fee(t, s, rent.ID).Equal(dec("800")))

	payments, err := h.repo.GetPaymentList(ctx, testOrder)
	require.NoError(t, err)
	assert.Len(t, payments, 2, "draft deductions stay local until submit")

	_, err = h.orch.Submit(ctx, s, nil, "")
	require.Error(t, err)
	assert.True(t, models.IsBusinessRule(err), "signature required")

	res, err := h.orch.Submit(ctx, s, sig, "customer cancelled")
	require.NoError(t, err)
	assert.True(t, s.Stale())
	assert.Equal(t, models.StatusShopManagerExamining, res.Decision.To)

	s = h.load(t, res.RefundID)
	require.Len(t, s.Deductions, 1)
	assert.NotZero(t, s.Deductions[0].ID)
	assert.Equal(t, "customer cancelled", s.Request.Remarks.Get(models.RoleDeliver))

	_, err = h.orch.SetRefundDetailFee(s, deliver.ID, dec("50"))
	require.NoError(t, err)
	_, err = h.orch.Approve(ctx, s, models.StatusShopManagerExamining, sig, "")
	var missing *models.MissingRemarkError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, deliver.ID, missing.PaymentID)

	require.NoError(t, h.orch.SetDetailRemark(s, deliver.ID, models.RoleShopManager, "half the trip"))
	_, err = h.orch.Approve(ctx, s, models.StatusShopManagerExamining, sig, "ok")
	require.NoError(t, err)

	s = h.load(t, s.Request.ID)
	assert.Equal(t, models.StatusCeoExamining, s.Request.Status)
	assert.True(t, fee(t, s, deliver.ID).Equal(dec("50")))
	_, err = h.orch.Approve(ctx, s, models.StatusCeoExamining, sig, "")
	require.NoError(t, err)

	s = h.load(t, s.Request.ID)
	_, err = h.orch.Approve(ctx, s, models.StatusAccountantExamining, sig, "")
	require.NoError(t, err)

	s = h.load(t, s.Request.ID)
	_, err = h.orch.CashierComplete(ctx, s, "paid in cash")
	require.NoError(t, err)

	s = h.load(t, s.Request.ID)
	assert.Equal(t, models.StatusFinish, s.Request.Status)
	assert.Equal(t, []models.RefundStatus{
		models.StatusShopManagerExamining,
		models.StatusCeoExamining,
		models.StatusAccountantExamining,
		models.StatusCashierRefunding,
		models.StatusFinish,
	}, h.pub.states())
}

func TestSubmitFastPathSkipsReview(t *testing.T) {
	h := newHarness(t)
	h.pay(t, models.FeeTypeRent, "300", models.PayModePosPreLicensing, models.FinancialStatusApproved)

	s, err := h.orch.Prepare(context.Background(), testOrder, models.RefundTypeOrderRentCancel, "")
	require.NoError(t, err)
	res, err := h.orch.Submit(context.Background(), s, nil, "")
	require.NoError(t, err)
	assert.True(t, res.Decision.FastPath)

	s = h.load(t, res.RefundID)
	assert.Equal(t, models.StatusFinish, s.Request.Status)
	require.Len(t, h.pub.events, 1)
	assert.True(t, h.pub.events[0].FastPath)
	assert.Equal(t, res.RefundID, h.pub.events[0].RefundID)
}

func TestSubmitFromOrderReviewOpensCancellation(t *testing.T) {
	h := newHarness(t)
	h.pay(t, models.FeeTypeRent, "300", models.PayModeCash, models.FinancialStatusApproved)

	s, err := h.orch.Prepare(context.Background(), testOrder, models.RefundTypeOrderRentCancel, "review-7")
	require.NoError(t, err)
	res, err := h.orch.Submit(context.Background(), s, sig, "")
	require.NoError(t, err)

	s = h.load(t, res.RefundID)
	assert.Equal(t, "review-7", s.Request.TaskID)
	assert.Equal(t, models.StatusShopManagerExamining, s.Request.Status)
}

func TestStaleSessionIsRefused(t *testing.T) {
	h := newHarness(t)
	dep := h.pay(t, models.FeeTypeDamageDeposit, "300", models.PayModeCash, models.FinancialStatusApproved)
	s := h.launched(t, models.RefundTypeDamageDepositReturn)

	_, err := h.orch.Approve(context.Background(), s, models.StatusAccountantExamining, sig, "")
	require.NoError(t, err)

	_, err = h.orch.Approve(context.Background(), s, models.StatusAccountantExamining, sig, "")
	var refused *models.TransitionRefusedError
	assert.True(t, errors.As(err, &refused))
	_, err = h.orch.SetRefundDetailFee(s, dep.ID, dec("1"))
	assert.True(t, errors.As(err, &refused))
}

func TestConcurrentReviewerLosesToCompareAndSwap(t *testing.T) {
	h := newHarness(t)
	h.pay(t, models.FeeTypeDamageDeposit, "300", models.PayModeCash, models.FinancialStatusApproved)
	first := h.launched(t, models.RefundTypeDamageDepositReturn)
	second := h.load(t, first.Request.ID)

	_, err := h.orch.Approve(context.Background(), first, models.StatusAccountantExamining, sig, "")
	require.NoError(t, err)

	_, err = h.orch.Approve(context.Background(), second, models.StatusAccountantExamining, sig, "")
	var rf *models.RemoteFailure
	require.True(t, errors.As(err, &rf))
	assert.False(t, rf.Unknown)
	assert.Equal(t, "refund process has been restarted", rf.Message)
	assert.False(t, second.Stale())
	assert.Len(t, h.pub.events, 2)
}

func TestLockedRefundIsRefused(t *testing.T) {
	h := newHarness(t)
	h.pay(t, models.FeeTypeDamageDeposit, "300", models.PayModeCash, models.FinancialStatusApproved)
	s := h.launched(t, models.RefundTypeDamageDepositReturn)

	release, ok, err := h.locker.Acquire(context.Background(), lock.RefundKey(s.Request.ID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.orch.Approve(context.Background(), s, models.StatusAccountantExamining, sig, "")
	assert.True(t, errors.Is(err, models.ErrLocked))

	release()
	_, err = h.orch.Approve(context.Background(), s, models.StatusAccountantExamining, sig, "")
	assert.NoError(t, err)
}

type failingSubmit struct {
	*repository.RefundRepository
}

func (failingSubmit) Submit(context.Context, models.SubmitOp, models.StageSubmission) (*models.Ack, error) {
	return nil, errors.New("connection reset")
}

func TestTransportFailureLeavesOutcomeUnknown(t *testing.T) {
	base := newHarness(t)
	base.pay(t, models.FeeTypeDamageDeposit, "300", models.PayModeCash, models.FinancialStatusApproved)
	s := base.launched(t, models.RefundTypeDamageDepositReturn)

	h := newHarnessWith(t, base.repo, failingSubmit{base.repo})
	_, err := h.orch.Approve(context.Background(), s, models.StatusAccountantExamining, sig, "")
	var rf *models.RemoteFailure
	require.True(t, errors.As(err, &rf))
	assert.True(t, rf.Unknown)
	assert.False(t, models.IsBusinessRule(err))
	assert.False(t, s.Stale())
	assert.Empty(t, h.pub.events)
}

func TestAccountantWaitsForFinancialReview(t *testing.T) {
	h := newHarness(t)
	h.pay(t, models.FeeTypeDamageDeposit, "300", models.PayModeCash, models.FinancialStatusToReview)
	s := h.launched(t, models.RefundTypeDamageDepositReturn)

	_, err := h.orch.Approve(context.Background(), s, models.StatusAccountantExamining, sig, "")
	var refused *models.TransitionRefusedError
	assert.True(t, errors.As(err, &refused))
}

func TestRejectAndRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rent := h.pay(t, models.FeeTypeRent, "300", models.PayModeCash, models.FinancialStatusApproved)
	s := h.launched(t, models.RefundTypeOrderRentCancel)

	_, err := h.orch.Reject(ctx, s, models.StatusShopManagerExamining, "  ")
	var missing *models.MissingRemarkError
	require.True(t, errors.As(err, &missing))

	require.NoError(t, h.orch.SetDetailRemark(s, rent.ID, models.RoleShopManager, "wrong amount"))
	res, err := h.orch.Reject(ctx, s, models.StatusShopManagerExamining, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRestarting, res.Decision.To)

	s = h.load(t, s.Request.ID)
	assert.Equal(t, models.StatusRestarting, s.Request.Status)
	_, err = h.orch.Restart(ctx, s, sig, "fixed")
	require.NoError(t, err)

	s = h.load(t, s.Request.ID)
	assert.Equal(t, models.StatusShopManagerExamining, s.Request.Status)

	// Remarks left in the previous cycle do not justify a second rejection.
	_, err = h.orch.Reject(ctx, s, models.StatusShopManagerExamining, "")
	require.True(t, errors.As(err, &missing))
	res, err = h.orch.Reject(ctx, s, models.StatusShopManagerExamining, "still wrong")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRestarting, res.Decision.To)
}

func TestStoredDeductionNeedsRemarkAtApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rent := h.pay(t, models.FeeTypeRent, "1000", models.PayModeCash, models.FinancialStatusApproved)
	s := h.launched(t, models.RefundTypeOrderRentCancel)

	_, err := h.orch.AddDeduction(ctx, s, editor.DeductionInput{ParentPaymentID: rent.ID, Fee: dec("300"), Remark: "penalty"})
	require.NoError(t, err)

	s = h.load(t, s.Request.ID)
	require.Len(t, s.Original, 1)
	assert.True(t, s.Original[0].Fee.Decimal.Equal(dec("1000")), "baseline is the stage entry, not the last load")
	assert.True(t, fee(t, s, rent.ID).Equal(dec("700")))

	_, err = h.orch.Approve(ctx, s, models.StatusShopManagerExamining, sig, "")
	var missing *models.MissingRemarkError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, rent.ID, missing.PaymentID)

	require.NoError(t, h.orch.SetDetailRemark(s, rent.ID, models.RoleShopManager, "late return"))
	_, err = h.orch.Approve(ctx, s, models.StatusShopManagerExamining, sig, "")
	require.NoError(t, err)

	s = h.load(t, s.Request.ID)
	assert.True(t, s.Original[0].Fee.Decimal.Equal(dec("700")), "next stage starts from the approved amount")
}

func TestStoredDeductionEditsGoThroughLedgerService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rent := h.pay(t, models.FeeTypeRent, "1000", models.PayModeCash, models.FinancialStatusApproved)
	s := h.launched(t, models.RefundTypeOrderRentCancel)

	change, err := h.orch.AddDeduction(ctx, s, editor.DeductionInput{ParentPaymentID: rent.ID, Fee: dec("100"), Remark: "fuel"})
	require.NoError(t, err)
	assert.NotZero(t, change.Deduction.ID)
	assert.Equal(t, models.DeductionKey(change.Deduction.ID), s.Deductions[0].Key)
	assert.True(t, fee(t, s, rent.ID).Equal(dec("900")))

	_, err = h.orch.ModifyDeduction(ctx, s, s.Deductions[0].Key, dec("1001"), "fuel")
	assert.True(t, models.IsBusinessRule(err))

	_, err = h.orch.ModifyDeduction(ctx, s, s.Deductions[0].Key, dec("150"), "fuel and cleaning")
	require.NoError(t, err)

	reloaded := h.load(t, s.Request.ID)
	require.Len(t, reloaded.Deductions, 1)
	assert.True(t, reloaded.Deductions[0].Fee.Equal(dec("150")))
	assert.True(t, fee(t, reloaded, rent.ID).Equal(dec("850")))

	_, err = h.orch.DeleteDeduction(ctx, reloaded, reloaded.Deductions[0].Key)
	require.NoError(t, err)
	reloaded = h.load(t, s.Request.ID)
	assert.Empty(t, reloaded.Deductions)
	assert.True(t, fee(t, reloaded, rent.ID).Equal(dec("1000")))
}

func TestPaymentEdits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	approved := h.pay(t, models.FeeTypeRent, "1000", models.PayModeCash, models.FinancialStatusApproved)
	open := h.pay(t, models.FeeTypeDeliver, "100", models.PayModeCash, models.FinancialStatusToReview)
	s := h.launched(t, models.RefundTypeOrderRentCancel)

	approved.Fee = dec("900")
	_, err := h.orch.ModifyPayment(ctx, s, approved)
	assert.True(t, models.IsBusinessRule(err))
	assert.True(t, models.IsBusinessRule(h.orch.DeletePayment(ctx, s, approved.ID)))

	open.Fee = dec("60")
	change, err := h.orch.ModifyPayment(ctx, s, open)
	require.NoError(t, err)
	assert.True(t, change.Payment.Fee.Equal(dec("60")))
	assert.True(t, fee(t, s, open.ID).Equal(dec("60")), "line is capped at the new payment fee")

	added, err := h.orch.AddPayment(ctx, s, PaymentInput{
		FeeType: models.FeeTypeOther, Fee: dec("40"), ContractualAmount: dec("40"), PayMode: models.PayModeBalance, CustomerHasBalance: true,
		Deductions: []editor.DeductionInput{{Fee: dec("10"), Remark: "fee"}},
	})
	require.NoError(t, err)
	assert.True(t, fee(t, s, added.ID).Equal(dec("30")))
	assert.Contains(t, s.FeeTypes, models.FeeTypeOther)

	_, err = h.orch.AddPayment(ctx, s, PaymentInput{FeeType: models.FeeTypeOther, Fee: dec("40"), ContractualAmount: dec("100"), PayMode: models.PayModeBalance})
	assert.True(t, models.IsBusinessRule(err), "balance needs a customer balance")

	require.NoError(t, h.orch.DeletePayment(ctx, s, open.ID))
	_, idx := findDetail(s.Details, open.ID)
	assert.Equal(t, -1, idx)
}

func TestAddPaymentIsCappedAtRemainingToBePaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.pay(t, models.FeeTypeRent, "600", models.PayModeCash, models.FinancialStatusApproved)
	s := h.launched(t, models.RefundTypeOrderRentCancel)

	tests := []struct {
		name        string
		fee         string
		contractual string
		wantField   string
	}{
		{name: "above the open amount", fee: "500", contractual: "1000", wantField: "exceeds_remaining_to_be_paid"},
		{name: "contract fully paid", fee: "10", contractual: "600", wantField: "nothing_remaining_to_be_paid"},
		{name: "no contract amount", fee: "10", contractual: "0", wantField: "nothing_remaining_to_be_paid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.orch.AddPayment(ctx, s, PaymentInput{
				FeeType: models.FeeTypeRent, Fee: dec(tt.fee), ContractualAmount: dec(tt.contractual), PayMode: models.PayModeCash,
			})
			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Fields["fee"])
		})
	}

	added, err := h.orch.AddPayment(ctx, s, PaymentInput{
		FeeType: models.FeeTypeRent, ContractualAmount: dec("1000"), PayMode: models.PayModeCash,
	})
	require.NoError(t, err)
	assert.True(t, added.Fee.Equal(dec("400")), "fee defaults to the open amount")
	assert.True(t, s.Ledger().RemainingToBePaid(models.FeeTypeRent, dec("1000")).IsZero())
}

func cashierSession(t *testing.T, h *harness, rt models.RefundType) *Session {
	t.Helper()
	return toCashier(t, h, h.launched(t, rt))
}

func toCashier(t *testing.T, h *harness, s *Session) *Session {
	t.Helper()
	_, err := h.orch.Approve(context.Background(), s, models.StatusAccountantExamining, sig, "")
	require.NoError(t, err)
	return h.load(t, s.Request.ID)
}

func TestDirectRefundByBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dep := h.pay(t, models.FeeTypeDamageDeposit, "300", models.PayModeBalance, models.FinancialStatusApproved)

	s := h.launched(t, models.RefundTypeDamageDepositReturn)
	_, err := h.orch.DirectRefund(ctx, s, dep.ID)
	assert.True(t, models.IsBusinessRule(err), "only the cashier refunds")

	s = toCashier(t, h, s)
	res, err := h.orch.DirectRefund(ctx, s, dep.ID)
	require.NoError(t, err)
	require.True(t, res.Success)
	detail, _ := findDetail(s.Details, dep.ID)
	assert.True(t, s.Ledger().UnrefundedAmount(detail).IsZero())

	_, err = h.orch.DirectRefund(ctx, s, dep.ID)
	assert.True(t, models.IsBusinessRule(err))
}

func TestManualRefundIsCappedAtUnrefundedAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dep := h.pay(t, models.FeeTypeViolationDeposit, "300", models.PayModeCash, models.FinancialStatusApproved)
	s := cashierSession(t, h, models.RefundTypeViolationDepositReturn)

	_, err := h.orch.DirectRefund(ctx, s, dep.ID)
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "manual_refund_required", ve.Fields["pay_mode"])

	_, err = h.orch.RecordManualRefund(ctx, s, dep.ID, dec("300.01"), "", "")
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "exceeds_unrefunded_amount", ve.Fields["amount"])

	p, err := h.orch.RecordManualRefund(ctx, s, dep.ID, dec("200"), models.PayModeBankTransfer, "wire")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionWagonsToCustomer, p.Direction)

	detail, _ := findDetail(s.Details, dep.ID)
	assert.True(t, s.Ledger().UnrefundedAmount(detail).Equal(dec("100")))

	_, err = h.orch.RecordManualRefund(ctx, s, dep.ID, dec("101"), "", "")
	assert.True(t, models.IsBusinessRule(err))
}

func TestPosPreLicensingIsNeverRefundedDirectly(t *testing.T) {
	h := newHarness(t)
	pos := h.pay(t, models.FeeTypeDamageDeposit, "300", models.PayModePosPreLicensing, models.FinancialStatusApproved)
	h.pay(t, models.FeeTypeDamageDeposit, "100", models.PayModeCash, models.FinancialStatusApproved)
	s := cashierSession(t, h, models.RefundTypeDamageDepositReturn)

	_, err := h.orch.DirectRefund(context.Background(), s, pos.ID)
	assert.True(t, models.IsBusinessRule(err))
	_, err = h.orch.RecordManualRefund(context.Background(), s, pos.ID, dec("1"), models.PayModeCash, "")
	assert.True(t, models.IsBusinessRule(err))
}

func TestPayModeOptions(t *testing.T) {
	cases := []struct {
		feeType    models.FeeType
		hasBalance bool
		balance    bool
	}{
		{models.FeeTypeRent, true, true},
		{models.FeeTypeRent, false, false},
		{models.FeeTypeDeliver, true, true},
		{models.FeeTypeReceive, true, true},
		{models.FeeTypeOther, true, true},
		{models.FeeTypeDamageDeposit, true, false},
		{models.FeeTypeViolationDeposit, true, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%v", tc.feeType, tc.hasBalance), func(t *testing.T) {
			modes := PayModeOptions(tc.feeType, tc.hasBalance)
			assert.Equal(t, tc.balance, offered(modes, models.PayModeBalance))
			assert.False(t, offered(modes, models.PayModePosPreLicensing))
			assert.True(t, offered(modes, models.PayModeCash))
		})
	}
}

func TestConfirmationHint(t *testing.T) {
	h := newHarness(t)
	rent := h.pay(t, models.FeeTypeRent, "1000", models.PayModeCash, models.FinancialStatusApproved)
	h.pay(t, models.FeeTypeDeliver, "100", models.PayModeCash, models.FinancialStatusApproved)

	s, err := h.orch.Prepare(context.Background(), testOrder, models.RefundTypeOrderRentCancel, "")
	require.NoError(t, err)
	_, err = h.orch.SetRefundDetailFee(s, rent.ID, dec("250"))
	require.NoError(t, err)

	sum := h.orch.ConfirmationSummary(s)
	require.Len(t, sum.Lines, 2)
	assert.Equal(t, "Rent", sum.Lines[0].Label)
	assert.True(t, sum.Lines[0].Percent.Equal(dec("25")))
	assert.True(t, sum.Total.Equal(dec("350")))

	hint := h.orch.ConfirmationHint(s)
	assert.Contains(t, hint, "Order cancellation refund, total refund 350.00")
	assert.Contains(t, hint, "Rent: paid 1000.00, refund 250.00 (25%)")
	assert.Contains(t, hint, "Delivery fee: paid 100.00, refund 100.00 (100%)")
}
