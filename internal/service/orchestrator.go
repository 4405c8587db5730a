package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/editor"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/lock"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/metrics"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/workflow"
)

const defaultLockTTL = 30 * time.Second

type Orchestrator struct {
	remote    interfaces.LedgerService
	publisher interfaces.EventPublisher
	locker    interfaces.Locker
	lookup    interfaces.Lookup
	machine   *workflow.Machine
	lockTTL   time.Duration
	now       func() time.Time
}

func NewOrchestrator(
	remote interfaces.LedgerService,
	publisher interfaces.EventPublisher,
	locker interfaces.Locker,
	lookup interfaces.Lookup,
	machine *workflow.Machine,
	lockTTL time.Duration,
) *Orchestrator {
	if machine == nil {
		machine = workflow.New(nil)
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Orchestrator{
		remote:    remote,
		publisher: publisher,
		locker:    locker,
		lookup:    lookup,
		machine:   machine,
		lockTTL:   lockTTL,
		now:       time.Now,
	}
}

// Prepare opens a draft refund of type t for an order. taskID is set when the
// refund comes out of a rejected order review.
func (o *Orchestrator) Prepare(ctx context.Context, orderID int64, t models.RefundType, taskID string) (*Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.prepare", 0)
	defer span.End()

	if _, err := o.machine.Stages(t); err != nil {
		return nil, models.NewValidationError("prepare", "type", "unknown_refund_type")
	}
	all, err := o.remote.GetPaymentList(ctx, orderID)
	if err != nil {
		return nil, o.remoteError(span, "getPaymentList", err)
	}

	payments, deductions := splitPayments(t, all)
	s := &Session{
		Request: models.RefundRequest{
			Type:    t,
			Status:  models.StatusNew,
			OrderID: orderID,
			TaskID:  taskID,
			Remarks: models.Remarks{},
		},
		Payments:   payments,
		Deductions: deductions,
		Details:    editor.SeedRefundDetails(paidIn(payments), deductions),
	}
	s.Original = models.CloneDetails(s.Details)
	s.FeeTypes = s.Ledger().FeeTypeList()
	s.reindex()
	return s, nil
}

// Load opens a stored refund.
func (o *Orchestrator) Load(ctx context.Context, refundID int64) (*Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.load", refundID)
	defer span.End()

	refund, err := o.remote.GetRefundByID(ctx, refundID)
	if err != nil {
		return nil, o.remoteError(span, "getRefundById", err)
	}
	all, err := o.remote.GetPaymentList(ctx, refund.OrderID)
	if err != nil {
		return nil, o.remoteError(span, "getPaymentList", err)
	}

	payments, deductions := splitPayments(refund.Type, all)
	details := models.CloneDetails(refund.RefundDetails)
	for i := range details {
		if p, idx := findPayment(payments, details[i].PaymentID); idx >= 0 {
			details[i].FeeType = p.FeeType
		}
	}
	s := &Session{
		Request:    *refund,
		Payments:   payments,
		Deductions: deductions,
		Details:    details,
		Original:   stageEntryDetails(details),
	}
	s.FeeTypes = s.Ledger().FeeTypeList()
	s.reindex()
	return s, nil
}

// stageEntryDetails is the baseline the amount-edit rule compares against:
// the lines as stored when the refund entered its current status, not as
// loaded.
func stageEntryDetails(details []models.RefundDetail) []models.RefundDetail {
	out := make([]models.RefundDetail, len(details))
	for i, d := range details {
		out[i] = d.AtStageEntry()
	}
	return out
}

// withLock runs fn while holding the session's refund lock.
func (o *Orchestrator) withLock(ctx context.Context, s *Session, fn func() error) error {
	key := lock.RefundKey(s.Request.ID)
	if s.Request.ID == 0 {
		key = lock.OrderKey(s.Request.OrderID)
	}
	release, ok, err := o.locker.Acquire(ctx, key, o.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return models.ErrLocked
	}
	defer release()
	return fn()
}

func (o *Orchestrator) checkFresh(s *Session, action string) error {
	if s.stale {
		return &models.TransitionRefusedError{From: s.Request.Status, Action: action, Reason: "session is stale, reload the refund"}
	}
	return nil
}

// refusal counts and returns a local rule rejection.
func (o *Orchestrator) refusal(span trace.Span, op string, err error) error {
	kind := "other"
	var ve *models.ValidationError
	var me *models.MissingRemarkError
	var te *models.TransitionRefusedError
	switch {
	case errors.As(err, &ve):
		kind = "validation"
	case errors.As(err, &me):
		kind = "missing_remark"
	case errors.As(err, &te):
		kind = "transition_refused"
	}
	metrics.GuardRefusals.WithLabelValues(op, kind).Inc()
	telemetry.MarkFailed(span, err, false)
	return err
}

// remoteError converts a ledger service error to a RemoteFailure. Service
// rule rejections and unknown ids have a known outcome; anything else may or
// may not have been applied.
func (o *Orchestrator) remoteError(span trace.Span, op string, err error) error {
	unknown := !errors.Is(err, models.ErrRejected) && !errors.Is(err, models.ErrNotFound)
	metrics.RemoteFailures.WithLabelValues(op, strconv.FormatBool(unknown)).Inc()
	telemetry.MarkFailed(span, err, true)
	telemetry.Logger.Warn("Ledger service call failed",
		zap.String("operation", op),
		zap.Bool("unknown_outcome", unknown),
		zap.Error(err),
	)
	return &models.RemoteFailure{Op: op, Message: err.Error(), Unknown: unknown, Err: err}
}

// remoteRefusal converts a negative acknowledgement.
func (o *Orchestrator) remoteRefusal(span trace.Span, op, message string) error {
	metrics.RemoteFailures.WithLabelValues(op, "false").Inc()
	failure := &models.RemoteFailure{Op: op, Message: message, Err: models.ErrRejected}
	telemetry.MarkFailed(span, failure, false)
	return failure
}

func (o *Orchestrator) publish(ctx context.Context, refundID int64, t models.RefundType, d workflow.Decision) {
	event := models.StatusChangedEvent{
		EventID:       uuid.NewString(),
		RefundID:      refundID,
		RefundType:    t,
		State:         d.To,
		PreviousState: d.From,
		Role:          d.Role,
		FastPath:      d.FastPath,
		Timestamp:     o.now().UTC(),
	}
	if err := o.publisher.PublishStatusChanged(ctx, event); err != nil {
		telemetry.Logger.Error("Failed to publish refund status change",
			zap.Int64("refund_id", refundID),
			zap.Error(err),
		)
	}
}
