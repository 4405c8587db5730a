package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/metrics"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/workflow"
)

// Result is a committed transition.
type Result struct {
	Decision workflow.Decision `json:"decision"`
	RefundID int64             `json:"refund_id"`
}

// Submit launches a draft refund. Drafts opened from an order review go
// through the review call, everything else through launch.
func (o *Orchestrator) Submit(ctx context.Context, s *Session, sig models.Signature, remark string) (*Result, error) {
	return o.transition(ctx, s, "submit",
		func(snap workflow.Snapshot) (workflow.Decision, error) {
			return o.machine.Submit(snap, sig)
		},
		func(ctx context.Context, d workflow.Decision) (string, *models.Ack, error) {
			if s.Request.TaskID != "" {
				ack, err := o.remote.Review(ctx, models.ReviewRequest{
					TaskID:             s.Request.TaskID,
					OrderID:            s.Request.OrderID,
					Signature:          sig,
					RefundDetails:      s.Details,
					Deductions:         s.Deductions,
					NeedLaunchWorkflow: !d.FastPath,
				})
				return "review", ack, err
			}
			ack, err := o.remote.Launch(ctx, models.LaunchRequest{
				Type:               s.Request.Type,
				OrderID:            s.Request.OrderID,
				Remark:             remark,
				Signature:          sig,
				RefundDetails:      s.Details,
				Deductions:         s.Deductions,
				NeedLaunchWorkflow: !d.FastPath,
			})
			return "launch", ack, err
		})
}

// Approve passes the review stage the caller is looking at.
func (o *Orchestrator) Approve(ctx context.Context, s *Session, stage models.RefundStatus, sig models.Signature, remark string) (*Result, error) {
	return o.transition(ctx, s, "approve",
		func(snap workflow.Snapshot) (workflow.Decision, error) {
			return o.machine.Approve(snap, stage, sig)
		},
		o.submitStage(s, sig, remark))
}

// Reject sends the request back to its launcher.
func (o *Orchestrator) Reject(ctx context.Context, s *Session, stage models.RefundStatus, remark string) (*Result, error) {
	return o.transition(ctx, s, "reject",
		func(snap workflow.Snapshot) (workflow.Decision, error) {
			return o.machine.Reject(snap, stage, remark)
		},
		o.submitStage(s, nil, remark))
}

// Restart resubmits a rejected request.
func (o *Orchestrator) Restart(ctx context.Context, s *Session, sig models.Signature, remark string) (*Result, error) {
	return o.transition(ctx, s, "restart",
		func(snap workflow.Snapshot) (workflow.Decision, error) {
			return o.machine.Restart(snap, sig)
		},
		o.submitStage(s, sig, remark))
}

// CashierComplete closes a request the cashier paid out.
func (o *Orchestrator) CashierComplete(ctx context.Context, s *Session, remark string) (*Result, error) {
	return o.transition(ctx, s, "cashier complete",
		func(snap workflow.Snapshot) (workflow.Decision, error) {
			return o.machine.CashierComplete(snap)
		},
		o.submitStage(s, nil, remark))
}

func (o *Orchestrator) submitStage(s *Session, sig models.Signature, remark string) func(context.Context, workflow.Decision) (string, *models.Ack, error) {
	return func(ctx context.Context, d workflow.Decision) (string, *models.Ack, error) {
		op, ok := workflow.SubmitOpFor(d.From)
		if !ok {
			return "submit", &models.Ack{Message: "no submission for state " + string(d.From)}, nil
		}
		ack, err := o.remote.Submit(ctx, op, models.StageSubmission{
			RefundID:       s.Request.ID,
			Passed:         d.Passed,
			Remark:         remark,
			Signature:      sig,
			RefundDetails:  s.Details,
			ExpectedStatus: d.From,
		})
		return string(op), ack, err
	}
}

type decideFunc func(workflow.Snapshot) (workflow.Decision, error)

type callFunc func(context.Context, workflow.Decision) (string, *models.Ack, error)

// transition evaluates the guard, sends the decision to the ledger service
// and, once it is acknowledged, marks the session stale and announces the
// new state. Nothing is retried.
func (o *Orchestrator) transition(ctx context.Context, s *Session, action string, decide decideFunc, call callFunc) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator."+action, s.Request.ID)
	defer span.End()

	if err := o.checkFresh(s, action); err != nil {
		return nil, o.refusal(span, action, err)
	}

	var result *Result
	err := o.withLock(ctx, s, func() error {
		d, err := decide(s.snapshot())
		if err != nil {
			return o.refusal(span, action, err)
		}
		span.SetAttributes(
			attribute.String("refund.from_state", string(d.From)),
			attribute.String("refund.to_state", string(d.To)),
		)

		op, ack, err := call(ctx, d)
		if err != nil {
			return o.remoteError(span, op, err)
		}
		if !ack.Success {
			return o.remoteRefusal(span, op, ack.Message)
		}

		refundID := s.Request.ID
		if ack.RefundID != 0 {
			refundID = ack.RefundID
		}
		s.stale = true
		metrics.Transitions.WithLabelValues(string(d.From), string(d.To)).Inc()
		telemetry.Logger.Info("Refund state transition",
			zap.Int64("refund_id", refundID),
			zap.String("from_state", string(d.From)),
			zap.String("to_state", string(d.To)),
			zap.String("role", string(d.Role)),
			zap.Bool("fast_path", d.FastPath),
		)
		o.publish(ctx, refundID, s.Request.Type, d)
		result = &Result{Decision: d, RefundID: refundID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
