// Package gateway forwards direct refunds to the payment gateway service.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

// Requester is the request/reply part of *nats.Conn.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// NATSGateway asks the gateway service on subject refund.gateway.<channel>.
type NATSGateway struct {
	nc      Requester
	timeout time.Duration
}

func NewNATSGateway(nc Requester, timeout time.Duration) *NATSGateway {
	return &NATSGateway{nc: nc, timeout: timeout}
}

// Subject returns the subject serving channel.
func Subject(channel string) string {
	return "refund.gateway." + channel
}

// Refund sends one refund request. It is never retried here: a timeout leaves
// the gateway outcome unknown and is reported as such.
func (g *NATSGateway) Refund(ctx context.Context, req models.GatewayRefundRequest) (*models.GatewayReceipt, error) {
	if req.Channel == "" {
		return nil, fmt.Errorf("pay mode %s has no gateway channel", req.PayMode)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := g.nc.RequestWithContext(ctx, Subject(req.Channel), body)
	if err != nil {
		telemetry.Logger.Warn("Gateway refund request failed",
			zap.String("request_id", req.RequestID),
			zap.Int64("refund_detail_id", req.RefundDetailID),
			zap.Error(err),
		)
		return nil, err
	}

	var receipt models.GatewayReceipt
	if err := json.Unmarshal(msg.Data, &receipt); err != nil {
		return nil, fmt.Errorf("decode gateway receipt: %w", err)
	}
	return &receipt, nil
}
