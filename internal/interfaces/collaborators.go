package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

// Locker grants one session at a time the right to mutate a refund.
type Locker interface {
	// Acquire returns ok=false when another session holds key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// EventPublisher announces committed workflow transitions.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, event models.StatusChangedEvent) error
}

// RefundGateway issues a refund through an online payment channel.
type RefundGateway interface {
	Refund(ctx context.Context, req models.GatewayRefundRequest) (*models.GatewayReceipt, error)
}

// Lookup resolves display labels for enum values.
type Lookup interface {
	FeeTypeLabel(models.FeeType) string
	PayModeLabel(models.PayMode) string
	RefundTypeLabel(models.RefundType) string
}
