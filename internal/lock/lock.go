// Package lock provides the per-refund single-writer lock.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

// RefundKey is the lock key of a refund.
func RefundKey(refundID int64) string {
	return fmt.Sprintf("refund_lock:%d", refundID)
}

// OrderKey locks an order while its first refund is being launched.
func OrderKey(orderID int64) string {
	return fmt.Sprintf("refund_order_lock:%d", orderID)
}

// RedisLocker locks with SETNX so that sessions on different instances
// exclude each other. The value is an owner token; release only deletes the
// key while it still holds that token.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	locked, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !locked {
		return nil, false, nil
	}
	release := func() {
		// The caller's context may already be cancelled.
		n, err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Int()
		if err != nil {
			telemetry.Logger.Warn("Failed to release refund lock", zap.String("key", key), zap.Error(err))
			return
		}
		if n == 0 {
			telemetry.Logger.Warn("Refund lock expired before release", zap.String("key", key))
		}
	}
	return release, true, nil
}

// LocalLocker locks within the process. It backs single-instance deployments
// without Redis and tests.
type LocalLocker struct {
	mu     sync.Mutex
	held   map[string]localLock
	nowFun func() time.Time
}

type localLock struct {
	token   string
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLock), nowFun: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFun()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.held[key] = localLock{token: token, expires: now.Add(ttl)}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
	}, true, nil
}
