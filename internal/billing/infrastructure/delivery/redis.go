// Package delivery records processed webhook deliveries so redeliveries can
// be acknowledged without touching the database.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "amora:delivery:"

// RedisLog stores delivery receipts as expiring Redis keys.
type RedisLog struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisLog creates a receipt log. Receipts expire after ttl.
func NewRedisLog(client redis.Cmdable, ttl time.Duration) *RedisLog {
	return &RedisLog{client: client, ttl: ttl}
}

func receiptKey(platform domain.Platform, deliveryID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, platform, deliveryID)
}

func (l *RedisLog) Seen(ctx context.Context, platform domain.Platform, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, nil
	}
	err := l.client.Get(ctx, receiptKey(platform, deliveryID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *RedisLog) Record(ctx context.Context, platform domain.Platform, deliveryID string) error {
	if deliveryID == "" {
		return nil
	}
	return l.client.Set(ctx, receiptKey(platform, deliveryID), time.Now().UTC().Format(time.RFC3339), l.ttl).Err()
}

var _ domain.DeliveryLog = (*RedisLog)(nil)
