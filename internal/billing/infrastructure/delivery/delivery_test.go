package delivery

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLog(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryLog(time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return now }

	seen, err := log.Seen(ctx, domain.PlatformWeb, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, log.Record(ctx, domain.PlatformWeb, "evt_1"))

	seen, _ = log.Seen(ctx, domain.PlatformWeb, "evt_1")
	assert.True(t, seen)
	seen, _ = log.Seen(ctx, domain.PlatformMobile, "evt_1")
	assert.False(t, seen, "receipts are scoped per platform")

	now = now.Add(2 * time.Hour)
	seen, _ = log.Seen(ctx, domain.PlatformWeb, "evt_1")
	assert.False(t, seen, "receipts expire")
}

func TestMemoryLog_IgnoresEmptyIDs(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryLog(time.Hour)
	require.NoError(t, log.Record(ctx, domain.PlatformWeb, ""))
	seen, err := log.Seen(ctx, domain.PlatformWeb, "")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestNoopLog(t *testing.T) {
	var log NoopLog
	require.NoError(t, log.Record(context.Background(), domain.PlatformWeb, "evt_1"))
	seen, err := log.Seen(context.Background(), domain.PlatformWeb, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisLog(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	defer client.Close()

	ctx := context.Background()
	log := NewRedisLog(client, time.Minute)
	id := "evt_" + uuid.NewString()

	seen, err := log.Seen(ctx, domain.PlatformMobile, id)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, log.Record(ctx, domain.PlatformMobile, id))
	seen, err = log.Seen(ctx, domain.PlatformMobile, id)
	require.NoError(t, err)
	assert.True(t, seen)

	ttl, err := client.TTL(ctx, receiptKey(domain.PlatformMobile, id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestReceiptKey(t *testing.T) {
	assert.Equal(t, "amora:delivery:web:evt_1", receiptKey(domain.PlatformWeb, "evt_1"))
}
