package outbox_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/amora-chat/amora/internal/shared/domain"
	"github.com/amora-chat/amora/internal/shared/infrastructure/eventbus"
	"github.com/amora-chat/amora/internal/shared/infrastructure/migrations"
	"github.com/amora-chat/amora/internal/shared/infrastructure/outbox"
	"github.com/amora-chat/amora/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type creditsGranted struct {
	domain.BaseEvent
	Amount int64 `json:"amount"`
}

func newEvent(amount int64) *creditsGranted {
	return &creditsGranted{
		BaseEvent: domain.NewBaseEvent(uuid.New(), "Profile", "billing.credits.granted"),
		Amount:    amount,
	}
}

func setupRepo(t *testing.T) (*outbox.SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.RunSQLite(context.Background(), db)
	require.NoError(t, err)
	return outbox.NewSQLiteRepository(db), db
}

func TestNewMessage_WrapsPayloadInEnvelope(t *testing.T) {
	event := newEvent(30)
	event.SetMetadata(domain.EventMetadata{DeliveryID: "evt_1"})

	msg, err := outbox.NewMessage(event)
	require.NoError(t, err)

	assert.Equal(t, "billing.credits.granted", msg.RoutingKey)
	assert.Equal(t, event.EventID(), msg.EventID)

	var body struct {
		EventID  uuid.UUID            `json:"event_id"`
		Metadata domain.EventMetadata `json:"metadata"`
		Data     struct {
			Amount int64 `json:"amount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &body))
	assert.Equal(t, event.EventID(), body.EventID)
	assert.Equal(t, "evt_1", body.Metadata.DeliveryID)
	assert.Equal(t, int64(30), body.Data.Amount)
}

func TestProcessor_PublishesAndMarks(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	msgs, err := outbox.NewMessages([]domain.DomainEvent{newEvent(1), newEvent(2)})
	require.NoError(t, err)
	require.NoError(t, repo.SaveBatch(ctx, msgs))
	assert.NotZero(t, msgs[0].ID)

	pub := &eventbus.MemoryPublisher{}
	metrics := observability.NewInMemoryMetrics()
	p := outbox.NewProcessor(repo, pub, outbox.DefaultProcessorConfig(), nil, metrics)

	require.NoError(t, p.ProcessOnce(ctx))

	assert.Len(t, pub.Messages(), 2)
	assert.Equal(t, uint64(2), p.Stats().PublishedCount)
	assert.Equal(t, int64(2), metrics.GetCounter(observability.MetricEventsPublished, observability.T("routing_key", "billing.credits.granted")))

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessor_RetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	repo, db := setupRepo(t)

	msg, err := outbox.NewMessage(newEvent(5))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, msg))

	pub := &eventbus.MemoryPublisher{}
	pub.SetErr(errors.New("broker down"))
	cfg := outbox.DefaultProcessorConfig()
	cfg.MaxRetries = 2
	cfg.RetryBackoffBase = time.Nanosecond
	cfg.RetryBackoffMax = time.Nanosecond
	p := outbox.NewProcessor(repo, pub, cfg, nil, nil)

	require.NoError(t, p.ProcessOnce(ctx))
	assert.Equal(t, uint64(1), p.Stats().FailedCount)

	time.Sleep(time.Millisecond)
	require.NoError(t, p.ProcessOnce(ctx))
	assert.Equal(t, uint64(1), p.Stats().DeadCount)
	assert.Equal(t, "broker down", p.Stats().LastError)

	var reason sql.NullString
	require.NoError(t, db.QueryRow(`SELECT dead_letter_reason FROM outbox WHERE id = ?`, msg.ID).Scan(&reason))
	assert.Equal(t, "broker down", reason.String)

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessor_SkipsMessagesAwaitingRetry(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	msg, err := outbox.NewMessage(newEvent(5))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, msg))
	require.NoError(t, repo.MarkFailed(ctx, msg.ID, "timeout", time.Now().Add(time.Hour)))

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessor_Backoff(t *testing.T) {
	cfg := outbox.ProcessorConfig{RetryBackoffBase: time.Second, RetryBackoffMax: 10 * time.Second}
	p := outbox.NewProcessor(nil, nil, cfg, nil, nil)

	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(4))
	assert.Equal(t, 10*time.Second, p.Backoff(5))
	assert.Equal(t, 10*time.Second, p.Backoff(60))
}

func TestProcessor_CleanupOnce(t *testing.T) {
	ctx := context.Background()
	repo, db := setupRepo(t)

	msg, err := outbox.NewMessage(newEvent(5))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, msg))
	_, err = db.Exec(`UPDATE outbox SET published_at = '2000-01-01T00:00:00.000000000Z' WHERE id = ?`, msg.ID)
	require.NoError(t, err)

	cfg := outbox.DefaultProcessorConfig()
	p := outbox.NewProcessor(repo, &eventbus.MemoryPublisher{}, cfg, nil, nil)

	deleted, err := p.CleanupOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestProcessor_StartStop(t *testing.T) {
	repo, _ := setupRepo(t)
	cfg := outbox.DefaultProcessorConfig()
	cfg.PollInterval = 5 * time.Millisecond
	p := outbox.NewProcessor(repo, &eventbus.MemoryPublisher{}, cfg, nil, nil)

	p.Start(context.Background())
	assert.True(t, p.IsRunning())
	p.Start(context.Background())

	p.Stop()
	assert.False(t, p.IsRunning())
	p.Stop()
}
