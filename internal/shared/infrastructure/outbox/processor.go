package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amora-chat/amora/internal/shared/infrastructure/eventbus"
	"github.com/amora-chat/amora/pkg/observability"
)

// ProcessorConfig holds configuration for the outbox processor.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	// RetentionDays > 0 enables periodic deletion of published messages.
	RetentionDays   int
	CleanupInterval time.Duration
}

// DefaultProcessorConfig returns the defaults used by the worker.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     500 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       8,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  5 * time.Minute,
		RetentionDays:    14,
		CleanupInterval:  24 * time.Hour,
	}
}

// Stats is a snapshot of processor activity.
type Stats struct {
	IsRunning       bool       `json:"running"`
	PublishedCount  uint64     `json:"published"`
	FailedCount     uint64     `json:"failed"`
	DeadCount       uint64     `json:"dead"`
	LagSeconds      float64    `json:"lag_seconds"`
	LastError       string     `json:"last_error,omitempty"`
	LastErrorAt     *time.Time `json:"last_error_at,omitempty"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
}

// Processor relays pending outbox messages to a Publisher.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates a new outbox processor.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger, metrics observability.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger.With("component", "outbox"),
		metrics:   metrics,
	}
}

// Start launches the polling loop in the background.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		p.loop(ctx, stop)
	}(p.stop, p.done)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
	)
}

// Run polls until ctx is cancelled. It suits errgroup-managed processes.
func (p *Processor) Run(ctx context.Context) error {
	p.Start(ctx)
	<-ctx.Done()
	p.Stop()
	return nil
}

// Stop halts the loop and waits for the in-flight batch.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	done := p.done
	p.mu.Unlock()

	<-done
	p.logger.Info("outbox processor stopped")
}

// IsRunning reports whether the loop is active.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) loop(ctx context.Context, stop <-chan struct{}) {
	poll := time.NewTicker(p.pollInterval())
	defer poll.Stop()

	var cleanup <-chan time.Time
	if p.config.RetentionDays > 0 && p.config.CleanupInterval > 0 {
		t := time.NewTicker(p.config.CleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-poll.C:
			if err := p.ProcessOnce(ctx); err != nil {
				p.logger.Error("failed to process outbox batch", "error", err)
			}
		case <-cleanup:
			if _, err := p.CleanupOnce(ctx); err != nil {
				p.logger.Error("outbox cleanup failed", "error", err)
			}
		}
	}
}

// ProcessOnce relays one batch synchronously.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	msgs, err := p.repo.GetUnpublished(ctx, p.batchSize())
	if err != nil {
		p.recordError(err)
		return err
	}
	p.recordBatch(msgs)

	for _, msg := range msgs {
		if err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload); err != nil {
			p.handleFailure(ctx, msg, err)
			continue
		}
		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("failed to mark message as published", "id", msg.ID, "event_id", msg.EventID, "error", err)
			continue
		}
		p.statsMu.Lock()
		p.stats.PublishedCount++
		p.statsMu.Unlock()
		p.metrics.Counter(observability.MetricEventsPublished, 1, observability.T("routing_key", msg.RoutingKey))
	}
	return nil
}

func (p *Processor) handleFailure(ctx context.Context, msg *Message, err error) {
	p.logger.Warn("failed to publish message",
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		"retry_count", msg.RetryCount,
		"error", err,
	)
	p.recordError(err)

	if p.config.MaxRetries <= 0 || msg.RetryCount+1 >= p.config.MaxRetries {
		p.statsMu.Lock()
		p.stats.DeadCount++
		p.statsMu.Unlock()
		p.metrics.Counter(observability.MetricEventsDeadLettered, 1, observability.T("routing_key", msg.RoutingKey))
		if markErr := p.repo.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
			p.logger.Error("failed to dead-letter message", "id", msg.ID, "error", markErr)
		}
		return
	}

	p.statsMu.Lock()
	p.stats.FailedCount++
	p.statsMu.Unlock()
	next := time.Now().Add(p.Backoff(msg.RetryCount + 1))
	if markErr := p.repo.MarkFailed(ctx, msg.ID, err.Error(), next); markErr != nil {
		p.logger.Error("failed to mark message as failed", "id", msg.ID, "error", markErr)
	}
}

// CleanupOnce deletes published messages past the retention period.
func (p *Processor) CleanupOnce(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}
	deleted, err := p.repo.DeleteOld(ctx, p.config.RetentionDays)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		p.logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", p.config.RetentionDays)
	}
	return deleted, nil
}

// Backoff returns the delay before the given retry attempt (1-based), doubling
// from RetryBackoffBase up to RetryBackoffMax.
func (p *Processor) Backoff(attempt int) time.Duration {
	base := p.config.RetryBackoffBase
	if base <= 0 {
		base = time.Second
	}
	limit := p.config.RetryBackoffMax
	if limit <= 0 {
		limit = time.Minute
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	return min(delay, limit)
}

// Stats returns a snapshot of processor activity.
func (p *Processor) Stats() Stats {
	p.statsMu.Lock()
	s := p.stats
	p.statsMu.Unlock()
	s.IsRunning = p.IsRunning()
	return s
}

func (p *Processor) pollInterval() time.Duration {
	if p.config.PollInterval <= 0 {
		return time.Second
	}
	return p.config.PollInterval
}

func (p *Processor) batchSize() int {
	if p.config.BatchSize <= 0 {
		return 100
	}
	return p.config.BatchSize
}

func (p *Processor) recordError(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	now := time.Now()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

func (p *Processor) recordBatch(msgs []*Message) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	now := time.Now()
	p.stats.LastProcessedAt = &now
	p.stats.LagSeconds = 0
	for _, msg := range msgs {
		if lag := now.Sub(msg.CreatedAt).Seconds(); lag > p.stats.LagSeconds {
			p.stats.LagSeconds = lag
		}
	}
}
