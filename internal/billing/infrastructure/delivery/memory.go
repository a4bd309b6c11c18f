package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
)

// MemoryLog keeps receipts in process. It serves single-instance local mode.
type MemoryLog struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	receipts map[string]time.Time
}

// NewMemoryLog creates an in-process receipt log.
func NewMemoryLog(ttl time.Duration) *MemoryLog {
	return &MemoryLog{ttl: ttl, now: time.Now, receipts: make(map[string]time.Time)}
}

func (l *MemoryLog) Seen(_ context.Context, platform domain.Platform, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := receiptKey(platform, deliveryID)
	expires, ok := l.receipts[key]
	if !ok {
		return false, nil
	}
	if l.ttl > 0 && l.now().After(expires) {
		delete(l.receipts, key)
		return false, nil
	}
	return true, nil
}

func (l *MemoryLog) Record(_ context.Context, platform domain.Platform, deliveryID string) error {
	if deliveryID == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts[receiptKey(platform, deliveryID)] = l.now().Add(l.ttl)
	return nil
}

// NoopLog never reports a delivery as seen.
type NoopLog struct{}

func (NoopLog) Seen(context.Context, domain.Platform, string) (bool, error) { return false, nil }
func (NoopLog) Record(context.Context, domain.Platform, string) error       { return nil }

var (
	_ domain.DeliveryLog = (*MemoryLog)(nil)
	_ domain.DeliveryLog = NoopLog{}
)
