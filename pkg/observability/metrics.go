package observability

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics records application metrics.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is a metric label.
type Tag struct {
	Key   string
	Value string
}

// T creates a new Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)         {}
func (NoopMetrics) Gauge(string, float64, ...Tag)         {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// InMemoryMetrics aggregates metrics in process. It backs tests and the
// /metrics debug endpoint.
type InMemoryMetrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string][]time.Duration
}

// NewInMemoryMetrics creates a new in-memory metrics collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[formatKey(name, tags)] += value
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[formatKey(name, tags)] = value
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := formatKey(name, tags)
	m.timings[key] = append(m.timings[key], duration)
}

// GetCounter returns the current value of a counter. Tag order does not matter.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[formatKey(name, tags)]
}

// GetGauge returns the last value of a gauge.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[formatKey(name, tags)]
}

// GetTimings returns all recorded durations.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]time.Duration(nil), m.timings[formatKey(name, tags)]...)
}

// Snapshot returns all counters and gauges keyed by name and tags.
func (m *InMemoryMetrics) Snapshot() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.counters)+len(m.gauges))
	for k, v := range m.counters {
		out[k] = float64(v)
	}
	for k, v := range m.gauges {
		out[k] = v
	}
	return out
}

func formatKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	sorted := append([]Tag(nil), tags...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var b strings.Builder
	b.WriteString(name)
	for _, t := range sorted {
		b.WriteString(":")
		b.WriteString(t.Key)
		b.WriteString("=")
		b.WriteString(t.Value)
	}
	return b.String()
}

// Metric names.
const (
	MetricWebhooksReceived = "amora.webhooks.received"
	MetricWebhookOutcome   = "amora.webhooks.outcome"
	MetricWebhookDuration  = "amora.webhooks.duration"

	MetricStatusUnrecognized = "amora.billing.status.unrecognized"
	MetricCreditsGranted     = "amora.billing.credits.granted"
	MetricCreditsDebited     = "amora.billing.credits.debited"
	MetricEntitlementChanged = "amora.billing.entitlement.changed"

	MetricCatalogLookups = "amora.catalog.lookups"

	MetricEventsPublished    = "amora.events.published"
	MetricEventsDeadLettered = "amora.events.dead_lettered"
)
