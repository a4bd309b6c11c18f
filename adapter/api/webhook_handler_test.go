package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amora-chat/amora/internal/billing/application"
	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/amora-chat/amora/internal/billing/infrastructure/delivery"
	"github.com/amora-chat/amora/internal/billing/infrastructure/providers"
	"github.com/amora-chat/amora/internal/billing/infrastructure/providers/mobilestore"
	"github.com/amora-chat/amora/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mobileSecret = "mobile-secret"

type fakeProcessor struct {
	mu     sync.Mutex
	calls  int
	result *application.Result
	err    error
	wait   bool
}

func (p *fakeProcessor) Process(ctx context.Context, ev domain.NormalizedEvent) (*application.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.wait {
		<-ctx.Done()
		return nil, domain.NewReconcileError("reconcile_subscription", ev.Meta().Platform, ev.ExternalID(), ctx.Err(), ctx.Err())
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.result != nil {
		return p.result, nil
	}
	return &application.Result{Outcome: application.OutcomeProcessed, Kind: ev.Meta().Kind}, nil
}

func (p *fakeProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type harness struct {
	handler    http.Handler
	processor  *fakeProcessor
	deliveries *delivery.MemoryLog
	metrics    *observability.InMemoryMetrics
	health     *observability.HealthRegistry
}

func newHarness(t *testing.T, timeout time.Duration) *harness {
	t.Helper()
	h := &harness{
		processor:  &fakeProcessor{},
		deliveries: delivery.NewMemoryLog(time.Hour),
		metrics:    observability.NewInMemoryMetrics(),
		health:     observability.NewHealthRegistry(),
	}
	webhooks := NewWebhookHandler(WebhookHandlerConfig{
		Adapters:   providers.NewRegistry(mobilestore.New(mobilestore.Config{Secret: mobileSecret})),
		Processor:  h.processor,
		Deliveries: h.deliveries,
		Timeout:    timeout,
		Metrics:    h.metrics,
	})
	h.handler = NewServer(DefaultServerConfig(), webhooks, h.health, nil).Handler()
	return h
}

func (h *harness) post(provider, auth string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func renewalBody(eventID string) []byte {
	return []byte(`{"event":{"id":"` + eventID + `","type":"RENEWAL","app_user_id":"` + uuid.NewString() + `",` +
		`"original_transaction_id":"orig_1","purchased_at_ms":1704067200000,"expiration_at_ms":1706745600000}}`)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWebhookHandler_Processed(t *testing.T) {
	h := newHarness(t, time.Second)

	rec := h.post("mobile", "Bearer "+mobileSecret, renewalBody("evt_1"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, "processed", body["status"])
	assert.Equal(t, string(domain.KindSubscriptionRenewed), body["event"])
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, 1, h.processor.callCount())

	seen, err := h.deliveries.Seen(context.Background(), domain.PlatformMobile, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, int64(1), h.metrics.GetCounter(observability.MetricWebhookOutcome,
		observability.T("provider", "mobile"),
		observability.T("outcome", "processed"),
	))
}

func TestWebhookHandler_RedeliveryShortCircuits(t *testing.T) {
	h := newHarness(t, time.Second)

	require.Equal(t, http.StatusOK, h.post("mobile", mobileSecret, renewalBody("evt_2")).Code)
	rec := h.post("mobile", mobileSecret, renewalBody("evt_2"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", decodeResponse(t, rec)["status"])
	assert.Equal(t, 1, h.processor.callCount())
}

func TestWebhookHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unresolvable", domain.NewReconcileError("op", domain.PlatformMobile, "orig_1", domain.ErrUnresolvableCorrelation, domain.ErrUnresolvableCorrelation), http.StatusBadRequest},
		{"data integrity", domain.NewReconcileError("op", domain.PlatformMobile, "tx_1", domain.ErrDataIntegrity, errors.New("no credits")), http.StatusBadRequest},
		{"malformed", domain.ErrMalformedEvent, http.StatusBadRequest},
		{"transient", domain.NewReconcileError("op", domain.PlatformMobile, "orig_1", domain.ErrTransientStore, errors.New("conn reset")), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"duplicate", domain.ErrDuplicateEvent, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, time.Second)
			h.processor.err = tt.err

			rec := h.post("mobile", mobileSecret, renewalBody("evt_"+tt.name))
			assert.Equal(t, tt.wantStatus, rec.Code)

			seen, err := h.deliveries.Seen(context.Background(), domain.PlatformMobile, "evt_"+tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus == http.StatusOK, seen, "only acknowledged deliveries are recorded")
		})
	}
}

func TestWebhookHandler_Timeout(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	h.processor.wait = true

	rec := h.post("mobile", mobileSecret, renewalBody("evt_slow"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookHandler_Rejections(t *testing.T) {
	h := newHarness(t, time.Second)

	t.Run("unknown provider", func(t *testing.T) {
		rec := h.post("paypal", mobileSecret, renewalBody("evt"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Not Found", decodeResponse(t, rec)["error"])
	})

	t.Run("bad credentials", func(t *testing.T) {
		rec := h.post("mobile", "Bearer wrong", renewalBody("evt"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing credentials", func(t *testing.T) {
		rec := h.post("mobile", "", renewalBody("evt"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed payload", func(t *testing.T) {
		rec := h.post("mobile", mobileSecret, []byte(`{"event":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ignored event type", func(t *testing.T) {
		rec := h.post("mobile", mobileSecret, []byte(`{"event":{"id":"evt_t","type":"TEST"}}`))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored", decodeResponse(t, rec)["status"])
	})

	t.Run("oversized body", func(t *testing.T) {
		big := []byte(`{"event":{"id":"` + strings.Repeat("x", MaxWebhookBody) + `"}}`)
		rec := h.post("mobile", mobileSecret, big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhooks/mobile", nil)
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	assert.Zero(t, h.processor.callCount())
}

func TestServer_HealthEndpoints(t *testing.T) {
	h := newHarness(t, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeResponse(t, rec)["status"])

	h.health.Register("database", observability.PingChecker("database", observability.HealthStatusUnhealthy,
		func(context.Context) error { return errors.New("connection refused") }))

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health observability.OverallHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, observability.HealthStatusUnhealthy, health.Status)
	assert.Contains(t, health.Checks, "database")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusFor(domain.ErrAuth))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.ErrUnknownProvider))
	assert.Equal(t, http.StatusOK, statusFor(domain.ErrEventIgnored))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.DeadlineExceeded))
}
