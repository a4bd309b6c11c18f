package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/amora-chat/amora/internal/billing/application"
	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/amora-chat/amora/pkg/observability"
)

// MaxWebhookBody caps the size of a provider payload.
const MaxWebhookBody = 1 << 20

// AdapterRegistry resolves webhook route names to provider adapters.
type AdapterRegistry interface {
	Get(name string) (domain.ProviderAdapter, error)
}

// EventProcessor applies a normalized event to the ledger.
type EventProcessor interface {
	Process(ctx context.Context, ev domain.NormalizedEvent) (*application.Result, error)
}

// WebhookHandler authenticates, normalizes and reconciles provider webhooks.
type WebhookHandler struct {
	adapters   AdapterRegistry
	processor  EventProcessor
	deliveries domain.DeliveryLog
	timeout    time.Duration
	logger     *slog.Logger
	metrics    observability.Metrics
}

// WebhookHandlerConfig holds dependencies for the webhook handler.
type WebhookHandlerConfig struct {
	Adapters  AdapterRegistry
	Processor EventProcessor
	// Deliveries is optional; without it every delivery goes to the processor.
	Deliveries domain.DeliveryLog
	Timeout    time.Duration
	Logger     *slog.Logger
	Metrics    observability.Metrics
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(cfg WebhookHandlerConfig) *WebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WebhookHandler{
		adapters:   cfg.Adapters,
		processor:  cfg.Processor,
		deliveries: cfg.Deliveries,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

type webhookResponse struct {
	Status string `json:"status"`
	Event  string `json:"event,omitempty"`
}

// HandleWebhook handles POST /webhooks/{provider}
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	name := r.PathValue("provider")
	logger := h.logger.With(
		"provider", name,
		observability.RequestIDKey, observability.RequestIDFromContext(r.Context()),
	)

	adapter, err := h.adapters.Get(name)
	if err != nil {
		logger.WarnContext(r.Context(), "webhook for unknown provider")
		writeError(w, http.StatusNotFound, "Unknown provider")
		return
	}
	h.metrics.Counter(observability.MetricWebhooksReceived, 1, observability.T("provider", name))
	logger.InfoContext(r.Context(), "webhook received")

	outcome := "failed"
	defer func() {
		h.metrics.Counter(observability.MetricWebhookOutcome, 1,
			observability.T("provider", name),
			observability.T("outcome", outcome),
		)
		h.metrics.Timing(observability.MetricWebhookDuration, time.Since(started), observability.T("provider", name))
	}()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.WarnContext(ctx, "webhook body too large", "limit", tooLarge.Limit)
			writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		logger.WarnContext(ctx, "failed to read webhook body", "error", err)
		writeError(w, http.StatusBadRequest, "Unreadable body")
		return
	}

	if err := adapter.Verify(r.Header, body); err != nil {
		outcome = "rejected"
		logger.WarnContext(ctx, "webhook rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}
	logger.DebugContext(ctx, "webhook authenticated")

	ev, err := adapter.Parse(body)
	if errors.Is(err, domain.ErrEventIgnored) {
		outcome = string(application.OutcomeIgnored)
		logger.InfoContext(ctx, "webhook ignored", "reason", err.Error())
		writeJSON(w, http.StatusOK, webhookResponse{Status: outcome})
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "webhook payload rejected", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	meta := ev.Meta()
	ctx = observability.WithDeliveryID(ctx, meta.DeliveryID)
	logger = logger.With(
		observability.DeliveryIDKey, meta.DeliveryID,
		"kind", string(meta.Kind),
		"external_id", ev.ExternalID(),
	)
	logger.DebugContext(ctx, "webhook normalized")

	if h.alreadyDelivered(ctx, logger, meta) {
		outcome = string(application.OutcomeDuplicate)
		logger.InfoContext(ctx, "webhook acknowledged", "outcome", outcome)
		writeJSON(w, http.StatusOK, webhookResponse{Status: outcome, Event: string(meta.Kind)})
		return
	}

	result, err := h.processor.Process(ctx, ev)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusOK {
			outcome = string(application.OutcomeDuplicate)
			h.recordDelivery(ctx, logger, meta)
			writeJSON(w, status, webhookResponse{Status: outcome, Event: string(meta.Kind)})
			return
		}
		logger.ErrorContext(ctx, "webhook failed",
			"error", err,
			"status", status,
			"retryable", domain.IsRetryable(err),
		)
		writeError(w, status, http.StatusText(status))
		return
	}

	outcome = string(result.Outcome)
	h.recordDelivery(ctx, logger, meta)
	logger.InfoContext(ctx, "webhook acknowledged", "outcome", outcome)
	writeJSON(w, http.StatusOK, webhookResponse{Status: outcome, Event: string(meta.Kind)})
}

func (h *WebhookHandler) alreadyDelivered(ctx context.Context, logger *slog.Logger, meta domain.EventMeta) bool {
	if h.deliveries == nil || meta.DeliveryID == "" {
		return false
	}
	seen, err := h.deliveries.Seen(ctx, meta.Platform, meta.DeliveryID)
	if err != nil {
		logger.WarnContext(ctx, "delivery log lookup failed", "error", err)
		return false
	}
	return seen
}

func (h *WebhookHandler) recordDelivery(ctx context.Context, logger *slog.Logger, meta domain.EventMeta) {
	if h.deliveries == nil || meta.DeliveryID == "" {
		return
	}
	if err := h.deliveries.Record(ctx, meta.Platform, meta.DeliveryID); err != nil {
		logger.WarnContext(ctx, "failed to record delivery", "error", err)
	}
}

// statusFor maps the billing error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMalformedEvent),
		errors.Is(err, domain.ErrUnresolvableCorrelation),
		errors.Is(err, domain.ErrDataIntegrity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateEvent),
		errors.Is(err, domain.ErrEventIgnored):
		return http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
