package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/amora-chat/amora/pkg/observability"
	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable is returned while the catalog service is failing.
var ErrUnavailable = errors.New("product catalog unavailable")

// HTTPConfig configures the remote catalog client.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open.
	OpenTimeout time.Duration
}

// HTTPCatalog looks products up from the catalog service at
// GET {BaseURL}/products/{platform}/{id}.
type HTTPCatalog struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*domain.Product]
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewHTTPCatalog creates a catalog client guarded by a circuit breaker.
func NewHTTPCatalog(cfg HTTPConfig, client *http.Client, logger *slog.Logger, metrics observability.Metrics) *HTTPCatalog {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	c := &HTTPCatalog{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		client:  client,
		logger:  logger,
		metrics: metrics,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*domain.Product](gobreaker.Settings{
		Name:        "product-catalog",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrProductNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c
}

func (c *HTTPCatalog) Lookup(ctx context.Context, platform domain.Platform, productID string) (*domain.Product, error) {
	product, err := c.breaker.Execute(func() (*domain.Product, error) {
		return c.fetch(ctx, platform, productID)
	})
	switch {
	case err == nil:
		c.metrics.Counter(observability.MetricCatalogLookups, 1, observability.T("result", "hit"))
		return product, nil
	case errors.Is(err, domain.ErrProductNotFound):
		c.metrics.Counter(observability.MetricCatalogLookups, 1, observability.T("result", "miss"))
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.Counter(observability.MetricCatalogLookups, 1, observability.T("result", "open"))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		c.metrics.Counter(observability.MetricCatalogLookups, 1, observability.T("result", "error"))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

func (c *HTTPCatalog) fetch(ctx context.Context, platform domain.Platform, productID string) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/products/%s/%s", c.baseURL, url.PathEscape(string(platform)), url.PathEscape(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrProductNotFound, platform, productID)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var product domain.Product
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&product); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	if product.ID == "" {
		product.ID = productID
	}
	if product.Platform == "" {
		product.Platform = platform
	}
	return &product, nil
}

var _ domain.ProductCatalog = (*HTTPCatalog)(nil)
