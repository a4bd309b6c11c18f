// Package webcheckout adapts the web checkout provider's webhooks.
package webcheckout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/amora-chat/amora/internal/billing/infrastructure/providers"
)

const (
	// SignatureHeader carries "t=<unix>,v1=<hex hmac>".
	SignatureHeader = "Webhook-Signature"
	// DefaultTolerance bounds the accepted age of a signature.
	DefaultTolerance = 5 * time.Minute
)

// Config configures the adapter.
type Config struct {
	Secret    string
	Tolerance time.Duration
}

// Adapter implements domain.ProviderAdapter for web checkout.
type Adapter struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// New creates a web checkout adapter.
func New(cfg Config) *Adapter {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	return &Adapter{secret: []byte(cfg.Secret), tolerance: cfg.Tolerance, now: time.Now}
}

func (a *Adapter) Platform() domain.Platform { return domain.PlatformWeb }
func (a *Adapter) Name() string              { return string(domain.PlatformWeb) }

// Verify checks the HMAC-SHA256 signature over "<t>.<body>" and the timestamp tolerance.
func (a *Adapter) Verify(headers http.Header, body []byte) error {
	if len(a.secret) == 0 {
		return fmt.Errorf("%w: web checkout secret not configured", domain.ErrAuth)
	}
	header := headers.Get(SignatureHeader)
	if header == "" {
		return fmt.Errorf("%w: missing %s header", domain.ErrAuth, SignatureHeader)
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}
	age := a.now().Sub(time.Unix(timestamp, 0))
	if age > a.tolerance || age < -a.tolerance {
		return fmt.Errorf("%w: signature timestamp outside tolerance", domain.ErrAuth)
	}

	expected := Sign(a.secret, timestamp, body)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return fmt.Errorf("%w: signature mismatch", domain.ErrAuth)
}

// Sign computes the v1 signature for a payload.
func Sign(secret []byte, timestamp int64, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHeaderValue renders a header value for tests and replay tooling.
func SignatureHeaderValue(secret []byte, timestamp int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(Sign(secret, timestamp, body)))
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var (
		timestamp  int64
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid timestamp")
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("signature header needs t and v1")
	}
	return timestamp, signatures, nil
}

// Parse translates a web checkout event into a NormalizedEvent.
func (a *Adapter) Parse(body []byte) (domain.NormalizedEvent, error) {
	var env envelope
	if err := providers.Decode(body, &env); err != nil {
		return nil, err
	}
	meta := domain.EventMeta{
		Platform:   domain.PlatformWeb,
		DeliveryID: env.ID,
		OccurredAt: occurredAt(env.Created),
	}

	switch env.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		return parseSubscription(meta, env.Data.Object, false)
	case "customer.subscription.deleted":
		return parseSubscription(meta, env.Data.Object, true)
	case "invoice.paid", "invoice.payment_succeeded":
		return parseInvoice(meta, env.Type, env.Data.Object, false)
	case "invoice.payment_failed":
		return parseInvoice(meta, env.Type, env.Data.Object, true)
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return parseCheckoutSession(meta, env.Type, env.Data.Object)
	default:
		return nil, providers.Ignored(env.Type)
	}
}

const statusIncomplete = "incomplete"

func parseSubscription(meta domain.EventMeta, raw []byte, deleted bool) (domain.NormalizedEvent, error) {
	var obj subscriptionObject
	if err := providers.Decode(raw, &obj); err != nil {
		return nil, err
	}
	// The first invoice is still unpaid; a later update or incomplete_expired settles it.
	if !deleted && obj.Status == statusIncomplete {
		return nil, providers.Ignored("subscription " + obj.ID + " " + statusIncomplete)
	}

	ev := &domain.SubscriptionEvent{
		EventMeta:              meta,
		UserID:                 providers.FirstUserID(obj.Metadata["user_id"]),
		PlatformSubscriptionID: obj.ID,
		PlatformCustomerID:     obj.Customer,
		RawStatus:              obj.Status,
		CancelAtPeriodEnd:      obj.CancelAtPeriodEnd,
		CanceledAt:             providers.UnixSeconds(obj.CanceledAt),
		PeriodStart:            providers.UnixSeconds(obj.CurrentPeriodStart),
		PeriodEnd:              providers.UnixSeconds(obj.CurrentPeriodEnd),
	}
	if len(obj.Items.Data) > 0 {
		item := obj.Items.Data[0]
		ev.PlatformProductID = item.Price.ID
		ev.ProductType = domain.ProductTypeFromInterval(item.Price.Recurring.Interval)
		if ev.PeriodStart == nil {
			ev.PeriodStart = providers.UnixSeconds(item.CurrentPeriodStart)
		}
		if ev.PeriodEnd == nil {
			ev.PeriodEnd = providers.UnixSeconds(item.CurrentPeriodEnd)
		}
	}

	switch {
	case deleted:
		ev.Kind = domain.KindSubscriptionExpired
		ev.RawStatus = "canceled"
	case obj.CancelAtPeriodEnd || obj.CanceledAt > 0:
		ev.Kind = domain.KindSubscriptionCanceled
	default:
		ev.Kind = domain.KindSubscriptionUpserted
	}
	return ev, nil
}

func parseInvoice(meta domain.EventMeta, eventType string, raw []byte, failed bool) (domain.NormalizedEvent, error) {
	var obj invoiceObject
	if err := providers.Decode(raw, &obj); err != nil {
		return nil, err
	}
	subscriptionID := obj.subscriptionID()
	if subscriptionID == "" {
		return nil, providers.Ignored(eventType + " without subscription")
	}
	if !failed && obj.BillingReason != "subscription_cycle" {
		return nil, providers.Ignored(eventType + ":" + obj.BillingReason)
	}

	ev := &domain.SubscriptionEvent{
		EventMeta:              meta,
		UserID:                 providers.FirstUserID(obj.userIDCandidates()...),
		PlatformSubscriptionID: subscriptionID,
		PlatformCustomerID:     obj.Customer,
		CustomerEmail:          obj.CustomerEmail,
		CustomerName:           obj.CustomerName,
	}
	if len(obj.Lines.Data) > 0 {
		line := obj.Lines.Data[0]
		ev.PeriodStart = providers.UnixSeconds(line.Period.Start)
		ev.PeriodEnd = providers.UnixSeconds(line.Period.End)
		ev.PlatformProductID = line.Price.ID
		ev.ProductType = domain.ProductTypeFromInterval(line.Price.Recurring.Interval)
	}

	if failed {
		ev.Kind = domain.KindBillingIssue
		ev.RawStatus = "past_due"
		// a failed charge does not open a new period
		ev.PeriodStart, ev.PeriodEnd = nil, nil
	} else {
		ev.Kind = domain.KindSubscriptionRenewed
		ev.RawStatus = "active"
	}
	return ev, nil
}

func parseCheckoutSession(meta domain.EventMeta, eventType string, raw []byte) (domain.NormalizedEvent, error) {
	var obj checkoutSessionObject
	if err := providers.Decode(raw, &obj); err != nil {
		return nil, err
	}
	if obj.Mode != "payment" {
		return nil, providers.Ignored(eventType + ":" + obj.Mode)
	}
	if obj.PaymentStatus != "paid" {
		return nil, providers.Ignored(eventType + ":" + obj.PaymentStatus)
	}
	productID := obj.Metadata["product_id"]
	if productID == "" {
		return nil, providers.Malformed("checkout session %s has no product_id metadata", obj.ID)
	}

	email := obj.CustomerEmail
	if email == "" {
		email = obj.CustomerDetails.Email
	}
	meta.Kind = domain.KindOrderPaid
	return &domain.OrderEvent{
		EventMeta:         meta,
		UserID:            providers.FirstUserID(obj.Metadata["user_id"], obj.ClientReferenceID),
		PlatformOrderID:   obj.ID,
		PlatformProductID: productID,
		CustomerEmail:     email,
	}, nil
}

func occurredAt(created int64) time.Time {
	if t := providers.UnixSeconds(created); t != nil {
		return *t
	}
	return time.Now().UTC()
}

var _ domain.ProviderAdapter = (*Adapter)(nil)
