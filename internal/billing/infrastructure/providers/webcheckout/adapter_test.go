package webcheckout

import (
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func newTestAdapter(now time.Time) *Adapter {
	a := New(Config{Secret: testSecret})
	a.now = func() time.Time { return now }
	return a
}

func signedHeaders(ts int64, body []byte) http.Header {
	h := http.Header{}
	h.Set(SignatureHeader, SignatureHeaderValue([]byte(testSecret), ts, body))
	return h
}

func TestAdapter_Verify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"id":"evt_1"}`)
	a := newTestAdapter(now)

	t.Run("valid signature", func(t *testing.T) {
		require.NoError(t, a.Verify(signedHeaders(now.Unix(), body), body))
	})

	t.Run("one of several signatures matches", func(t *testing.T) {
		h := http.Header{}
		good := hex.EncodeToString(Sign([]byte(testSecret), now.Unix(), body))
		h.Set(SignatureHeader, "t=1700000000,v1=deadbeef,v1="+good)
		require.NoError(t, a.Verify(h, body))
	})

	t.Run("tampered body", func(t *testing.T) {
		err := a.Verify(signedHeaders(now.Unix(), body), []byte(`{"id":"evt_2"}`))
		assert.ErrorIs(t, err, domain.ErrAuth)
	})

	t.Run("wrong secret", func(t *testing.T) {
		h := http.Header{}
		h.Set(SignatureHeader, SignatureHeaderValue([]byte("other"), now.Unix(), body))
		assert.ErrorIs(t, a.Verify(h, body), domain.ErrAuth)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		stale := now.Add(-DefaultTolerance - time.Second).Unix()
		assert.ErrorIs(t, a.Verify(signedHeaders(stale, body), body), domain.ErrAuth)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, a.Verify(http.Header{}, body), domain.ErrAuth)
	})

	t.Run("garbled header", func(t *testing.T) {
		h := http.Header{}
		h.Set(SignatureHeader, "nonsense")
		assert.ErrorIs(t, a.Verify(h, body), domain.ErrAuth)
	})

	t.Run("unconfigured secret rejects everything", func(t *testing.T) {
		empty := New(Config{})
		assert.ErrorIs(t, empty.Verify(signedHeaders(now.Unix(), body), body), domain.ErrAuth)
	})
}

func TestAdapter_Parse_Subscription(t *testing.T) {
	a := New(Config{Secret: testSecret})
	userID := uuid.New()

	body := []byte(`{
		"id": "evt_sub_1",
		"type": "customer.subscription.updated",
		"created": 1704067200,
		"data": {"object": {
			"id": "sub_123",
			"customer": "cus_9",
			"status": "active",
			"cancel_at_period_end": false,
			"metadata": {"user_id": "` + userID.String() + `"},
			"items": {"data": [{
				"price": {"id": "price_month", "recurring": {"interval": "month"}},
				"current_period_start": 1704067200,
				"current_period_end": 1706745600
			}]}
		}}
	}`)

	ev, err := a.Parse(body)
	require.NoError(t, err)
	sub, ok := ev.(*domain.SubscriptionEvent)
	require.True(t, ok)

	assert.Equal(t, domain.KindSubscriptionUpserted, sub.Kind)
	assert.Equal(t, domain.PlatformWeb, sub.Platform)
	assert.Equal(t, "evt_sub_1", sub.DeliveryID)
	assert.Equal(t, userID, sub.UserID)
	assert.Equal(t, "sub_123", sub.ExternalID())
	assert.Equal(t, "price_month", sub.PlatformProductID)
	assert.Equal(t, domain.ProductMonthly, sub.ProductType)
	require.NotNil(t, sub.PeriodStart)
	assert.Equal(t, int64(1704067200), sub.PeriodStart.Unix())
	require.NotNil(t, sub.PeriodEnd)
	assert.Equal(t, int64(1706745600), sub.PeriodEnd.Unix())
}

func TestAdapter_Parse_SubscriptionVariants(t *testing.T) {
	a := New(Config{Secret: testSecret})

	tests := []struct {
		name      string
		eventType string
		object    string
		wantKind  domain.EventKind
		wantRaw   string
	}{
		{
			name:      "cancel at period end",
			eventType: "customer.subscription.updated",
			object:    `{"id":"sub_1","status":"active","cancel_at_period_end":true}`,
			wantKind:  domain.KindSubscriptionCanceled,
			wantRaw:   "active",
		},
		{
			name:      "canceled immediately",
			eventType: "customer.subscription.updated",
			object:    `{"id":"sub_1","status":"active","canceled_at":1704067200}`,
			wantKind:  domain.KindSubscriptionCanceled,
			wantRaw:   "active",
		},
		{
			name:      "deleted",
			eventType: "customer.subscription.deleted",
			object:    `{"id":"sub_1","status":"active"}`,
			wantKind:  domain.KindSubscriptionExpired,
			wantRaw:   "canceled",
		},
		{
			name:      "created trialing",
			eventType: "customer.subscription.created",
			object:    `{"id":"sub_1","status":"trialing"}`,
			wantKind:  domain.KindSubscriptionUpserted,
			wantRaw:   "trialing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(`{"id":"evt","type":"` + tt.eventType + `","data":{"object":` + tt.object + `}}`)
			ev, err := a.Parse(body)
			require.NoError(t, err)
			sub := ev.(*domain.SubscriptionEvent)
			assert.Equal(t, tt.wantKind, sub.Kind)
			assert.Equal(t, tt.wantRaw, sub.RawStatus)
			assert.Equal(t, uuid.Nil, sub.UserID)
		})
	}
}

func TestAdapter_Parse_Invoice(t *testing.T) {
	a := New(Config{Secret: testSecret})
	userID := uuid.New()

	t.Run("cycle payment is a renewal", func(t *testing.T) {
		body := []byte(`{"id":"evt_inv","type":"invoice.paid","data":{"object":{
			"id":"in_1","customer":"cus_1","customer_email":"a@example.com",
			"billing_reason":"subscription_cycle",
			"parent":{"subscription_details":{"subscription":"sub_9","metadata":{"user_id":"` + userID.String() + `"}}},
			"lines":{"data":[{"period":{"start":1706745600,"end":1709251200},"price":{"id":"price_year","recurring":{"interval":"year"}}}]}
		}}}`)
		ev, err := a.Parse(body)
		require.NoError(t, err)
		sub := ev.(*domain.SubscriptionEvent)
		assert.Equal(t, domain.KindSubscriptionRenewed, sub.Kind)
		assert.Equal(t, "sub_9", sub.PlatformSubscriptionID)
		assert.Equal(t, "active", sub.RawStatus)
		assert.Equal(t, userID, sub.UserID)
		assert.Equal(t, domain.ProductYearly, sub.ProductType)
		assert.Equal(t, "a@example.com", sub.CustomerEmail)
		require.NotNil(t, sub.PeriodStart)
		assert.Equal(t, int64(1706745600), sub.PeriodStart.Unix())
	})

	t.Run("first invoice is ignored", func(t *testing.T) {
		body := []byte(`{"id":"evt","type":"invoice.paid","data":{"object":{"id":"in_1","subscription":"sub_9","billing_reason":"subscription_create"}}}`)
		_, err := a.Parse(body)
		assert.ErrorIs(t, err, domain.ErrEventIgnored)
	})

	t.Run("invoice without subscription is ignored", func(t *testing.T) {
		body := []byte(`{"id":"evt","type":"invoice.paid","data":{"object":{"id":"in_1","billing_reason":"manual"}}}`)
		_, err := a.Parse(body)
		assert.ErrorIs(t, err, domain.ErrEventIgnored)
	})

	t.Run("payment failure is a billing issue", func(t *testing.T) {
		body := []byte(`{"id":"evt","type":"invoice.payment_failed","data":{"object":{"id":"in_1","subscription":"sub_9","billing_reason":"subscription_cycle",
			"lines":{"data":[{"period":{"start":1706745600,"end":1709251200}}]}}}}`)
		ev, err := a.Parse(body)
		require.NoError(t, err)
		sub := ev.(*domain.SubscriptionEvent)
		assert.Equal(t, domain.KindBillingIssue, sub.Kind)
		assert.Equal(t, "past_due", sub.RawStatus)
		assert.Nil(t, sub.PeriodStart)
	})
}

func TestAdapter_Parse_CheckoutSession(t *testing.T) {
	a := New(Config{Secret: testSecret})
	userID := uuid.New()

	t.Run("paid one-time purchase", func(t *testing.T) {
		body := []byte(`{"id":"evt_cs","type":"checkout.session.completed","data":{"object":{
			"id":"cs_1","mode":"payment","payment_status":"paid",
			"client_reference_id":"` + userID.String() + `",
			"metadata":{"product_id":"credits_100"},
			"customer_details":{"email":"b@example.com"}
		}}}`)
		ev, err := a.Parse(body)
		require.NoError(t, err)
		order, ok := ev.(*domain.OrderEvent)
		require.True(t, ok)
		assert.Equal(t, domain.KindOrderPaid, order.Kind)
		assert.Equal(t, "cs_1", order.ExternalID())
		assert.Equal(t, "credits_100", order.PlatformProductID)
		assert.Equal(t, userID, order.UserID)
		assert.Equal(t, "b@example.com", order.CustomerEmail)
	})

	t.Run("subscription checkout is ignored", func(t *testing.T) {
		body := []byte(`{"id":"evt","type":"checkout.session.completed","data":{"object":{"id":"cs_2","mode":"subscription","payment_status":"paid"}}}`)
		_, err := a.Parse(body)
		assert.ErrorIs(t, err, domain.ErrEventIgnored)
	})

	t.Run("unpaid session is ignored", func(t *testing.T) {
		body := []byte(`{"id":"evt","type":"checkout.session.completed","data":{"object":{"id":"cs_3","mode":"payment","payment_status":"unpaid"}}}`)
		_, err := a.Parse(body)
		assert.ErrorIs(t, err, domain.ErrEventIgnored)
	})

	t.Run("missing product metadata is malformed", func(t *testing.T) {
		body := []byte(`{"id":"evt","type":"checkout.session.completed","data":{"object":{"id":"cs_4","mode":"payment","payment_status":"paid"}}}`)
		_, err := a.Parse(body)
		assert.ErrorIs(t, err, domain.ErrMalformedEvent)
	})
}

func TestAdapter_Parse_Rejects(t *testing.T) {
	a := New(Config{Secret: testSecret})

	_, err := a.Parse([]byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)

	_, err = a.Parse([]byte(`{"type":"customer.subscription.updated","data":{"object":{}}}`))
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)

	_, err = a.Parse([]byte(`{"id":"evt","type":"customer.subscription.updated","data":{"object":{"id":"sub_1"}}}`))
	assert.ErrorIs(t, err, domain.ErrMalformedEvent, "status is required")

	_, err = a.Parse([]byte(`{"id":"evt","type":"charge.refunded","data":{"object":{}}}`))
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}

func TestAdapter_Parse_IncompleteSubscriptionIgnored(t *testing.T) {
	a := New(Config{Secret: testSecret})

	for _, eventType := range []string{"customer.subscription.created", "customer.subscription.updated"} {
		body := []byte(`{"id":"evt","type":"` + eventType + `","data":{"object":{"id":"sub_1","status":"incomplete"}}}`)
		_, err := a.Parse(body)
		assert.ErrorIs(t, err, domain.ErrEventIgnored, eventType)
	}

	body := []byte(`{"id":"evt","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","status":"incomplete_expired"}}}`)
	ev, err := a.Parse(body)
	require.NoError(t, err)
	assert.Equal(t, "incomplete_expired", ev.(*domain.SubscriptionEvent).RawStatus)
}
