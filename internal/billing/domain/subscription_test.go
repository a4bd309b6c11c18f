package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(t time.Time) *time.Time { return &t }

func baseUpsert() SubscriptionUpsert {
	return SubscriptionUpsert{
		UserID:                 uuid.New(),
		Platform:               PlatformWeb,
		PlatformSubscriptionID: "sub_1",
		PlatformCustomerID:     "cus_1",
		PlatformProductID:      "price_monthly",
		CustomerEmail:          "a@example.com",
		Status:                 StatusActive,
		ProductType:            ProductMonthly,
		CurrentPeriodStart:     ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		CurrentPeriodEnd:       ptr(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestMapStatus(t *testing.T) {
	canceledAt := time.Now()
	tests := []struct {
		name       string
		raw        string
		cancelFlag bool
		canceledAt *time.Time
		want       SubscriptionStatus
		recognized bool
	}{
		{"active", "active", false, nil, StatusActive, true},
		{"active with cancel flag", "active", true, nil, StatusCanceled, true},
		{"active with canceled_at", "active", false, &canceledAt, StatusCanceled, true},
		{"canceled", "canceled", false, nil, StatusExpired, true},
		{"incomplete_expired", "incomplete_expired", false, nil, StatusExpired, true},
		{"expired", "expired", false, nil, StatusExpired, true},
		{"past_due", "past_due", false, nil, StatusPastDue, true},
		{"unpaid", "unpaid", false, nil, StatusPastDue, true},
		{"trialing", "trialing", false, nil, StatusTrialing, true},
		{"unknown fails open", "paused", false, nil, StatusActive, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MapStatus(tt.raw, tt.cancelFlag, tt.canceledAt)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.recognized, ok)
		})
	}
}

func TestProductTypeFromInterval(t *testing.T) {
	assert.Equal(t, ProductWeekly, ProductTypeFromInterval("week"))
	assert.Equal(t, ProductMonthly, ProductTypeFromInterval("P1M"))
	assert.Equal(t, ProductYearly, ProductTypeFromInterval("year"))
	assert.Equal(t, ProductType(""), ProductTypeFromInterval("day"))
}

func TestNewSubscription(t *testing.T) {
	now := time.Now()
	s, err := NewSubscription(baseUpsert(), now)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, now.UTC(), s.CreatedAt)

	u := baseUpsert()
	u.UserID = uuid.Nil
	_, err = NewSubscription(u, now)
	assert.ErrorIs(t, err, ErrUnresolvableCorrelation)

	u = baseUpsert()
	u.PlatformSubscriptionID = ""
	_, err = NewSubscription(u, now)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestSubscriptionApply_PatchesOnlyProvidedFields(t *testing.T) {
	s, err := NewSubscription(baseUpsert(), time.Now())
	require.NoError(t, err)
	owner := s.UserID

	renewal := s.Apply(SubscriptionUpsert{
		UserID:   uuid.New(),
		Platform: PlatformWeb,
		Status:   StatusPastDue,
	}, time.Now())

	assert.False(t, renewal)
	assert.Equal(t, owner, s.UserID)
	assert.Equal(t, StatusPastDue, s.Status)
	assert.Equal(t, "a@example.com", s.CustomerEmail)
	assert.Equal(t, "cus_1", s.PlatformCustomerID)
	assert.Equal(t, ProductMonthly, s.ProductType)
	assert.NotNil(t, s.CurrentPeriodStart)
}

func TestSubscriptionApply_Renewal(t *testing.T) {
	tests := []struct {
		name   string
		start  *time.Time
		status SubscriptionStatus
		want   bool
	}{
		{"new period while active", ptr(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)), StatusActive, true},
		{"same period replayed", ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), StatusActive, false},
		{"same instant other zone", ptr(time.Date(2024, 1, 1, 1, 0, 0, 0, time.FixedZone("CET", 3600))), StatusActive, false},
		{"new period but past due", ptr(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)), StatusPastDue, false},
		{"older period delivered late", ptr(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)), StatusActive, false},
		{"no period provided", nil, StatusActive, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSubscription(baseUpsert(), time.Now())
			require.NoError(t, err)
			got := s.Apply(SubscriptionUpsert{Status: tt.status, CurrentPeriodStart: tt.start}, time.Now())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubscriptionApply_StaleUpsertKeepsState(t *testing.T) {
	s, err := NewSubscription(baseUpsert(), time.Now())
	require.NoError(t, err)
	p2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.True(t, s.Apply(SubscriptionUpsert{Status: StatusActive, CurrentPeriodStart: &p2}, time.Now()))

	late := SubscriptionUpsert{
		Status:             StatusCanceled,
		PlatformProductID:  "price_old",
		CustomerEmail:      "old@example.com",
		CustomerName:       "Sam",
		CurrentPeriodStart: ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		CurrentPeriodEnd:   ptr(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
		CanceledAt:         ptr(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
	}
	require.True(t, s.IsStale(late))
	assert.False(t, s.Apply(late, time.Now()))

	assert.Equal(t, StatusActive, s.Status)
	assert.True(t, s.CurrentPeriodStart.Equal(p2))
	assert.Nil(t, s.CanceledAt)
	assert.Equal(t, "price_monthly", s.PlatformProductID)
	assert.Equal(t, "a@example.com", s.CustomerEmail)
	assert.Equal(t, "Sam", s.CustomerName, "empty fields are still filled")

	assert.False(t, s.Apply(SubscriptionUpsert{Status: StatusActive, CurrentPeriodStart: &p2}, time.Now()),
		"the current period is not renewed twice")
}

func TestSubscriptionApply_FirstPeriodIsRenewal(t *testing.T) {
	u := baseUpsert()
	u.CurrentPeriodStart = nil
	s, err := NewSubscription(u, time.Now())
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, s.Apply(SubscriptionUpsert{Status: StatusActive, CurrentPeriodStart: &start}, time.Now()))
}

func TestSubscriptionApply_CanceledAt(t *testing.T) {
	s, err := NewSubscription(baseUpsert(), time.Now())
	require.NoError(t, err)
	canceled := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	s.Apply(SubscriptionUpsert{Status: StatusCanceled, CanceledAt: &canceled}, time.Now())
	require.NotNil(t, s.CanceledAt)

	s.Apply(SubscriptionUpsert{Status: StatusActive}, time.Now())
	assert.NotNil(t, s.CanceledAt, "absent value keeps the stored cancellation")

	s.Apply(SubscriptionUpsert{Status: StatusActive, CanceledAt: &canceled, ClearCanceledAt: true}, time.Now())
	assert.NotNil(t, s.CanceledAt, "an explicit timestamp wins over the clear flag")

	s.Apply(SubscriptionUpsert{Status: StatusActive, ClearCanceledAt: true}, time.Now())
	assert.Nil(t, s.CanceledAt)
}

func TestSubscriptionStatus_GrantsPremium(t *testing.T) {
	assert.True(t, StatusActive.GrantsPremium())
	for _, s := range []SubscriptionStatus{StatusTrialing, StatusCanceled, StatusPastDue, StatusExpired} {
		assert.False(t, s.GrantsPremium(), s)
	}
}

func TestNewPaidOrder(t *testing.T) {
	o, err := NewPaidOrder(uuid.New(), PlatformMobile, "tx_1", "credits_100", 100, time.Now())
	require.NoError(t, err)
	assert.Equal(t, OrderPaid, o.Status)

	_, err = NewPaidOrder(uuid.New(), PlatformMobile, "tx_1", "credits_100", 0, time.Now())
	assert.ErrorIs(t, err, ErrDataIntegrity)

	_, err = NewPaidOrder(uuid.Nil, PlatformMobile, "tx_1", "credits_100", 10, time.Now())
	assert.ErrorIs(t, err, ErrUnresolvableCorrelation)
}

func TestReconcileError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewReconcileError("reconcile_subscription", PlatformWeb, "sub_1", ErrTransientStore, cause)

	assert.ErrorIs(t, err, ErrTransientStore)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "web/sub_1")
	assert.Contains(t, err.Error(), "connection reset")

	var re *ReconcileError
	require.ErrorAs(t, error(err), &re)
	assert.Equal(t, "sub_1", re.ExternalID)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrAuth))
	assert.False(t, IsRetryable(NewReconcileError("op", PlatformWeb, "x", ErrUnresolvableCorrelation, nil)))
	assert.False(t, IsRetryable(ErrDataIntegrity))
	assert.True(t, IsRetryable(NewReconcileError("op", PlatformWeb, "x", ErrTransientStore, errors.New("timeout"))))
	assert.True(t, IsRetryable(errors.New("unclassified")))
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("mobile")
	require.NoError(t, err)
	assert.Equal(t, PlatformMobile, p)

	_, err = ParsePlatform("paypal")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNormalizedEventVariants(t *testing.T) {
	events := []NormalizedEvent{
		&SubscriptionEvent{EventMeta: EventMeta{Kind: KindSubscriptionRenewed, Platform: PlatformWeb}, PlatformSubscriptionID: "sub_1"},
		&OrderEvent{EventMeta: EventMeta{Kind: KindOrderPaid, Platform: PlatformMobile}, PlatformOrderID: "tx_1"},
	}
	assert.Equal(t, "sub_1", events[0].ExternalID())
	assert.Equal(t, KindOrderPaid, events[1].Meta().Kind)
}
