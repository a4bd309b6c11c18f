package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredits struct {
	balances map[uuid.UUID]int64
}

func (f *fakeCredits) DebitCredits(_ context.Context, userID uuid.UUID, amount int64, _ string) (int64, error) {
	if f.balances[userID] < amount {
		return 0, domain.ErrInsufficientCredits
	}
	f.balances[userID] -= amount
	return f.balances[userID], nil
}

func (f *fakeCredits) RefundCredits(_ context.Context, userID uuid.UUID, amount int64, _ string) (int64, error) {
	f.balances[userID] += amount
	return f.balances[userID], nil
}

func (f *fakeCredits) Balance(_ context.Context, userID uuid.UUID) (int64, error) {
	return f.balances[userID], nil
}

type fakeBilling struct {
	premium map[uuid.UUID]bool
	subs    []*domain.Subscription
}

func (f *fakeBilling) GetEntitlement(_ context.Context, userID uuid.UUID) (bool, error) {
	return f.premium[userID], nil
}

func (f *fakeBilling) GetSubscriptions(context.Context, uuid.UUID) ([]*domain.Subscription, error) {
	return f.subs, nil
}

func TestRegisterTools_ListTools(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "test",
		Version: "1.0.0",
		Capabilities: mcp.Capabilities{
			Tools: true,
		},
	})
	require.NoError(t, RegisterTools(srv, ToolDependencies{}))

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()

	tools, err := tc.ListTools()
	require.NoError(t, err)

	names := map[any]bool{}
	for _, tool := range tools {
		names[tool["name"]] = true
	}
	for _, want := range []string{"credits.balance", "credits.debit", "credits.refund", "billing.entitlement", "billing.subscriptions"} {
		assert.True(t, names[want], "%s should be registered", want)
	}
}

func TestRegisterTools_NilServer(t *testing.T) {
	assert.Error(t, RegisterTools(nil, ToolDependencies{}))
}

func TestCreditHandlers(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	credits := &fakeCredits{balances: map[uuid.UUID]int64{userID: 10}}

	out, err := debitHandler(credits)(ctx, creditInput{UserID: userID.String(), Amount: 4, Reason: "chat:msg_1"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), out.Balance)

	_, err = debitHandler(credits)(ctx, creditInput{UserID: userID.String(), Amount: 7})
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	out, err = refundHandler(credits)(ctx, creditInput{UserID: userID.String(), Amount: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.Balance)

	out, err = balanceHandler(credits)(ctx, userInput{UserID: userID.String()})
	require.NoError(t, err)
	assert.Equal(t, balanceOutput{UserID: userID.String(), Balance: 10}, out)

	_, err = balanceHandler(credits)(ctx, userInput{UserID: "nope"})
	assert.ErrorContains(t, err, "invalid user_id")

	_, err = balanceHandler(nil)(ctx, userInput{UserID: userID.String()})
	assert.ErrorIs(t, err, errNoCredits)
}

func TestBillingHandlers(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	billing := &fakeBilling{
		premium: map[uuid.UUID]bool{userID: true},
		subs: []*domain.Subscription{{
			Platform:               domain.PlatformWeb,
			PlatformSubscriptionID: "sub_1",
			Status:                 domain.StatusActive,
			ProductType:            domain.ProductMonthly,
			CurrentPeriodEnd:       &end,
		}},
	}

	ent, err := entitlementHandler(billing)(ctx, userInput{UserID: userID.String()})
	require.NoError(t, err)
	assert.True(t, ent.IsPremium)

	subs, err := subscriptionsHandler(billing)(ctx, userInput{UserID: userID.String()})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "web", subs[0].Platform)
	assert.Equal(t, "active", subs[0].Status)
	assert.Equal(t, &end, subs[0].PeriodEnd)

	_, err = entitlementHandler(billing)(ctx, userInput{})
	assert.ErrorContains(t, err, "user_id is required")
}
