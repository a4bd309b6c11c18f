package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/mcp-go"
)

type userInput struct {
	UserID string `json:"user_id" jsonschema:"required"`
}

type entitlementOutput struct {
	UserID    string `json:"user_id"`
	IsPremium bool   `json:"is_premium"`
}

type subscriptionOutput struct {
	Platform       string     `json:"platform"`
	SubscriptionID string     `json:"subscription_id"`
	Status         string     `json:"status"`
	ProductType    string     `json:"product_type,omitempty"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
}

func registerBillingTools(srv *mcp.Server, deps ToolDependencies) error {
	srv.Tool("billing.entitlement").
		Description("Check whether a user has premium access").
		Handler(entitlementHandler(deps.Billing))

	srv.Tool("billing.subscriptions").
		Description("List a user's subscriptions across platforms").
		Handler(subscriptionsHandler(deps.Billing))

	return nil
}

func entitlementHandler(billing Billing) func(context.Context, userInput) (entitlementOutput, error) {
	return func(ctx context.Context, input userInput) (entitlementOutput, error) {
		if billing == nil {
			return entitlementOutput{}, errors.New("entitlements require database connection")
		}
		userID, err := parseUserID(input.UserID)
		if err != nil {
			return entitlementOutput{}, err
		}
		premium, err := billing.GetEntitlement(ctx, userID)
		if err != nil {
			return entitlementOutput{}, err
		}
		return entitlementOutput{UserID: userID.String(), IsPremium: premium}, nil
	}
}

func subscriptionsHandler(billing Billing) func(context.Context, userInput) ([]subscriptionOutput, error) {
	return func(ctx context.Context, input userInput) ([]subscriptionOutput, error) {
		if billing == nil {
			return nil, errors.New("subscriptions require database connection")
		}
		userID, err := parseUserID(input.UserID)
		if err != nil {
			return nil, err
		}
		subs, err := billing.GetSubscriptions(ctx, userID)
		if err != nil {
			return nil, err
		}
		out := make([]subscriptionOutput, 0, len(subs))
		for _, s := range subs {
			out = append(out, subscriptionOutput{
				Platform:       string(s.Platform),
				SubscriptionID: s.PlatformSubscriptionID,
				Status:         string(s.Status),
				ProductType:    string(s.ProductType),
				PeriodEnd:      s.CurrentPeriodEnd,
			})
		}
		return out, nil
	}
}
