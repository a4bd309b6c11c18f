package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"
)

var errNoCredits = errors.New("credit operations require database connection")

type creditInput struct {
	UserID string `json:"user_id" jsonschema:"required"`
	Amount int64  `json:"amount" jsonschema:"required"`
	Reason string `json:"reason,omitempty"`
}

type balanceOutput struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

func registerCreditTools(srv *mcp.Server, deps ToolDependencies) error {
	srv.Tool("credits.balance").
		Description("Get a user's chat credit balance").
		Handler(balanceHandler(deps.Credits))

	srv.Tool("credits.debit").
		Description("Spend credits; fails without changes when the balance is too low").
		Handler(debitHandler(deps.Credits))

	srv.Tool("credits.refund").
		Description("Return credits after a failed spend").
		Handler(refundHandler(deps.Credits))

	return nil
}

func balanceHandler(credits Credits) func(context.Context, userInput) (balanceOutput, error) {
	return func(ctx context.Context, input userInput) (balanceOutput, error) {
		if credits == nil {
			return balanceOutput{}, errNoCredits
		}
		userID, err := parseUserID(input.UserID)
		if err != nil {
			return balanceOutput{}, err
		}
		balance, err := credits.Balance(ctx, userID)
		if err != nil {
			return balanceOutput{}, err
		}
		return balanceOutput{UserID: userID.String(), Balance: balance}, nil
	}
}

func debitHandler(credits Credits) func(context.Context, creditInput) (balanceOutput, error) {
	return func(ctx context.Context, input creditInput) (balanceOutput, error) {
		if credits == nil {
			return balanceOutput{}, errNoCredits
		}
		userID, err := parseUserID(input.UserID)
		if err != nil {
			return balanceOutput{}, err
		}
		balance, err := credits.DebitCredits(ctx, userID, input.Amount, input.Reason)
		if err != nil {
			return balanceOutput{}, err
		}
		return balanceOutput{UserID: userID.String(), Balance: balance}, nil
	}
}

func refundHandler(credits Credits) func(context.Context, creditInput) (balanceOutput, error) {
	return func(ctx context.Context, input creditInput) (balanceOutput, error) {
		if credits == nil {
			return balanceOutput{}, errNoCredits
		}
		userID, err := parseUserID(input.UserID)
		if err != nil {
			return balanceOutput{}, err
		}
		balance, err := credits.RefundCredits(ctx, userID, input.Amount, input.Reason)
		if err != nil {
			return balanceOutput{}, err
		}
		return balanceOutput{UserID: userID.String(), Balance: balance}, nil
	}
}
