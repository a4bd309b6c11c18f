// Package mcp exposes the credit and entitlement primitives as MCP tools for
// the chat agent.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/amora-chat/amora/adapter/cli"
	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/felixgeelhaar/mcp-go"
	"github.com/google/uuid"
)

// Billing is the slice of the billing service the tools call.
type Billing interface {
	GetEntitlement(ctx context.Context, userID uuid.UUID) (bool, error)
	GetSubscriptions(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error)
}

// Credits is the credit engine surface used by spend paths.
type Credits interface {
	DebitCredits(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error)
	RefundCredits(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ToolDependencies provides the services behind the tools. Nil services make
// the tools fail with a clear error instead of panicking.
type ToolDependencies struct {
	Billing Billing
	Credits Credits
}

// RegisterTools registers the billing and credit tools.
func RegisterTools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}

	srv.Tool("server.version").
		Description("Get server version information").
		Handler(func(ctx context.Context, input struct{}) (map[string]string, error) {
			return map[string]string{
				"version":   cli.Version,
				"commit":    cli.Commit,
				"buildDate": cli.BuildDate,
			}, nil
		})

	if err := registerCreditTools(srv, deps); err != nil {
		return err
	}
	return registerBillingTools(srv, deps)
}

func parseUserID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, errors.New("user_id is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user_id: %w", err)
	}
	return id, nil
}
