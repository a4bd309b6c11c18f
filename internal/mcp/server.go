// Package mcp runs the MCP tool server the chat agent uses for credit spends
// and premium checks.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/middleware"

	mcplocal "github.com/amora-chat/amora/adapter/mcp"
	billingApp "github.com/amora-chat/amora/internal/billing/application"
	"github.com/amora-chat/amora/pkg/config"
)

// ErrAuthTokenRequired is returned when production starts without MCP_AUTH_TOKEN.
var ErrAuthTokenRequired = errors.New("MCP_AUTH_TOKEN is required in production")

// NewServer builds the tool server around service. A nil service registers
// tools that report the missing database.
func NewServer(service *billingApp.Service) (*mcpgo.Server, error) {
	srv := mcpgo.NewServer(mcpgo.ServerInfo{
		Name:    "amora-billing",
		Version: "1.0.0",
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	})

	deps := mcplocal.ToolDependencies{}
	if service != nil {
		deps.Billing = service
		deps.Credits = service.Credits()
	}
	if err := mcplocal.RegisterTools(srv, deps); err != nil {
		return nil, err
	}
	return srv, nil
}

// Serve starts the MCP server and blocks until the context is canceled.
func Serve(ctx context.Context, cfg *config.Config, service *billingApp.Service, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IsProduction() && cfg.MCPAuthToken == "" {
		return ErrAuthTokenRequired
	}

	srv, err := NewServer(service)
	if err != nil {
		return err
	}

	adapter := mcpLogger{logger: logger}
	stack := middleware.DefaultStack(adapter)

	if cfg.MCPAuthToken != "" {
		authenticator := middleware.BearerTokenAuthenticator(middleware.StaticTokens(map[string]*middleware.Identity{
			cfg.MCPAuthToken: {ID: "chat-agent", Name: "chat-agent"},
		}))
		stack = append([]middleware.Middleware{middleware.Auth(authenticator, middleware.WithAuthLogger(adapter))}, stack...)
	} else {
		logger.Warn("MCP auth token not set; requests will be unauthenticated")
	}

	logger.Info("mcp server listening", "addr", cfg.MCPAddr)
	return mcpgo.ServeHTTPWithMiddleware(ctx, srv, cfg.MCPAddr, nil, mcpgo.WithMiddleware(stack...))
}

type mcpLogger struct {
	logger *slog.Logger
}

func (l mcpLogger) Info(msg string, fields ...middleware.Field) {
	l.logger.Info(msg, fieldsToArgs(fields)...)
}

func (l mcpLogger) Error(msg string, fields ...middleware.Field) {
	l.logger.Error(msg, fieldsToArgs(fields)...)
}

func (l mcpLogger) Debug(msg string, fields ...middleware.Field) {
	l.logger.Debug(msg, fieldsToArgs(fields)...)
}

func (l mcpLogger) Warn(msg string, fields ...middleware.Field) {
	l.logger.Warn(msg, fieldsToArgs(fields)...)
}

func fieldsToArgs(fields []middleware.Field) []any {
	args := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		args = append(args, field.Key, field.Value)
	}
	return args
}
