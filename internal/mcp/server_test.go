package mcp

import (
	"context"
	"testing"

	"github.com/amora-chat/amora/pkg/config"
	"github.com/felixgeelhaar/mcp-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_WithoutService(t *testing.T) {
	srv, err := NewServer(nil)
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestServe_ProductionRequiresToken(t *testing.T) {
	cfg := &config.Config{AppEnv: "production", MCPAddr: "127.0.0.1:0"}

	err := Serve(context.Background(), cfg, nil, nil)
	assert.ErrorIs(t, err, ErrAuthTokenRequired)
}

func TestServe_RequiresConfig(t *testing.T) {
	assert.Error(t, Serve(context.Background(), nil, nil, nil))
}

func TestFieldsToArgs(t *testing.T) {
	args := fieldsToArgs([]middleware.Field{{Key: "tool", Value: "credits.debit"}, {Key: "ms", Value: 3}})
	assert.Equal(t, []any{"tool", "credits.debit", "ms", 3}, args)
}
