package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/amora-chat/amora/internal/app"
	mcpinternal "github.com/amora-chat/amora/internal/mcp"
	"github.com/amora-chat/amora/pkg/config"
	"github.com/amora-chat/amora/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.DefaultLogConfig()).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logCfg := observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, cfg.Version)
	logCfg.ServiceName = "amora-mcp"
	logger := observability.NewLogger(logCfg)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if err := mcpinternal.Serve(ctx, cfg, container.BillingService, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
