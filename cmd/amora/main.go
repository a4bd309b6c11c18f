package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/amora-chat/amora/adapter/api"
	"github.com/amora-chat/amora/adapter/cli"
	cliBilling "github.com/amora-chat/amora/adapter/cli/billing"
	cliCredits "github.com/amora-chat/amora/adapter/cli/credits"
	"github.com/amora-chat/amora/internal/app"
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

	logger := observability.NewLogger(observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, cli.Version))
	cli.SetLogger(logger)

	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		// Commands report ErrNoDatabase on their own.
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()

		webhooks := api.NewWebhookHandler(api.WebhookHandlerConfig{
			Adapters:   container.Adapters,
			Processor:  container.BillingService,
			Deliveries: container.Deliveries,
			Timeout:    cfg.WebhookTimeout,
			Logger:     logger,
			Metrics:    container.Metrics,
		})
		serverCfg := api.DefaultServerConfig()
		serverCfg.Addr = cfg.HTTPAddr

		cliApp = cli.NewApp(container.BillingService, container.Adapters)
		cliApp.Server = api.NewServer(serverCfg, webhooks, container.Health, logger)
		cliApp.OutboxProcessor = container.OutboxProcessor
		cliApp.Migrate = container.Migrate
	}
	cli.SetApp(cliApp)

	cli.AddCommand(cliBilling.Cmd)
	cli.AddCommand(cliCredits.Cmd)

	cli.Execute(ctx)
}
