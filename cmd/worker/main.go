package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amora-chat/amora/internal/app"
	"github.com/amora-chat/amora/internal/shared/infrastructure/outbox"
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
	logCfg.ServiceName = "amora-worker"
	logger := observability.NewLogger(logCfg)
	logger.Info("starting amora worker")

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	processor := container.OutboxProcessor
	processor.Start(ctx)

	if cfg.WorkerHealthAddr != "" {
		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           healthMux(processor, container.Health),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	if cfg.OutboxStatsInterval > 0 {
		statsTicker := time.NewTicker(cfg.OutboxStatsInterval)
		defer statsTicker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-statsTicker.C:
					stats := processor.Stats()
					logger.Info("outbox stats",
						"running", stats.IsRunning,
						"published", stats.PublishedCount,
						"failed", stats.FailedCount,
						"dead", stats.DeadCount,
						"lag_seconds", stats.LagSeconds,
						"last_error", stats.LastError,
					)
				}
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	processor.Stop()
	logger.Info("worker stopped")
}

func healthMux(processor *outbox.Processor, health *observability.HealthRegistry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"outbox": processor.Stats(),
		})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		result := health.Check(checkCtx)
		status := http.StatusOK
		if result.Status == observability.HealthStatusUnhealthy || !processor.IsRunning() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, result)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
