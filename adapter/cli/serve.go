package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveWithOutbox     bool
	serveShutdownPeriod time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook API",
	Long: `Run the HTTP server that receives provider webhooks.

With --with-outbox the outbox processor runs in the same process, which is
convenient in local mode. Production deployments run cmd/worker instead.

Examples:
  amora serve
  amora serve --with-outbox`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil || a.Server == nil {
			return ErrNoDatabase
		}
		if serveWithOutbox && a.OutboxProcessor == nil {
			return errors.New("outbox processor is not configured")
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			if err := a.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("webhook server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownPeriod)
			defer cancel()
			return a.Server.Shutdown(shutdownCtx)
		})
		if serveWithOutbox {
			g.Go(func() error {
				return a.OutboxProcessor.Run(ctx)
			})
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithOutbox, "with-outbox", false, "run the outbox processor in-process")
	serveCmd.Flags().DurationVar(&serveShutdownPeriod, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	rootCmd.AddCommand(serveCmd)
}
