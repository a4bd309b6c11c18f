package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/amora-chat/amora/pkg/observability"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logger  *slog.Logger
)

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "amora",
	Short: "Amora billing - subscription and credit reconciliation",
	Long: `Amora billing reconciles subscription and purchase webhooks from the
web checkout and mobile store providers into one ledger of subscriptions,
premium entitlements and chat credits.

Run "amora serve" for the webhook API, or use the billing and credits
commands to inspect and repair individual accounts.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info := commandContext{
			correlationID: uuid.New(),
			startedAt:     time.Now(),
		}
		ctx := context.WithValue(cmd.Context(), commandContextKey{}, info)
		ctx = observability.WithCorrelationID(ctx, info.correlationID.String())
		cmd.SetContext(ctx)
		logger.DebugContext(ctx, "command start", "command", cmd.CommandPath())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok {
			return
		}
		logger.DebugContext(cmd.Context(), "command end",
			"command", cmd.CommandPath(),
			"duration_ms", time.Since(info.startedAt).Milliseconds(),
		)
	},
}

// Execute runs the root command with ctx and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// Logger returns the CLI logger, falling back to slog.Default.
func Logger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Verbose reports whether --verbose was given.
func Verbose() bool {
	return verbose
}
