package billing

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/amora-chat/amora/adapter/cli"
	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/amora-chat/amora/pkg/observability"
	"github.com/spf13/cobra"
)

var (
	replayProvider  string
	replayEventPath string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a stored provider webhook",
	Long: `Run a stored webhook payload through the provider adapter and the
reconciliation pipeline. The signature check is skipped; the payload is
trusted because an operator supplied it.

Reconciliation is idempotent, so replaying an event that was already applied
changes nothing.

Examples:
  amora billing replay --provider web --event evt_1Nv.json
  cat event.json | amora billing replay --provider mobile --event -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		a := cli.GetApp()
		if a.Adapters == nil {
			return errors.New("no provider adapters configured")
		}
		if replayEventPath == "" {
			return errors.New("--event is required")
		}

		adapter, err := a.Adapters.Get(replayProvider)
		if err != nil {
			return fmt.Errorf("%w (available: %v)", err, a.Adapters.Names())
		}

		payload, err := readPayload(cmd.InOrStdin(), replayEventPath)
		if err != nil {
			return err
		}

		ev, err := adapter.Parse(payload)
		if errors.Is(err, domain.ErrEventIgnored) {
			fmt.Fprintf(cmd.OutOrStdout(), "Ignored: %v\n", err)
			return nil
		}
		if err != nil {
			return err
		}

		ctx := observability.WithDeliveryID(cmd.Context(), ev.Meta().DeliveryID)
		cli.Logger().InfoContext(ctx, "replaying webhook",
			"provider", adapter.Name(),
			"kind", string(ev.Meta().Kind),
			"external_id", ev.ExternalID(),
		)

		result, err := service.Process(ctx, ev)
		if err != nil {
			return fmt.Errorf("replay %s: %w", ev.ExternalID(), err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Event: %s %s\n", result.Kind, ev.ExternalID())
		fmt.Fprintf(out, "Outcome: %s\n", result.Outcome)
		if result.Status != "" {
			fmt.Fprintf(out, "Status: %s\n", result.Status)
		}
		fmt.Fprintf(out, "Premium: %t\n", result.IsPremium)
		if result.CreditsGranted > 0 {
			fmt.Fprintf(out, "Credits granted: %d (balance %d)\n", result.CreditsGranted, result.Balance)
		}
		return nil
	},
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event payload: %w", err)
	}
	return data, nil
}

func init() {
	replayCmd.Flags().StringVar(&replayProvider, "provider", "web", "provider name (web or mobile)")
	replayCmd.Flags().StringVar(&replayEventPath, "event", "", "path to the JSON payload, or - for stdin")
}
