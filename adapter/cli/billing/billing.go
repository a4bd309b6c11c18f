// Package billing holds the operator commands for subscriptions and entitlements.
package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Cmd is the billing command group.
var Cmd = &cobra.Command{
	Use:   "billing",
	Short: "Inspect and repair subscription state",
	Long: `Inspect subscriptions and premium entitlements, and replay stored
provider webhooks through the reconciliation pipeline.`,
}

func init() {
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(entitlementCmd)
	Cmd.AddCommand(replayCmd)
}

func parseUser(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--user is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q: %w", raw, err)
	}
	return id, nil
}
