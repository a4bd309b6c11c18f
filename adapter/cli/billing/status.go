package billing

import (
	"fmt"
	"time"

	"github.com/amora-chat/amora/adapter/cli"
	"github.com/spf13/cobra"
)

var statusUser string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a user's subscriptions and premium flag",
	Long: `Show every subscription owned by a user across both platforms.

Examples:
  amora billing status --user 6f1c2a4e-8d0b-4c8e-9a57-2b8f6d0f1e33`,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		userID, err := parseUser(statusUser)
		if err != nil {
			return err
		}

		subs, err := service.GetSubscriptions(cmd.Context(), userID)
		if err != nil {
			return err
		}
		premium, err := service.GetEntitlement(cmd.Context(), userID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Premium: %t\n", premium)
		if len(subs) == 0 {
			fmt.Fprintln(out, "No subscriptions found.")
			return nil
		}

		fmt.Fprintf(out, "Subscriptions (%d):\n", len(subs))
		for _, sub := range subs {
			line := fmt.Sprintf("  %s/%s: %s", sub.Platform, sub.PlatformSubscriptionID, sub.Status)
			if sub.ProductType != "" {
				line += fmt.Sprintf(" (%s)", sub.ProductType)
			}
			if sub.CurrentPeriodEnd != nil {
				line += " until " + sub.CurrentPeriodEnd.UTC().Format(time.RFC3339)
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusUser, "user", "", "user id")
}
