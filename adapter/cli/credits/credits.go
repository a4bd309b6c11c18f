// Package credits exposes the credit primitives to operators.
package credits

import (
	"fmt"

	"github.com/amora-chat/amora/adapter/cli"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	creditsUser   string
	creditsAmount int64
	creditsReason string
	historyLimit  int
)

// Cmd is the credits command group.
var Cmd = &cobra.Command{
	Use:   "credits",
	Short: "Grant, debit, refund and inspect chat credits",
}

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant credits to a user",
	Long: `Grant credits to a user.

Examples:
  amora credits grant --user <id> --amount 50 --reason "manual:support-ticket-812"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		userID, err := parseUser(creditsUser)
		if err != nil {
			return err
		}
		balance, err := service.Credits().GrantCredits(cmd.Context(), userID, creditsAmount, creditsReason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Granted %d credits. Balance: %d\n", creditsAmount, balance)
		return nil
	},
}

var debitCmd = &cobra.Command{
	Use:   "debit",
	Short: "Debit credits from a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		userID, err := parseUser(creditsUser)
		if err != nil {
			return err
		}
		balance, err := service.Credits().DebitCredits(cmd.Context(), userID, creditsAmount, creditsReason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Debited %d credits. Balance: %d\n", creditsAmount, balance)
		return nil
	},
}

var refundCmd = &cobra.Command{
	Use:   "refund",
	Short: "Refund credits to a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		userID, err := parseUser(creditsUser)
		if err != nil {
			return err
		}
		balance, err := service.Credits().RefundCredits(cmd.Context(), userID, creditsAmount, creditsReason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Refunded %d credits. Balance: %d\n", creditsAmount, balance)
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show a user's credit balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		userID, err := parseUser(creditsUser)
		if err != nil {
			return err
		}
		balance, err := service.Credits().Balance(cmd.Context(), userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Balance: %d\n", balance)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent credit mutations",
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		userID, err := parseUser(creditsUser)
		if err != nil {
			return err
		}
		entries, err := service.Credits().History(cmd.Context(), userID, historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No credit history.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %+6d  %6d  %s\n",
				e.CreatedAt.UTC().Format("2006-01-02 15:04:05"), e.Delta, e.BalanceAfter, e.Reason)
		}
		return nil
	},
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

func init() {
	Cmd.PersistentFlags().StringVar(&creditsUser, "user", "", "user id")

	for _, c := range []*cobra.Command{grantCmd, debitCmd, refundCmd} {
		c.Flags().Int64Var(&creditsAmount, "amount", 0, "number of credits")
		c.Flags().StringVar(&creditsReason, "reason", "", "ledger reason")
		Cmd.AddCommand(c)
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show")
	Cmd.AddCommand(balanceCmd, historyCmd)
}
