package billing

import (
	"fmt"

	"github.com/amora-chat/amora/adapter/cli"
	"github.com/spf13/cobra"
)

var (
	entitlementUser      string
	entitlementSet       bool
	entitlementRecompute bool
)

var entitlementCmd = &cobra.Command{
	Use:   "entitlement",
	Short: "Read, override or recompute a user's premium flag",
	Long: `Read a user's premium flag, force it with --set, or derive it again
from the user's subscriptions with --recompute.

An override holds until the next subscription event for the user.

Examples:
  amora billing entitlement --user <id>
  amora billing entitlement --user <id> --set=false
  amora billing entitlement --user <id> --recompute`,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		userID, err := parseUser(entitlementUser)
		if err != nil {
			return err
		}

		set := cmd.Flags().Changed("set")
		if set && entitlementRecompute {
			return fmt.Errorf("--set and --recompute are mutually exclusive")
		}

		var premium bool
		switch {
		case set:
			if err := service.SetEntitlement(cmd.Context(), userID, entitlementSet); err != nil {
				return err
			}
			premium = entitlementSet
		case entitlementRecompute:
			premium, err = service.RecomputeEntitlement(cmd.Context(), userID)
		default:
			premium, err = service.GetEntitlement(cmd.Context(), userID)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "User %s premium: %t\n", userID, premium)
		return nil
	},
}

func init() {
	entitlementCmd.Flags().StringVar(&entitlementUser, "user", "", "user id")
	entitlementCmd.Flags().BoolVar(&entitlementSet, "set", false, "override the premium flag")
	entitlementCmd.Flags().BoolVar(&entitlementRecompute, "recompute", false, "derive the flag from subscriptions")
}
