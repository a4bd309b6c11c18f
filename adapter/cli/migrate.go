package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil || a.Migrate == nil {
			return ErrNoDatabase
		}

		applied, err := a.Migrate(cmd.Context())
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
