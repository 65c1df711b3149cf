package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the job table if it does not exist",
		Long: `Connects to the configured database and creates the job table (and its
unique name constraint) if missing. Existing tables are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening the store provisions the table
			a, err := bootstrap(cmd.Context(), *configPath, bootstrapOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "job table ready: %s\n", a.store)
			return nil
		},
	}
}
