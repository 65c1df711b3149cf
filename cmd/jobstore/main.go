package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/jobstore/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "jobstore",
		Short: "Persistent job store for the scheduler",
		Long: `jobstore keeps scheduler jobs in a relational table (PostgreSQL or SQLite).

Examples:
  jobstore migrate                 # Create the job table if missing
  jobstore serve                   # Start the admin HTTP API
  jobstore jobs list               # List stored jobs
  jobstore jobs remove 42          # Delete a stored job`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if it exists
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found, using environment variables or flags")
			}
		},
	}

	defaultPath := os.Getenv("JOBSTORE_CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = defaultConfigPath
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "Path to configuration file")

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newMigrateCmd(&configPath))
	rootCmd.AddCommand(newJobsCmd(&configPath))

	return rootCmd
}
