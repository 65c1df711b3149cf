package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/jobstore/internal/domain"
)

func newJobsCmd(configPath *string) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage stored jobs",
		Long: `Inspect and manage stored jobs.

Examples:
  jobstore jobs list               # List every stored job
  jobstore jobs remove 42          # Delete the job with id 42`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *configPath, bootstrapOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.LoadJobs(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load jobs: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFUNC\tTRIGGER\tNEXT RUN\tRUNS")
			for _, job := range a.store.Jobs() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
					job.ID,
					displayName(job),
					job.FuncRef,
					job.Trigger.Kind(),
					job.NextRunTime.UTC().Format(time.RFC3339),
					job.Runs,
				)
			}
			return w.Flush()
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a stored job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			a, err := bootstrap(cmd.Context(), *configPath, bootstrapOptions{events: true})
			if err != nil {
				return err
			}
			defer a.Close()

			// no load first, so rows that fail to restore can still be removed
			if err := a.store.PurgeJob(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to remove job %d: %w", id, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed job %d\n", id)
			return nil
		},
	}

	jobsCmd.AddCommand(listCmd, removeCmd)
	return jobsCmd
}

func displayName(job *domain.Job) string {
	if job.Name == "" {
		return "-"
	}
	return job.Name
}
