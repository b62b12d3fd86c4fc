package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/action"
	"github.com/danielwarnersmith/trace/internal/jobs"
)

var (
	jobPayload map[string]string
	jobsOnce   bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Queue and process background jobs for a session",
}

var jobsAddCmd = &cobra.Command{
	Use:   "add <dir> <type>",
	Short: "Queue a job; the type is the action id it will run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		id, err := jobs.Add(d, args[1], jobPayload)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "job: %s\n", id)
		return nil
	},
}

var jobsProcessCmd = &cobra.Command{
	Use:   "process <dir>",
	Short: "Run pending jobs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		runner := action.NewRunner(action.NewDefaultRegistry(nil), logger)
		n, err := jobs.Process(cmd.Context(), d, runner, jobsOnce)
		fmt.Fprintf(cmd.OutOrStdout(), "processed: %d\n", n)
		return err
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list <dir>",
	Short: "List pending and completed jobs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		pending, err := jobs.Pending(d)
		if err != nil {
			return err
		}
		completed, err := jobs.Completed(d)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, j := range append(pending, completed...) {
			line := fmt.Sprintf("%s  %-9s  %s", j.ID, j.Status, j.Type)
			if j.Error != "" {
				line += "  " + j.Error
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	jobsAddCmd.Flags().StringToStringVar(&jobPayload, "payload", nil, "job payload key=value (repeatable)")
	jobsProcessCmd.Flags().BoolVar(&jobsOnce, "once", false, "run only the first pending job")
	jobsCmd.AddCommand(jobsAddCmd, jobsProcessCmd, jobsListCmd)
	rootCmd.AddCommand(jobsCmd)
}
