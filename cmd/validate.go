package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Audit a session directory and report every violation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report := validate.Run(args[0], schemas)
		if report.OK {
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", args[0])
			return nil
		}
		for _, issue := range report.Issues {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", issue)
		}
		return fmt.Errorf("%d issue(s) in %s: %w", len(report.Issues), args[0], errReported)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
