package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/action"
)

var actionInputs map[string]string

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Run session actions and inspect their history",
}

var actionRunCmd = &cobra.Command{
	Use:   "run <dir> <action-id>",
	Short: "Run an action and record it in actions.jsonl",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		runner := action.NewRunner(action.NewDefaultRegistry(nil), logger)
		res, err := runner.Run(cmd.Context(), d, args[1], actionInputs)
		if res.ID != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "action: %s %s (run %s)\n", res.Action, res.Status, res.ID)
			if len(res.Outputs) > 0 {
				out, _ := json.Marshal(res.Outputs)
				fmt.Fprintf(cmd.OutOrStdout(), "outputs: %s\n", out)
			}
		}
		return err
	},
}

var actionListCmd = &cobra.Command{
	Use:   "list [dir]",
	Short: "List available actions, or the recorded runs of a session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			for _, id := range action.NewDefaultRegistry(nil).IDs() {
				fmt.Fprintln(out, id)
			}
			return nil
		}
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		runs, err := action.Runs(d)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "(no action runs)")
			return nil
		}
		for _, r := range runs {
			line := fmt.Sprintf("%s  %-9s  %-22s %s", r.CreatedAt, r.Status, r.Action, r.ID)
			if r.Error != "" {
				line += "  " + r.Error
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	actionRunCmd.Flags().StringToStringVar(&actionInputs, "input", nil, "action input key=value (repeatable)")
	actionCmd.AddCommand(actionRunCmd, actionListCmd)
	rootCmd.AddCommand(actionCmd)
}
