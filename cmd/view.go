package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/digest"
	"github.com/danielwarnersmith/trace/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <dir>",
	Short: "Browse a session in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		snap, err := d.Snapshot()
		if err != nil {
			return err
		}
		if snap.BadLines > 0 {
			logger.Warn("skipped undecodable log lines", "count", snap.BadLines)
		}

		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			fmt.Fprint(cmd.OutOrStdout(), digest.Generate(digest.FromSnapshot(snap)))
			return nil
		}
		return tui.Run(snap)
	},
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
