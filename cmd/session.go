package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/digest"
	"github.com/danielwarnersmith/trace/internal/session"
)

var (
	sessionTitle    string
	sessionShowJSON bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create, close and inspect session directories",
}

var sessionInitCmd = &cobra.Command{
	Use:   "init <dir>",
	Short: "Create a new session directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := append(sessionOptions(), session.WithTitle(sessionTitle))
		d, id, err := session.Init(args[0], opts...)
		if err != nil {
			return err
		}
		logger.Debug("session created", "dir", d.Path(), "id", id)
		fmt.Fprintf(cmd.OutOrStdout(), "created: %s (id %s)\n", d.Path(), id)
		return nil
	},
}

var sessionCloseCmd = &cobra.Command{
	Use:   "close <dir>",
	Short: "Close an active session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		res, err := d.Close()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "closed: %s (duration %s)\n", res.EndTime, digest.FormatOffset(res.DurationMS))
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <dir>",
	Short: "Print a summary of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		s, err := d.Show()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if sessionShowJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}
		fmt.Fprintf(out, "ID:          %s\n", s.ID)
		if s.Title != "" {
			fmt.Fprintf(out, "Title:       %s\n", s.Title)
		}
		fmt.Fprintf(out, "Status:      %s\n", s.Status)
		fmt.Fprintf(out, "Started:     %s\n", s.StartTime)
		if s.EndTime != "" {
			fmt.Fprintf(out, "Ended:       %s\n", s.EndTime)
		}
		if s.DurationMS != nil {
			fmt.Fprintf(out, "Duration:    %s\n", digest.FormatOffset(*s.DurationMS))
		}
		fmt.Fprintf(out, "Updated:     %s\n", s.UpdatedAt)
		fmt.Fprintf(out, "Media:       %d\n", s.MediaCount)
		fmt.Fprintf(out, "Markers:     %d\n", s.MarkerCount)
		fmt.Fprintf(out, "Voice notes: %d\n", s.VoiceNoteCount)
		fmt.Fprintf(out, "Segments:    %d\n", s.SegmentCount)
		if s.DigestPath != "" {
			fmt.Fprintf(out, "Digest:      %s\n", s.DigestPath)
		}
		return nil
	},
}

func init() {
	sessionInitCmd.Flags().StringVar(&sessionTitle, "title", "", "session title")
	sessionShowCmd.Flags().BoolVar(&sessionShowJSON, "json", false, "print the summary as JSON")
	sessionCmd.AddCommand(sessionInitCmd, sessionCloseCmd, sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}
