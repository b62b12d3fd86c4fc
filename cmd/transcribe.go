package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/session"
)

var (
	trFile     string
	trText     string
	trOffset   int64
	trDuration int64
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <dir>",
	Short: "Import transcript lines (--file) or append one segment (--text)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		var in session.TranscribeInput
		if trFile != "" {
			data, err := os.ReadFile(trFile)
			if err != nil {
				return fmt.Errorf("read transcript import: %w", err)
			}
			in.Import = data
		} else {
			in.Segment = &session.SegmentInput{Text: trText, OffsetMS: trOffset, DurationMS: trDuration}
		}
		res, err := d.Transcribe(in)
		if err != nil {
			return err
		}
		logger.Debug("transcript appended", "segments", res.Segments)
		fmt.Fprintf(cmd.OutOrStdout(), "transcribed: %s\n", res.Path)
		return nil
	},
}

func init() {
	f := transcribeCmd.Flags()
	f.StringVar(&trFile, "file", "", "JSONL file of transcript segments to import")
	f.StringVar(&trText, "text", "", "text of a single segment")
	f.Int64Var(&trOffset, "offset", 0, "segment offset in ms")
	f.Int64Var(&trDuration, "duration", 0, "segment duration in ms")
	transcribeCmd.MarkFlagsMutuallyExclusive("file", "text")
	transcribeCmd.MarkFlagsOneRequired("file", "text")
	rootCmd.AddCommand(transcribeCmd)
}
