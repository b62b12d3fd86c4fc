package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/session"
)

var (
	vnOffset   int64
	vnDuration int64
	vnMedia    string
	vnFile     string
	vnText     string
	vnMarker   string
)

var voiceNoteCmd = &cobra.Command{
	Use:   "voice-note",
	Short: "Record and update voice notes",
}

var voiceNoteAddCmd = &cobra.Command{
	Use:   "add <dir>",
	Short: "Add a voice note from a file in media/ (--media) or an external file (--file)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		id, err := d.AddVoiceNote(session.VoiceNoteInput{
			OffsetMS:       vnOffset,
			DurationMS:     vnDuration,
			MediaFilename:  vnMedia,
			MediaSource:    vnFile,
			TranscriptText: vnText,
			MarkerID:       vnMarker,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "voice-note: %s\n", id)
		return nil
	},
}

var voiceNoteTranscriptCmd = &cobra.Command{
	Use:   "transcript <dir> <voice-note-id> <text>",
	Short: "Replace the transcript text of a voice note",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		if err := d.UpdateVoiceNoteTranscript(args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "voice-note: %s transcript updated\n", args[1])
		return nil
	},
}

func init() {
	f := voiceNoteAddCmd.Flags()
	f.Int64Var(&vnOffset, "offset", 0, "offset in ms from session start (required)")
	f.Int64Var(&vnDuration, "duration", 0, "duration in ms (required)")
	f.StringVar(&vnMedia, "media", "", "file name already present under media/")
	f.StringVar(&vnFile, "file", "", "audio file to copy into media/")
	f.StringVar(&vnText, "text", "", "transcript text")
	f.StringVar(&vnMarker, "marker", "", "id of a marker to link to this note")
	voiceNoteAddCmd.MarkFlagRequired("offset")
	voiceNoteAddCmd.MarkFlagRequired("duration")
	voiceNoteAddCmd.MarkFlagsMutuallyExclusive("media", "file")
	voiceNoteAddCmd.MarkFlagsOneRequired("media", "file")

	voiceNoteCmd.AddCommand(voiceNoteAddCmd, voiceNoteTranscriptCmd)
	rootCmd.AddCommand(voiceNoteCmd)
}
