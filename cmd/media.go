package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/session"
)

var (
	mediaFile     string
	mediaKind     string
	mediaMIME     string
	mediaOffset   int64
	mediaDuration int64
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Attach media to a session",
}

var mediaAddCmd = &cobra.Command{
	Use:   "add <dir>",
	Short: "Copy a media file into the session and log it on the timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		res, err := d.AddMedia(session.MediaInput{
			SourcePath:    mediaFile,
			Kind:          session.MediaKind(mediaKind),
			MIME:          mediaMIME,
			StartOffsetMS: mediaOffset,
			DurationMS:    optionalMS(cmd, "duration", mediaDuration),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "media: %s (%s)\n", res.ID, res.Path)
		return nil
	},
}

func init() {
	f := mediaAddCmd.Flags()
	f.StringVar(&mediaFile, "file", "", "media file to copy (required)")
	f.StringVar(&mediaKind, "kind", "", "audio, video, screen or other (required)")
	f.StringVar(&mediaMIME, "mime", "", "MIME type (required)")
	f.Int64Var(&mediaOffset, "offset", 0, "start offset in ms from session start")
	f.Int64Var(&mediaDuration, "duration", 0, "duration in ms, if known")
	mediaAddCmd.MarkFlagRequired("file")
	mediaAddCmd.MarkFlagRequired("kind")
	mediaAddCmd.MarkFlagRequired("mime")
	mediaCmd.AddCommand(mediaAddCmd)
	rootCmd.AddCommand(mediaCmd)
}
