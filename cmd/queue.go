package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/pending"
)

var (
	qOffset   int64
	qLabel    string
	qNote     string
	qTags     []string
	qDuration int64
	qText     string
	qMarker   string
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Buffer markers and voice notes offline and flush them later",
}

var queueMarkCmd = &cobra.Command{
	Use:   "mark <dir>",
	Short: "Queue a marker for a session that may not be reachable yet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue()
		if err != nil {
			return err
		}
		e, err := q.AddMarker(args[0], pending.Marker{
			OffsetMS: qOffset,
			Label:    qLabel,
			Note:     qNote,
			Tags:     withDefaultTags(qTags),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued: marker %s (entry %s)\n", e.RecordID(), e.QueueID)
		return nil
	},
}

var queueVoiceNoteCmd = &cobra.Command{
	Use:   "voice-note <dir> <audio-file>",
	Short: "Queue a voice note; the audio is staged in the queue directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue()
		if err != nil {
			return err
		}
		e, err := q.AddVoiceNote(args[0], args[1], pending.VoiceNote{
			OffsetMS:       qOffset,
			DurationMS:     qDuration,
			TranscriptText: qText,
			MarkerID:       qMarker,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued: voice-note %s (entry %s)\n", e.RecordID(), e.QueueID)
		return nil
	},
}

var queueFlushCmd = &cobra.Command{
	Use:   "flush <dir>",
	Short: "Write queued entries into the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue()
		if err != nil {
			return err
		}
		res, err := q.Flush(args[0])
		if err != nil {
			return err
		}
		printFlush(cmd, res)
		if res.Failed > 0 {
			return fmt.Errorf("%d queued entries could not be written", res.Failed)
		}
		return nil
	},
}

var queueCountCmd = &cobra.Command{
	Use:   "count [dir]",
	Short: "Print how many entries are queued, optionally for one session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue()
		if err != nil {
			return err
		}
		var n int
		if len(args) == 1 {
			n, err = q.CountFor(args[0])
		} else {
			n, err = q.Count()
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pending: %d\n", n)
		return nil
	},
}

var queueWatchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Flush queued entries whenever the session appears or changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger.Info("watching session", "dir", args[0], "queue", q.Dir())
		return pending.Watch(ctx, q, args[0], func(res pending.FlushResult, err error) {
			if err != nil {
				logger.Error("flush failed", "err", err)
				return
			}
			printFlush(cmd, res)
		})
	},
}

func printFlush(cmd *cobra.Command, res pending.FlushResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "flushed: %d, failed: %d\n", res.Flushed, res.Failed)
	for _, err := range res.Errors {
		logger.Warn("queued entry not written", "err", err)
	}
}

func init() {
	mf := queueMarkCmd.Flags()
	mf.Int64Var(&qOffset, "offset", 0, "offset in ms from session start (required)")
	mf.StringVar(&qLabel, "label", "", "short label")
	mf.StringVar(&qNote, "note", "", "free-text note")
	mf.StringArrayVar(&qTags, "tag", nil, "tag (repeatable)")
	queueMarkCmd.MarkFlagRequired("offset")

	vf := queueVoiceNoteCmd.Flags()
	vf.Int64Var(&qOffset, "offset", 0, "offset in ms from session start (required)")
	vf.Int64Var(&qDuration, "duration", 0, "duration in ms (required)")
	vf.StringVar(&qText, "text", "", "transcript text")
	vf.StringVar(&qMarker, "marker", "", "id of a marker to link to this note")
	queueVoiceNoteCmd.MarkFlagRequired("offset")
	queueVoiceNoteCmd.MarkFlagRequired("duration")

	queueCmd.AddCommand(queueMarkCmd, queueVoiceNoteCmd, queueFlushCmd, queueCountCmd, queueWatchCmd)
	rootCmd.AddCommand(queueCmd)
}
