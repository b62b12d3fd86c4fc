package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/digest"
	"github.com/danielwarnersmith/trace/internal/session"
)

var (
	markOffset    int64
	markLabel     string
	markNote      string
	markTags      []string
	markVoiceNote string

	listTag  string
	listMin  int64
	listMax  int64
	listJSON bool
)

var markCmd = &cobra.Command{
	Use:   "mark <dir>",
	Short: "Add a marker at an offset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		id, err := d.AddMarker(session.MarkerInput{
			OffsetMS:    markOffset,
			Label:       markLabel,
			Note:        markNote,
			Tags:        withDefaultTags(markTags),
			VoiceNoteID: markVoiceNote,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "marker: %s\n", id)
		return nil
	},
}

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Query markers",
}

var markersListCmd = &cobra.Command{
	Use:   "list <dir>",
	Short: "List effective markers sorted by offset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		markers, err := d.ListMarkers(session.MarkerFilter{
			Tag:         listTag,
			MinOffsetMS: optionalMS(cmd, "min", listMin),
			MaxOffsetMS: optionalMS(cmd, "max", listMax),
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if listJSON {
			enc := json.NewEncoder(out)
			for _, m := range markers {
				if err := enc.Encode(m); err != nil {
					return err
				}
			}
			return nil
		}
		if len(markers) == 0 {
			fmt.Fprintln(out, "(no markers)")
			return nil
		}
		for _, m := range markers {
			line := fmt.Sprintf("%7s  %s", digest.FormatOffset(m.OffsetMS), m.ID)
			if m.Label != "" {
				line += "  " + m.Label
			}
			if len(m.Tags) > 0 {
				line += "  [" + strings.Join(m.Tags, ", ") + "]"
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	f := markCmd.Flags()
	f.Int64Var(&markOffset, "offset", 0, "offset in ms from session start (required)")
	f.StringVar(&markLabel, "label", "", "short label")
	f.StringVar(&markNote, "note", "", "free-text note")
	f.StringArrayVar(&markTags, "tag", nil, "tag (repeatable)")
	f.StringVar(&markVoiceNote, "voice-note", "", "id of an existing voice note to link")
	markCmd.MarkFlagRequired("offset")
	rootCmd.AddCommand(markCmd)

	lf := markersListCmd.Flags()
	lf.StringVar(&listTag, "tag", "", "only markers carrying this tag (case-insensitive)")
	lf.Int64Var(&listMin, "min", 0, "minimum offset in ms")
	lf.Int64Var(&listMax, "max", 0, "maximum offset in ms")
	lf.BoolVar(&listJSON, "json", false, "print one JSON record per line")
	markersCmd.AddCommand(markersListCmd)
	rootCmd.AddCommand(markersCmd)
}
