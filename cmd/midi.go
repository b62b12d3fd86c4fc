package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/midi"
	"github.com/danielwarnersmith/trace/internal/session"
)

var (
	midiOffset int64
	midiInput  string
)

var midiCmd = &cobra.Command{
	Use:   "midi",
	Short: "Turn MIDI Control-Change messages into markers",
}

var midiDecodeCmd = &cobra.Command{
	Use:   "decode <hex-bytes>...",
	Short: "Decode a raw message, e.g. `trace midi decode B0 14 7F`",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := decodeArgs(args)
		if err != nil {
			return err
		}
		m, err := categoryMap()
		if err != nil {
			return err
		}
		category, _ := m.Lookup(cc.Channel, cc.Controller)
		out, err := json.Marshal(struct {
			midi.CC
			Category midi.Category `json:"category,omitempty"`
		}{cc, category})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var midiMarkCmd = &cobra.Command{
	Use:   "mark <dir> <hex-bytes>...",
	Short: "Decode a message and add a system marker tagged with its category",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := decodeArgs(args[1:])
		if err != nil {
			return err
		}
		m, err := categoryMap()
		if err != nil {
			return err
		}
		category, ok := m.Lookup(cc.Channel, cc.Controller)
		if !ok {
			return fmt.Errorf("no category mapped for %s", midi.Key(cc.Channel, cc.Controller))
		}
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		offset := midiOffset
		if !cmd.Flags().Changed("offset") {
			if offset, err = elapsedMS(d); err != nil {
				return err
			}
		}
		id, err := addMIDIMarker(d, offset, category)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "marker: %s (%s)\n", id, category)
		return nil
	},
}

var midiListenCmd = &cobra.Command{
	Use:   "listen <dir>",
	Short: "Read a raw MIDI stream and mark every mapped Control-Change press",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := categoryMap()
		if err != nil {
			return err
		}
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		in := os.Stdin
		if midiInput != "" && midiInput != "-" {
			f, err := os.Open(midiInput)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return midi.ReadStream(in, func(cc midi.CC) error {
			category, ok := m.Lookup(cc.Channel, cc.Controller)
			if !ok || cc.Value == 0 {
				logger.Debug("midi message ignored", "channel", cc.Channel, "controller", cc.Controller, "value", cc.Value)
				return nil
			}
			offset, err := elapsedMS(d)
			if err != nil {
				return err
			}
			id, err := addMIDIMarker(d, offset, category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marker: %s (%s)\n", id, category)
			return nil
		})
	},
}

func decodeArgs(args []string) (midi.CC, error) {
	raw := strings.ReplaceAll(strings.Join(args, ""), "0x", "")
	msg, err := hex.DecodeString(raw)
	if err != nil {
		return midi.CC{}, fmt.Errorf("%w: bytes must be hex: %v", session.ErrInvalidInput, err)
	}
	cc, ok := midi.Decode(msg)
	if !ok {
		return midi.CC{}, fmt.Errorf("%w: not a Control-Change message: % X", session.ErrInvalidInput, msg)
	}
	return cc, nil
}

func addMIDIMarker(d *session.Dir, offset int64, category midi.Category) (string, error) {
	return d.AddMarker(session.MarkerInput{
		OffsetMS: offset,
		Source:   session.SourceSystem,
		Label:    string(category),
		Tags:     []string{string(category)},
	})
}

// elapsedMS is the time since the session started, clamped at zero.
func elapsedMS(d *session.Dir) (int64, error) {
	doc, err := d.Doc()
	if err != nil {
		return 0, err
	}
	start, err := session.ParseTimestamp(doc.StartTime)
	if err != nil {
		return 0, fmt.Errorf("%w: start_time %q", session.ErrInvalidInput, doc.StartTime)
	}
	ms := d.Now().Sub(start).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return ms, nil
}

func init() {
	midiMarkCmd.Flags().Int64Var(&midiOffset, "offset", 0, "offset in ms (default: time since session start)")
	midiListenCmd.Flags().StringVar(&midiInput, "input", "-", "raw MIDI stream, e.g. /dev/snd/midiC1D0 (- for stdin)")
	midiCmd.AddCommand(midiDecodeCmd, midiMarkCmd, midiListenCmd)
	rootCmd.AddCommand(midiCmd)
}
