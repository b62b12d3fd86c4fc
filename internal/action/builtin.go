package action

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danielwarnersmith/trace/internal/digest"
	"github.com/danielwarnersmith/trace/internal/session"
	"github.com/danielwarnersmith/trace/internal/validate"
)

// Built-in action ids.
const (
	GenerateDigest      = "generate_digest"
	TranscribeVoiceNote = "transcribe_voice_note"
	ValidateSession     = "validate_session"
)

// Transcriber turns a voice note's audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// PlaceholderText is what PlaceholderTranscriber writes.
const PlaceholderText = "[transcribed]"

// PlaceholderTranscriber stands in until a speech-to-text backend is wired.
type PlaceholderTranscriber struct{}

func (PlaceholderTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return PlaceholderText, ctx.Err()
}

// NewDefaultRegistry returns a registry with the built-in handlers. A nil
// transcriber uses PlaceholderTranscriber.
func NewDefaultRegistry(t Transcriber) *Registry {
	if t == nil {
		t = PlaceholderTranscriber{}
	}
	reg := NewRegistry()
	reg.Register(GenerateDigest, HandlerFunc(generateDigest))
	reg.Register(TranscribeVoiceNote, transcribeHandler{t: t})
	reg.Register(ValidateSession, HandlerFunc(validateSession))
	return reg
}

func generateDigest(ctx context.Context, d *session.Dir, inputs map[string]string) (map[string]any, error) {
	in, err := digest.Read(d)
	if err != nil {
		return nil, err
	}
	if err := d.WriteDigest(digest.Generate(in)); err != nil {
		return nil, err
	}
	return map[string]any{"digest_path": session.DigestFile, "markers": len(in.Markers)}, nil
}

type transcribeHandler struct {
	t Transcriber
}

func (h transcribeHandler) Run(ctx context.Context, d *session.Dir, inputs map[string]string) (map[string]any, error) {
	id := inputs["voice_note_id"]
	if id == "" {
		return nil, fmt.Errorf("missing voice_note_id input")
	}
	note, ok, err := d.VoiceNote(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: voice note %s", session.ErrUnknownID, id)
	}
	text, err := h.t.Transcribe(ctx, filepath.Join(d.Path(), filepath.FromSlash(note.MediaPath)))
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", id, err)
	}
	if err := d.UpdateVoiceNoteTranscript(id, text); err != nil {
		return nil, err
	}
	return map[string]any{"voice_note_id": id, "transcript_text": text}, nil
}

func validateSession(ctx context.Context, d *session.Dir, inputs map[string]string) (map[string]any, error) {
	report := validate.Run(d.Path(), d.Schemas())
	if !report.OK {
		msgs := make([]string, len(report.Issues))
		for i, issue := range report.Issues {
			msgs[i] = issue.String()
		}
		return nil, fmt.Errorf("session invalid: %s", strings.Join(msgs, "; "))
	}
	return map[string]any{"ok": true}, nil
}
