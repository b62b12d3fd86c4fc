package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielwarnersmith/trace/internal/jsonl"
)

// VoiceNoteInput is a voice note to append. Exactly one of MediaFilename (a
// file already under media/) or MediaSource (a path to copy in) must be set.
type VoiceNoteInput struct {
	ID             string
	OffsetMS       int64
	DurationMS     int64
	MediaFilename  string
	MediaSource    string
	TranscriptText string
	MarkerID       string
}

// AddVoiceNote appends one voice note line and returns its id. When MarkerID
// is set, the marker is re-appended with voice_note_id pointing back here.
func (d *Dir) AddVoiceNote(in VoiceNoteInput) (string, error) {
	if in.OffsetMS < 0 {
		return "", fmt.Errorf("%w: voice note offset %d is negative", ErrInvalidOffset, in.OffsetMS)
	}
	if in.DurationMS < 0 {
		return "", fmt.Errorf("%w: voice note duration %d is negative", ErrInvalidOffset, in.DurationMS)
	}
	switch {
	case in.MediaFilename == "" && in.MediaSource == "":
		return "", fmt.Errorf("%w: a media filename or media source is required", ErrInvalidInput)
	case in.MediaFilename != "" && in.MediaSource != "":
		return "", fmt.Errorf("%w: give a media filename or a media source, not both", ErrInvalidInput)
	}

	doc, err := d.Doc()
	if err != nil {
		return "", err
	}

	var mediaPath string
	if in.MediaFilename != "" {
		if in.MediaFilename != filepath.Base(in.MediaFilename) || in.MediaFilename == "." || in.MediaFilename == ".." {
			return "", fmt.Errorf("%w: media filename %q must be a bare file name", ErrInvalidInput, in.MediaFilename)
		}
		mediaPath = MediaDir + "/" + in.MediaFilename
		if _, err := os.Stat(d.join(mediaPath)); err != nil {
			return "", fmt.Errorf("%w: %s does not exist", ErrInvalidInput, mediaPath)
		}
	} else if err := requireFile(in.MediaSource); err != nil {
		return "", err
	}

	var linked Marker
	if in.MarkerID != "" {
		markers, err := d.markers(doc)
		if err != nil {
			return "", err
		}
		m, ok := jsonl.Last(markers, MarkerKey, in.MarkerID)
		if !ok {
			return "", fmt.Errorf("%w: marker %s", ErrUnknownID, in.MarkerID)
		}
		linked = m
	}

	id := in.ID
	if id == "" {
		id = d.newID()
	}
	if in.MediaSource != "" {
		mediaPath = MediaDir + "/" + id + strings.ToLower(filepath.Ext(in.MediaSource))
		if err := CopyFile(in.MediaSource, d.join(mediaPath)); err != nil {
			return "", err
		}
	}

	ts := Timestamp(d.now())
	note := VoiceNote{
		ID:             id,
		CreatedAt:      ts,
		MediaPath:      mediaPath,
		OffsetMS:       in.OffsetMS,
		DurationMS:     in.DurationMS,
		TranscriptText: in.TranscriptText,
		MarkerID:       in.MarkerID,
	}
	if err := jsonl.Append(d.join(doc.voiceNotesFile()), note); err != nil {
		return "", fmt.Errorf("failed to append voice note: %w", err)
	}
	if in.MarkerID != "" {
		linked.VoiceNoteID = id
		if err := jsonl.Append(d.join(doc.markersFile()), linked); err != nil {
			return "", fmt.Errorf("failed to link marker: %w", err)
		}
	}

	if doc.VoiceNotesPath == nil {
		doc.VoiceNotesPath = ptr(VoiceNotesFile)
	}
	if err := d.commit(doc); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateVoiceNoteTranscript re-appends voice note id with new transcript text.
func (d *Dir) UpdateVoiceNoteTranscript(id, text string) error {
	doc, err := d.Doc()
	if err != nil {
		return err
	}
	note, ok, err := d.findVoiceNote(doc, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: voice note %s", ErrUnknownID, id)
	}
	note.TranscriptText = text
	if err := jsonl.Append(d.join(doc.voiceNotesFile()), note); err != nil {
		return fmt.Errorf("failed to append voice note: %w", err)
	}
	if doc.VoiceNotesPath == nil {
		doc.VoiceNotesPath = ptr(VoiceNotesFile)
	}
	return d.commit(doc)
}

// VoiceNote returns the current state of voice note id.
func (d *Dir) VoiceNote(id string) (VoiceNote, bool, error) {
	doc, err := d.Doc()
	if err != nil {
		return VoiceNote{}, false, err
	}
	return d.findVoiceNote(doc, id)
}

func (d *Dir) findVoiceNote(doc *Doc, id string) (VoiceNote, bool, error) {
	notes, _, err := readLog[VoiceNote](d.join(doc.voiceNotesFile()))
	if err != nil {
		return VoiceNote{}, false, err
	}
	note, ok := jsonl.Last(notes, VoiceNoteKey, id)
	return note, ok, nil
}
