// Package session owns a session directory: the session.json document, the
// append-only logs next to it, and the mutation operations that keep them
// consistent.
//
// A session directory is written by one process at a time. Nothing here takes
// a lock; two writers racing on session.json lose updates (last writer wins).
package session

import (
	"time"
)

// Files inside a session directory.
const (
	DocFile        = "session.json"
	TimelineFile   = "timeline.jsonl"
	MarkersFile    = "markers.jsonl"
	VoiceNotesFile = "voice_notes.jsonl"
	TranscriptFile = "transcript.jsonl"
	ActionsFile    = "actions.jsonl"
	DigestFile     = "digest.md"
	MediaDir       = "media"
)

// Status is the session lifecycle state. It only moves active -> closed.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusClosed
}

// MediaKind classifies a media payload.
type MediaKind string

const (
	MediaAudio  MediaKind = "audio"
	MediaVideo  MediaKind = "video"
	MediaScreen MediaKind = "screen"
	MediaOther  MediaKind = "other"
)

func (k MediaKind) Valid() bool {
	switch k {
	case MediaAudio, MediaVideo, MediaScreen, MediaOther:
		return true
	}
	return false
}

// Doc is the session.json document. It is always read and written whole.
type Doc struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	Status          Status  `json:"status"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time,omitempty"`
	DurationMS      *int64  `json:"duration_ms,omitempty"`
	TimelinePath    string  `json:"timeline_path"`
	MarkersPath     string  `json:"markers_path"`
	TranscriptPath  *string `json:"transcript_path"`
	VoiceNotesPath  *string `json:"voice_notes_path"`
	DigestPath      *string `json:"digest_path"`
	TranscribedAt   string  `json:"transcribed_at,omitempty"`
	DigestUpdatedAt string  `json:"digest_updated_at,omitempty"`
	Media           []Media `json:"media"`
}

// Media describes one payload copied under media/.
type Media struct {
	ID            string    `json:"id"`
	Kind          MediaKind `json:"kind"`
	Path          string    `json:"path"`
	MIME          string    `json:"mime"`
	CreatedAt     string    `json:"created_at"`
	StartOffsetMS int64     `json:"start_offset_ms"`
	DurationMS    *int64    `json:"duration_ms,omitempty"`
}

// HasAudio reports whether any media item can be transcribed.
func (d *Doc) HasAudio() bool {
	for _, m := range d.Media {
		if m.Kind == MediaAudio || m.Kind == MediaVideo {
			return true
		}
	}
	return false
}

// timelineFile and friends resolve log locations, falling back to the
// default names when a document predates a path field.
func (d *Doc) timelineFile() string {
	if d.TimelinePath != "" {
		return d.TimelinePath
	}
	return TimelineFile
}

func (d *Doc) markersFile() string {
	if d.MarkersPath != "" {
		return d.MarkersPath
	}
	return MarkersFile
}

func (d *Doc) voiceNotesFile() string {
	if d.VoiceNotesPath != nil && *d.VoiceNotesPath != "" {
		return *d.VoiceNotesPath
	}
	return VoiceNotesFile
}

func (d *Doc) transcriptFile() string {
	if d.TranscriptPath != nil && *d.TranscriptPath != "" {
		return *d.TranscriptPath
	}
	return TranscriptFile
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t as ISO-8601 UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses an ISO-8601 timestamp with optional fraction.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// wallTime is the wall-clock moment an offset into the session stands for.
func wallTime(start time.Time, offsetMS int64) string {
	return Timestamp(start.Add(time.Duration(offsetMS) * time.Millisecond))
}

func ptr[T any](v T) *T { return &v }
