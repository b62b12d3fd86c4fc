// Package pending buffers markers and voice notes while their target session
// directory is unreachable and replays them once it is.
//
// Every entry is persisted to queue.json before any write to the session is
// attempted. Record ids are assigned when an entry is queued, so a replay
// that partially succeeded earlier folds into the same record.
package pending

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielwarnersmith/trace/internal/session"
	"github.com/danielwarnersmith/trace/internal/ulid"
)

// Files inside the queue directory.
const (
	QueueFile = "queue.json"
	AudioDir  = "audio"
)

const queueVersion = 1

// Kind says which operation an entry replays.
type Kind string

const (
	KindMarker    Kind = "marker"
	KindVoiceNote Kind = "voice_note"
)

// Marker is a buffered marker.
type Marker struct {
	ID       string         `json:"id"`
	OffsetMS int64          `json:"offset_ms"`
	Source   session.Source `json:"source,omitempty"`
	Label    string         `json:"label,omitempty"`
	Note     string         `json:"note,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
}

// VoiceNote is a buffered voice note. Audio is the staged copy, relative to
// the queue directory.
type VoiceNote struct {
	ID             string `json:"id"`
	OffsetMS       int64  `json:"offset_ms"`
	DurationMS     int64  `json:"duration_ms"`
	Audio          string `json:"audio"`
	TranscriptText string `json:"transcript_text,omitempty"`
	MarkerID       string `json:"marker_id,omitempty"`
}

// Entry is one queued mutation.
type Entry struct {
	QueueID   string     `json:"queue_id"`
	Kind      Kind       `json:"kind"`
	Session   string     `json:"session"`
	QueuedAt  string     `json:"queued_at"`
	Attempts  int        `json:"attempts,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Marker    *Marker    `json:"marker,omitempty"`
	VoiceNote *VoiceNote `json:"voice_note,omitempty"`
}

// RecordID is the marker or voice note id the entry will be written with.
func (e Entry) RecordID() string {
	switch {
	case e.Marker != nil:
		return e.Marker.ID
	case e.VoiceNote != nil:
		return e.VoiceNote.ID
	}
	return ""
}

type file struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Queue is a durable ordered list of entries stored in one directory.
type Queue struct {
	mu     sync.Mutex
	dir    string
	now    func() time.Time
	newID  func() string
	opts   []session.Option
	logger *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces time.Now for queued_at stamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithSessionOptions passes options to session.Open during a flush.
func WithSessionOptions(opts ...session.Option) Option {
	return func(q *Queue) { q.opts = append(q.opts, opts...) }
}

// WithLogger sets the logger for flush diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Open returns the queue stored in dir, creating the directory if needed.
func Open(dir string, opts ...Option) (*Queue, error) {
	if err := os.MkdirAll(filepath.Join(dir, AudioDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}
	q := &Queue{dir: dir, now: time.Now, newID: ulid.New, logger: slog.Default()}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Dir returns the queue directory.
func (q *Queue) Dir() string { return q.dir }

func (q *Queue) load() ([]Entry, error) {
	data, err := os.ReadFile(filepath.Join(q.dir, QueueFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pending queue: %w", err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pending queue: %w", err)
	}
	return f.Entries, nil
}

func (q *Queue) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(file{Version: queueVersion, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode pending queue: %w", err)
	}
	return session.WriteFileAtomic(filepath.Join(q.dir, QueueFile), append(data, '\n'))
}

// Entries returns every queued entry in order.
func (q *Queue) Entries() ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// Count returns the number of queued entries.
func (q *Queue) Count() (int, error) {
	entries, err := q.Entries()
	return len(entries), err
}

// CountFor returns the number of entries targeting sessionPath.
func (q *Queue) CountFor(sessionPath string) (int, error) {
	entries, err := q.Entries()
	if err != nil {
		return 0, err
	}
	target := normalize(sessionPath)
	n := 0
	for _, e := range entries {
		if e.Session == target {
			n++
		}
	}
	return n, nil
}

func (q *Queue) push(e Entry) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, err := q.load()
	if err != nil {
		return Entry{}, err
	}
	if err := q.save(append(entries, e)); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (q *Queue) newEntry(kind Kind, sessionPath string) Entry {
	return Entry{
		QueueID:  uuid.NewString(),
		Kind:     kind,
		Session:  normalize(sessionPath),
		QueuedAt: session.Timestamp(q.now()),
	}
}

// AddMarker queues a marker for sessionPath.
func (q *Queue) AddMarker(sessionPath string, m Marker) (Entry, error) {
	if m.OffsetMS < 0 {
		return Entry{}, fmt.Errorf("%w: marker offset %d is negative", session.ErrInvalidOffset, m.OffsetMS)
	}
	if m.ID == "" {
		m.ID = q.newID()
	}
	e := q.newEntry(KindMarker, sessionPath)
	e.Marker = &m
	return q.push(e)
}

// AddVoiceNote stages audioPath in the queue and queues a voice note for
// sessionPath.
func (q *Queue) AddVoiceNote(sessionPath, audioPath string, v VoiceNote) (Entry, error) {
	if v.OffsetMS < 0 || v.DurationMS < 0 {
		return Entry{}, fmt.Errorf("%w: voice note offset and duration must be non-negative", session.ErrInvalidOffset)
	}
	if v.ID == "" {
		v.ID = q.newID()
	}
	e := q.newEntry(KindVoiceNote, sessionPath)
	v.Audio = filepath.ToSlash(filepath.Join(AudioDir, e.QueueID+strings.ToLower(filepath.Ext(audioPath))))
	if err := session.CopyFile(audioPath, filepath.Join(q.dir, filepath.FromSlash(v.Audio))); err != nil {
		return Entry{}, err
	}
	e.VoiceNote = &v
	out, err := q.push(e)
	if err != nil {
		os.Remove(filepath.Join(q.dir, filepath.FromSlash(v.Audio)))
	}
	return out, err
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
