package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danielwarnersmith/trace/internal/jsonl"
	"github.com/danielwarnersmith/trace/internal/schema"
	"github.com/danielwarnersmith/trace/internal/ulid"
)

// Dir is a handle on one session directory. It holds no file descriptors and
// no cached document; every operation re-reads session.json.
type Dir struct {
	root    string
	now     func() time.Time
	newID   func() string
	schemas *schema.Cache
	title   string
}

// Option configures a Dir.
type Option func(*Dir)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dir) { d.now = now }
}

// WithIDs replaces the ULID generator.
func WithIDs(newID func() string) Option {
	return func(d *Dir) { d.newID = newID }
}

// WithSchemas sets the cache used to check imported transcript lines.
func WithSchemas(c *schema.Cache) Option {
	return func(d *Dir) { d.schemas = c }
}

// WithTitle sets the title written by Init. Other operations ignore it.
func WithTitle(title string) Option {
	return func(d *Dir) { d.title = title }
}

func newDir(path string, opts []Option) *Dir {
	d := &Dir{root: path, now: time.Now, newID: ulid.New}
	for _, opt := range opts {
		opt(d)
	}
	if d.schemas == nil {
		d.schemas = schema.NewEmbeddedCache()
	}
	return d
}

// Open returns a handle on an existing session directory.
func Open(path string, opts ...Option) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, path)
	}
	return newDir(path, opts), nil
}

// Path returns the session directory.
func (d *Dir) Path() string { return d.root }

// Schemas returns the schema cache the handle was opened with.
func (d *Dir) Schemas() *schema.Cache { return d.schemas }

// NewID returns a fresh identifier from the handle's generator.
func (d *Dir) NewID() string { return d.newID() }

// Now returns the current time from the handle's clock.
func (d *Dir) Now() time.Time { return d.now() }

// Doc reads the current session document.
func (d *Dir) Doc() (*Doc, error) { return ReadDoc(d.root) }

func (d *Dir) join(rel string) string { return filepath.Join(d.root, rel) }

// ActionsPath is the location of actions.jsonl.
func (d *Dir) ActionsPath() string { return d.join(ActionsFile) }

// DigestPath is the default location of digest.md.
func (d *Dir) DigestPath() string { return d.join(DigestFile) }

// Snapshot is a read-only view of a session: the document plus every log,
// folded by id. Lines that fail to decode are counted, not returned.
type Snapshot struct {
	Path       string
	Doc        *Doc
	Timeline   []TimelineEntry
	Markers    []Marker
	VoiceNotes []VoiceNote
	Transcript []TranscriptSegment
	Actions    []ActionRun
	BadLines   int
}

// Snapshot reads the document and all logs. Missing optional logs are empty.
func (d *Dir) Snapshot() (*Snapshot, error) {
	doc, err := d.Doc()
	if err != nil {
		return nil, err
	}
	s := &Snapshot{Path: d.root, Doc: doc}

	timeline, bad, err := readLog[TimelineEntry](d.join(doc.timelineFile()))
	if err != nil {
		return nil, err
	}
	s.Timeline = timeline
	s.BadLines += bad

	markers, bad, err := readLog[Marker](d.join(doc.markersFile()))
	if err != nil {
		return nil, err
	}
	s.Markers = jsonl.Fold(markers, MarkerKey)
	s.BadLines += bad

	notes, bad, err := readLog[VoiceNote](d.join(doc.voiceNotesFile()))
	if err != nil {
		return nil, err
	}
	s.VoiceNotes = jsonl.Fold(notes, VoiceNoteKey)
	s.BadLines += bad

	segments, bad, err := readLog[TranscriptSegment](d.join(doc.transcriptFile()))
	if err != nil {
		return nil, err
	}
	s.Transcript = jsonl.Fold(segments, SegmentKey)
	s.BadLines += bad

	runs, bad, err := readLog[ActionRun](d.ActionsPath())
	if err != nil {
		return nil, err
	}
	s.Actions = jsonl.Fold(runs, ActionRunKey)
	s.BadLines += bad

	return s, nil
}

func readLog[T any](path string) ([]T, int, error) {
	records, lineErrs, err := jsonl.ReadAll[T](path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return records, len(lineErrs), nil
}

// AppendActionRun appends one action run line to actions.jsonl.
func (d *Dir) AppendActionRun(run ActionRun) error {
	return jsonl.Append(d.ActionsPath(), run)
}

// commit bumps updated_at and writes doc back. Every mutation ends with
// exactly one commit, after its log appends.
func (d *Dir) commit(doc *Doc) error {
	doc.UpdatedAt = Timestamp(d.now())
	return WriteDoc(d.root, doc)
}
