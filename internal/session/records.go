package session

// TimelineKind is the closed set of timeline events.
type TimelineKind string

const (
	KindSessionStart TimelineKind = "session_start"
	KindSessionEnd   TimelineKind = "session_end"
	KindMediaStart   TimelineKind = "media_start"
	KindMediaEnd     TimelineKind = "media_end"
)

func (k TimelineKind) Valid() bool {
	switch k {
	case KindSessionStart, KindSessionEnd, KindMediaStart, KindMediaEnd:
		return true
	}
	return false
}

// Source says who produced a record.
type Source string

const (
	SourceUser   Source = "user"
	SourceSystem Source = "system"
)

func (s Source) Valid() bool {
	return s == SourceUser || s == SourceSystem
}

// ActionStatus is the state of one action run line.
type ActionStatus string

const (
	ActionStarted   ActionStatus = "started"
	ActionSucceeded ActionStatus = "succeeded"
	ActionFailed    ActionStatus = "failed"
)

// Terminal reports whether s ends a run.
func (s ActionStatus) Terminal() bool {
	return s == ActionSucceeded || s == ActionFailed
}

// TimelineEntry is one line of timeline.jsonl.
type TimelineEntry struct {
	ID        string       `json:"id"`
	Kind      TimelineKind `json:"kind"`
	OffsetMS  int64        `json:"offset_ms"`
	WallTime  string       `json:"wall_time"`
	CreatedAt string       `json:"created_at"`
	Source    Source       `json:"source"`
}

// Marker is one line of markers.jsonl. A later line with the same ID
// replaces earlier ones.
type Marker struct {
	ID          string   `json:"id"`
	OffsetMS    int64    `json:"offset_ms"`
	CreatedAt   string   `json:"created_at"`
	Source      Source   `json:"source"`
	Label       string   `json:"label,omitempty"`
	Note        string   `json:"note,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	VoiceNoteID string   `json:"voice_note_id,omitempty"`
}

// VoiceNote is one line of voice_notes.jsonl.
type VoiceNote struct {
	ID             string `json:"id"`
	CreatedAt      string `json:"created_at"`
	MediaPath      string `json:"media_path"`
	OffsetMS       int64  `json:"offset_ms"`
	DurationMS     int64  `json:"duration_ms"`
	TranscriptText string `json:"transcript_text,omitempty"`
	MarkerID       string `json:"marker_id,omitempty"`
}

// TranscriptSegment is one line of transcript.jsonl.
type TranscriptSegment struct {
	ID         string `json:"id"`
	OffsetMS   int64  `json:"offset_ms"`
	DurationMS int64  `json:"duration_ms"`
	Text       string `json:"text"`
}

// ActionRun is one line of actions.jsonl. A run is a started line followed
// by one terminal line sharing the same ID.
type ActionRun struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	CreatedAt string            `json:"created_at"`
	Status    ActionStatus      `json:"status"`
	Inputs    map[string]string `json:"inputs,omitempty"`
	Outputs   map[string]any    `json:"outputs,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Key functions for jsonl.Fold.
func TimelineKey(e TimelineEntry) string { return e.ID }
func MarkerKey(m Marker) string { return m.ID }
func VoiceNoteKey(v VoiceNote) string { return v.ID }
func SegmentKey(s TranscriptSegment) string { return s.ID }
func ActionRunKey(r ActionRun) string { return r.ID }
