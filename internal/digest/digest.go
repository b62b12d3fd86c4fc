// Package digest turns a session snapshot into a human-readable summary.
package digest

import (
	"sort"

	"github.com/danielwarnersmith/trace/internal/session"
)

// RecentActions is how many action runs a digest lists.
const RecentActions = 20

// Summary is the session header of a digest.
type Summary struct {
	ID         string         `json:"id"`
	Title      string         `json:"title,omitempty"`
	StartTime  string         `json:"start_time"`
	Status     session.Status `json:"status"`
	EndTime    string         `json:"end_time,omitempty"`
	DurationMS *int64         `json:"duration_ms,omitempty"`
}

// Input is everything a digest is rendered from.
type Input struct {
	Session    Summary                     `json:"session"`
	Timeline   []session.TimelineEntry     `json:"timeline"`
	Markers    []session.Marker            `json:"markers"`
	VoiceNotes []session.VoiceNote         `json:"voice_notes"`
	Transcript []session.TranscriptSegment `json:"transcript"`
	Actions    []session.ActionRun         `json:"actions"`
}

// FromSnapshot builds digest input. Markers are ordered by offset and only
// the most recent action runs are kept.
func FromSnapshot(s *session.Snapshot) *Input {
	doc := s.Doc
	in := &Input{
		Session: Summary{
			ID:         doc.ID,
			Title:      doc.Title,
			StartTime:  doc.StartTime,
			Status:     doc.Status,
			EndTime:    doc.EndTime,
			DurationMS: doc.DurationMS,
		},
		Timeline:   nonNil(s.Timeline),
		Markers:    nonNil(append([]session.Marker(nil), s.Markers...)),
		VoiceNotes: nonNil(s.VoiceNotes),
		Transcript: nonNil(s.Transcript),
		Actions:    nonNil(s.Actions),
	}
	sort.SliceStable(in.Markers, func(i, j int) bool { return in.Markers[i].OffsetMS < in.Markers[j].OffsetMS })
	if n := len(in.Actions); n > RecentActions {
		in.Actions = in.Actions[n-RecentActions:]
	}
	return in
}

// Read loads digest input straight from a session directory.
func Read(d *session.Dir) (*Input, error) {
	snap, err := d.Snapshot()
	if err != nil {
		return nil, err
	}
	return FromSnapshot(snap), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
