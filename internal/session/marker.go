package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielwarnersmith/trace/internal/jsonl"
)

// MarkerInput is a marker to append. ID is normally empty; the pending queue
// passes the id it assigned when the marker was buffered so that replays fold
// into one record.
type MarkerInput struct {
	ID          string
	OffsetMS    int64
	Source      Source
	Label       string
	Note        string
	Tags        []string
	VoiceNoteID string
}

// AddMarker appends one marker line and returns its id.
func (d *Dir) AddMarker(in MarkerInput) (string, error) {
	if in.OffsetMS < 0 {
		return "", fmt.Errorf("%w: marker offset %d is negative", ErrInvalidOffset, in.OffsetMS)
	}
	if in.Source == "" {
		in.Source = SourceUser
	}
	if !in.Source.Valid() {
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalidInput, in.Source)
	}
	doc, err := d.Doc()
	if err != nil {
		return "", err
	}
	if in.VoiceNoteID != "" {
		if _, ok, err := d.findVoiceNote(doc, in.VoiceNoteID); err != nil {
			return "", err
		} else if !ok {
			return "", fmt.Errorf("%w: voice note %s", ErrUnknownID, in.VoiceNoteID)
		}
	}

	id := in.ID
	if id == "" {
		id = d.newID()
	}
	m := Marker{
		ID:          id,
		OffsetMS:    in.OffsetMS,
		CreatedAt:   Timestamp(d.now()),
		Source:      in.Source,
		Label:       in.Label,
		Note:        in.Note,
		Tags:        cleanTags(in.Tags),
		VoiceNoteID: in.VoiceNoteID,
	}
	if err := jsonl.Append(d.join(doc.markersFile()), m); err != nil {
		return "", fmt.Errorf("failed to append marker: %w", err)
	}
	if err := d.commit(doc); err != nil {
		return "", err
	}
	return id, nil
}

func cleanTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Markers returns the folded marker list in first-appearance order.
func (d *Dir) Markers() ([]Marker, error) {
	doc, err := d.Doc()
	if err != nil {
		return nil, err
	}
	return d.markers(doc)
}

func (d *Dir) markers(doc *Doc) ([]Marker, error) {
	lines, _, err := readLog[Marker](d.join(doc.markersFile()))
	if err != nil {
		return nil, err
	}
	return jsonl.Fold(lines, MarkerKey), nil
}

// MarkerFilter narrows ListMarkers. Zero values match everything.
type MarkerFilter struct {
	Tag         string
	MinOffsetMS *int64
	MaxOffsetMS *int64
}

func (f MarkerFilter) match(m Marker) bool {
	if f.MinOffsetMS != nil && m.OffsetMS < *f.MinOffsetMS {
		return false
	}
	if f.MaxOffsetMS != nil && m.OffsetMS > *f.MaxOffsetMS {
		return false
	}
	if f.Tag == "" {
		return true
	}
	for _, t := range m.Tags {
		if strings.EqualFold(t, f.Tag) {
			return true
		}
	}
	return false
}

// ListMarkers returns folded markers matching f, sorted by offset. Markers at
// the same offset keep their log order.
func (d *Dir) ListMarkers(f MarkerFilter) ([]Marker, error) {
	all, err := d.Markers()
	if err != nil {
		return nil, err
	}
	out := make([]Marker, 0, len(all))
	for _, m := range all {
		if f.match(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OffsetMS < out[j].OffsetMS })
	return out, nil
}
