// Package validate audits a session directory. It re-derives every invariant
// the session operations maintain and reports all violations it finds.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielwarnersmith/trace/internal/jsonl"
	"github.com/danielwarnersmith/trace/internal/schema"
	"github.com/danielwarnersmith/trace/internal/session"
)

// Issue is one violation, located by the file (relative to the session
// directory) it was found in.
type Issue struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

func (i Issue) String() string { return i.File + ": " + i.Message }

// Report is the outcome of Run. OK is true iff Issues is empty.
type Report struct {
	OK     bool    `json:"ok"`
	Issues []Issue `json:"issues"`
}

type checker struct {
	root    string
	schemas *schema.Cache
	issues  []Issue
}

func (c *checker) add(file, format string, args ...any) {
	c.issues = append(c.issues, Issue{File: file, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(c.root, rel))
	return err == nil
}

// Run validates the session at dir. It never writes and never stops at the
// first problem. Running it twice over an unchanged directory yields the same
// report.
func Run(dir string, schemas *schema.Cache) Report {
	c := &checker{root: dir, schemas: schemas, issues: []Issue{}}
	c.run()
	return Report{OK: len(c.issues) == 0, Issues: c.issues}
}

func (c *checker) run() {
	doc, ok := c.checkDoc()
	if !ok {
		return
	}

	timelineRel := orDefault(doc.TimelinePath, session.TimelineFile)
	markersRel := orDefault(doc.MarkersPath, session.MarkersFile)

	timeline := readLog[session.TimelineEntry](c, timelineRel, schema.Timeline, true)
	checkNonDecreasing(c, timelineRel, "timeline", timeline, func(e session.TimelineEntry) int64 { return e.OffsetMS })

	markers := readLog[session.Marker](c, markersRel, schema.Marker, true)

	var segments []session.TranscriptSegment
	if doc.TranscriptPath != nil {
		rel := *doc.TranscriptPath
		segments = readLog[session.TranscriptSegment](c, rel, schema.Transcript, true)
		checkNonDecreasing(c, rel, "transcript", segments, func(s session.TranscriptSegment) int64 { return s.OffsetMS })
	}

	voiceNotesRel := session.VoiceNotesFile
	var notes []session.VoiceNote
	if doc.VoiceNotesPath != nil {
		voiceNotesRel = *doc.VoiceNotesPath
		notes = readLog[session.VoiceNote](c, voiceNotesRel, schema.VoiceNote, true)
	}

	if doc.DigestPath != nil && !c.exists(*doc.DigestPath) {
		c.add(*doc.DigestPath, "missing file")
	}

	runs := readLog[session.ActionRun](c, session.ActionsFile, schema.Actions, false)

	c.checkLifecycle(doc, timelineRel, timeline)
	c.checkMedia(doc)
	c.checkReferences(markersRel, voiceNotesRel, doc.VoiceNotesPath != nil, markers, notes)
	c.checkActionRuns(runs)
}

// checkDoc reads session.json. The boolean is false when nothing else can be
// checked.
func (c *checker) checkDoc() (*session.Doc, bool) {
	data, err := os.ReadFile(filepath.Join(c.root, session.DocFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.add(session.DocFile, "missing file")
		} else {
			c.add(session.DocFile, "unreadable: %v", err)
		}
		return nil, false
	}
	if !json.Valid(data) {
		c.add(session.DocFile, "invalid JSON")
		return nil, false
	}
	if res := c.schemas.Validate(schema.Session, data); !res.OK {
		c.add(session.DocFile, "%s", res)
	}
	var doc session.Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		c.add(session.DocFile, "cannot decode document: %v", err)
		return nil, false
	}
	return &doc, true
}

// readLog checks every line of rel against its schema and returns the lines
// that decoded, in file order.
func readLog[T any](c *checker, rel string, name schema.Name, required bool) []T {
	lines, err := jsonl.ReadLines(filepath.Join(c.root, rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if required {
				c.add(rel, "missing file")
			}
			return nil
		}
		c.add(rel, "unreadable: %v", err)
		return nil
	}
	out := make([]T, 0, len(lines))
	for _, l := range lines {
		if !json.Valid(l.Raw) {
			c.add(rel, "line %d: invalid JSON", l.Number)
			continue
		}
		if res := c.schemas.Validate(name, l.Raw); !res.OK {
			c.add(rel, "line %d: %s", l.Number, res)
		}
		var v T
		if err := json.Unmarshal(l.Raw, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func checkNonDecreasing[T any](c *checker, rel, label string, entries []T, offset func(T) int64) {
	for i := 1; i < len(entries); i++ {
		if offset(entries[i]) < offset(entries[i-1]) {
			c.add(rel, "%s offset_ms out of order at entry %d (%d after %d)",
				label, i+1, offset(entries[i]), offset(entries[i-1]))
		}
	}
}

func (c *checker) checkLifecycle(doc *session.Doc, rel string, timeline []session.TimelineEntry) {
	if len(timeline) == 0 {
		c.add(rel, "missing session_start")
	} else if first := timeline[0]; first.Kind != session.KindSessionStart {
		c.add(rel, "first entry is %s, want session_start", first.Kind)
	} else if first.OffsetMS != 0 {
		c.add(rel, "session_start offset_ms must be 0, got %d", first.OffsetMS)
	}

	var ends []session.TimelineEntry
	for _, e := range jsonl.Fold(timeline, session.TimelineKey) {
		if e.Kind == session.KindSessionEnd {
			ends = append(ends, e)
		}
	}

	switch doc.Status {
	case session.StatusClosed:
		if doc.EndTime == "" {
			c.add(session.DocFile, "closed session missing end_time")
		}
		if doc.DurationMS == nil {
			c.add(session.DocFile, "closed session missing duration_ms")
		}
		switch {
		case len(ends) == 0:
			c.add(rel, "missing session_end")
		case len(ends) > 1:
			c.add(rel, "found %d session_end entries, want 1", len(ends))
		case doc.DurationMS != nil && ends[0].OffsetMS != *doc.DurationMS:
			c.add(rel, "session_end offset_ms %d must equal session duration_ms %d", ends[0].OffsetMS, *doc.DurationMS)
		}
	case session.StatusActive:
		if doc.EndTime != "" {
			c.add(session.DocFile, "active session has end_time")
		}
		if doc.DurationMS != nil {
			c.add(session.DocFile, "active session has duration_ms")
		}
		if len(ends) > 0 {
			c.add(rel, "session_end logged but session is still active")
		}
	}
}

func (c *checker) checkMedia(doc *session.Doc) {
	for i, m := range doc.Media {
		if m.Path == "" {
			continue
		}
		if !inside(m.Path) {
			c.add(session.DocFile, "media path escapes session directory at index %d: %s", i+1, m.Path)
			continue
		}
		if !c.exists(m.Path) {
			c.add(session.DocFile, "media file missing at index %d: %s", i+1, m.Path)
		}
	}
}

func (c *checker) checkReferences(markersRel, notesRel string, notesPinned bool, markers []session.Marker, notes []session.VoiceNote) {
	markers = jsonl.Fold(markers, session.MarkerKey)
	notes = jsonl.Fold(notes, session.VoiceNoteKey)

	markerIDs := make(map[string]bool, len(markers))
	for _, m := range markers {
		markerIDs[m.ID] = true
	}
	noteIDs := make(map[string]bool, len(notes))
	for _, n := range notes {
		noteIDs[n.ID] = true
	}

	for _, m := range markers {
		if m.VoiceNoteID == "" {
			continue
		}
		if !notesPinned {
			c.add(markersRel, "marker %s references voice_note_id %s but voice_notes_path is not set", m.ID, m.VoiceNoteID)
			continue
		}
		if !noteIDs[m.VoiceNoteID] {
			c.add(markersRel, "marker %s voice_note_id not found: %s", m.ID, m.VoiceNoteID)
		}
	}
	for _, n := range notes {
		if n.MarkerID != "" && !markerIDs[n.MarkerID] {
			c.add(notesRel, "voice note %s marker_id not found: %s", n.ID, n.MarkerID)
		}
		if n.MediaPath == "" {
			continue
		}
		if !inside(n.MediaPath) {
			c.add(notesRel, "voice note %s media path escapes session directory: %s", n.ID, n.MediaPath)
		} else if !c.exists(n.MediaPath) {
			c.add(notesRel, "voice note %s media file missing: %s", n.ID, n.MediaPath)
		}
	}
}

func (c *checker) checkActionRuns(runs []session.ActionRun) {
	type state struct {
		started   bool
		terminals int
	}
	seen := make(map[string]*state)
	var order []string
	for _, r := range runs {
		st, ok := seen[r.ID]
		if !ok {
			st = &state{}
			seen[r.ID] = st
			order = append(order, r.ID)
			if r.Status != session.ActionStarted {
				c.add(session.ActionsFile, "action run %s begins with %s, want started", r.ID, r.Status)
			}
		}
		switch {
		case r.Status == session.ActionStarted:
			if st.started {
				c.add(session.ActionsFile, "action run %s started more than once", r.ID)
			}
			st.started = true
		case r.Status.Terminal():
			st.terminals++
		}
	}
	for _, id := range order {
		if seen[id].terminals > 1 {
			c.add(session.ActionsFile, "action run %s has %d terminal lines, want at most 1", id, seen[id].terminals)
		}
	}
}

func inside(rel string) bool {
	if filepath.IsAbs(rel) {
		return false
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
