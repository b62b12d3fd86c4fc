package validate_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/danielwarnersmith/trace/internal/jsonl"
	"github.com/danielwarnersmith/trace/internal/schema"
	"github.com/danielwarnersmith/trace/internal/session"
	"github.com/danielwarnersmith/trace/internal/validate"
)

// stepClock starts at a fixed instant and advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}

func newSession(t *testing.T) *session.Dir {
	t.Helper()
	d, _, err := session.Init(filepath.Join(t.TempDir(), "s"), session.WithClock(stepClock(time.Second)))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return d
}

func hasIssue(r validate.Report, file, substr string) bool {
	for _, i := range r.Issues {
		if i.File == file && strings.Contains(i.Message, substr) {
			return true
		}
	}
	return false
}

func TestFreshSessionIsValid(t *testing.T) {
	d := newSession(t)
	r := validate.Run(d.Path(), schema.NewEmbeddedCache())
	if !r.OK {
		t.Fatalf("fresh session invalid: %+v", r.Issues)
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"ok":true,"issues":[]}` {
		t.Errorf("report JSON = %s", out)
	}
}

func TestInitThenCloseIsValid(t *testing.T) {
	d := newSession(t)
	res, err := d.Close()
	if err != nil {
		t.Fatal(err)
	}
	if res.DurationMS < 0 {
		t.Errorf("duration %d is negative", res.DurationMS)
	}
	r := validate.Run(d.Path(), schema.NewEmbeddedCache())
	if !r.OK {
		t.Fatalf("closed session invalid: %+v", r.Issues)
	}
}

func TestMarkerScenarioIsValid(t *testing.T) {
	d := newSession(t)
	if _, err := d.AddMarker(session.MarkerInput{OffsetMS: 1200, Label: "Warmup", Tags: []string{"practice"}}); err != nil {
		t.Fatal(err)
	}
	if r := validate.Run(d.Path(), schema.NewEmbeddedCache()); !r.OK {
		t.Fatalf("issues: %+v", r.Issues)
	}
}

func TestFullSessionIsValid(t *testing.T) {
	d := newSession(t)
	src := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	dur := int64(400)
	if _, err := d.AddMedia(session.MediaInput{SourcePath: src, Kind: session.MediaAudio, MIME: "audio/wav", StartOffsetMS: 10, DurationMS: &dur}); err != nil {
		t.Fatal(err)
	}
	m, err := d.AddMarker(session.MarkerInput{OffsetMS: 100, Label: "chorus"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.AddVoiceNote(session.VoiceNoteInput{OffsetMS: 100, DurationMS: 50, MediaSource: src, MarkerID: m}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Transcribe(session.TranscribeInput{Segment: &session.SegmentInput{Text: "la la", OffsetMS: 20, DurationMS: 30}}); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteDigest("# digest\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if r := validate.Run(d.Path(), schema.NewEmbeddedCache()); !r.OK {
		t.Fatalf("issues: %+v", r.Issues)
	}
}

func TestMissingDocument(t *testing.T) {
	r := validate.Run(t.TempDir(), schema.NewEmbeddedCache())
	if r.OK || !hasIssue(r, session.DocFile, "missing file") {
		t.Fatalf("report = %+v", r)
	}
}

func TestReportsEveryBadLine(t *testing.T) {
	d := newSession(t)
	path := filepath.Join(d.Path(), session.MarkersFile)
	bad := "not json\n" + `{"id":"m1","offset_ms":-5,"created_at":"2026-01-01T00:00:00.000Z","source":"user"}` + "\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	r := validate.Run(d.Path(), schema.NewEmbeddedCache())
	if !hasIssue(r, session.MarkersFile, "line 1: invalid JSON") {
		t.Errorf("line 1 not reported: %+v", r.Issues)
	}
	if !hasIssue(r, session.MarkersFile, "line 2:") {
		t.Errorf("line 2 not reported: %+v", r.Issues)
	}
}

func TestDetectsOutOfOrderTimeline(t *testing.T) {
	d := newSession(t)
	path := filepath.Join(d.Path(), session.TimelineFile)
	entries := []any{
		session.TimelineEntry{ID: "a", Kind: session.KindMediaStart, OffsetMS: 500, WallTime: "2026-01-01T00:00:00.000Z", CreatedAt: "2026-01-01T00:00:00.000Z", Source: session.SourceSystem},
		session.TimelineEntry{ID: "b", Kind: session.KindMediaStart, OffsetMS: 100, WallTime: "2026-01-01T00:00:00.000Z", CreatedAt: "2026-01-01T00:00:00.000Z", Source: session.SourceSystem},
	}
	if err := jsonl.AppendAll(path, entries...); err != nil {
		t.Fatal(err)
	}
	r := validate.Run(d.Path(), schema.NewEmbeddedCache())
	if !hasIssue(r, session.TimelineFile, "out of order at entry 3") {
		t.Fatalf("report = %+v", r.Issues)
	}
}

func TestDetectsCrashBeforeDocumentWrite(t *testing.T) {
	d := newSession(t)
	end := session.TimelineEntry{ID: "end", Kind: session.KindSessionEnd, OffsetMS: 10, WallTime: "2026-01-01T00:00:00.000Z", CreatedAt: "2026-01-01T00:00:00.000Z", Source: session.SourceSystem}
	if err := jsonl.Append(filepath.Join(d.Path(), session.TimelineFile), end); err != nil {
		t.Fatal(err)
	}
	r := validate.Run(d.Path(), schema.NewEmbeddedCache())
	if !hasIssue(r, session.TimelineFile, "still active") {
		t.Fatalf("report = %+v", r.Issues)
	}
}

func TestDetectsDurationMismatch(t *testing.T) {
	d := newSession(t)
	if _, err := d.Close(); err != nil {
		t.Fatal(err)
	}
	doc, _ := d.Doc()
	wrong := *doc.DurationMS + 1
	doc.DurationMS = &wrong
	if err := session.WriteDoc(d.Path(), doc); err != nil {
		t.Fatal(err)
	}
	r := validate.Run(d.Path(), schema.NewEmbeddedCache())
	if !hasIssue(r, session.TimelineFile, "must equal session duration_ms") {
		t.Fatalf("report = %+v", r.Issues)
	}
}

func TestDetectsDanglingReferences(t *testing.T) {
	d := newSession(t)
	ts := "2026-01-01T00:00:00.000Z"
	if err := jsonl.Append(filepath.Join(d.Path(), session.MarkersFile),
		session.Marker{ID: "m1", OffsetMS: 1, CreatedAt: ts, Source: session.SourceUser, VoiceNoteID: "ghost"}); err != nil {
		t.Fatal(err)
	}
	if err := jsonl.Append(filepath.Join(d.Path(), session.VoiceNotesFile),
		session.VoiceNote{ID: "v1", CreatedAt: ts, MediaPath: "media/missing.m4a", MarkerID: "nobody"}); err != nil {
		t.Fatal(err)
	}
	doc, _ := d.Doc()
	vn := session.VoiceNotesFile
	doc.VoiceNotesPath = &vn
	doc.Media = append(doc.Media, session.Media{ID: "x", Kind: session.MediaAudio, Path: "../outside.wav", MIME: "audio/wav", CreatedAt: ts})
	if err := session.WriteDoc(d.Path(), doc); err != nil {
		t.Fatal(err)
	}

	r := validate.Run(d.Path(), schema.NewEmbeddedCache())
	for _, want := range []struct{ file, msg string }{
		{session.MarkersFile, "voice_note_id not found: ghost"},
		{session.VoiceNotesFile, "marker_id not found: nobody"},
		{session.VoiceNotesFile, "media file missing: media/missing.m4a"},
		{session.DocFile, "escapes session directory"},
	} {
		if !hasIssue(r, want.file, want.msg) {
			t.Errorf("missing issue %s: %s in %+v", want.file, want.msg, r.Issues)
		}
	}
}

func TestDetectsBrokenActionRuns(t *testing.T) {
	d := newSession(t)
	ts := "2026-01-01T00:00:00.000Z"
	runs := []any{
		session.ActionRun{ID: "r1", Action: "a", CreatedAt: ts, Status: session.ActionSucceeded},
		session.ActionRun{ID: "r2", Action: "a", CreatedAt: ts, Status: session.ActionStarted},
		session.ActionRun{ID: "r2", Action: "a", CreatedAt: ts, Status: session.ActionSucceeded},
		session.ActionRun{ID: "r2", Action: "a", CreatedAt: ts, Status: session.ActionFailed},
	}
	if err := jsonl.AppendAll(d.ActionsPath(), runs...); err != nil {
		t.Fatal(err)
	}
	r := validate.Run(d.Path(), schema.NewEmbeddedCache())
	if !hasIssue(r, session.ActionsFile, "r1 begins with succeeded") {
		t.Errorf("r1 not reported: %+v", r.Issues)
	}
	if !hasIssue(r, session.ActionsFile, "r2 has 2 terminal lines") {
		t.Errorf("r2 not reported: %+v", r.Issues)
	}
}

func TestMissingRequiredAndPinnedLogs(t *testing.T) {
	d := newSession(t)
	if err := os.Remove(filepath.Join(d.Path(), session.MarkersFile)); err != nil {
		t.Fatal(err)
	}
	doc, _ := d.Doc()
	tp := session.TranscriptFile
	doc.TranscriptPath = &tp
	if err := session.WriteDoc(d.Path(), doc); err != nil {
		t.Fatal(err)
	}
	r := validate.Run(d.Path(), schema.NewEmbeddedCache())
	if !hasIssue(r, session.MarkersFile, "missing file") || !hasIssue(r, session.TranscriptFile, "missing file") {
		t.Fatalf("report = %+v", r.Issues)
	}
}

// Feature: trace, Property: any sequence of markers and voice notes that
// reference each other through the session operations validates cleanly, and
// validating twice gives the same report.
func TestLinkedRecordsAlwaysValidate(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "note.m4a")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	n := 0
	rapid.Check(t, func(rt *rapid.T) {
		n++
		d, _, err := session.Init(filepath.Join(base, fmt.Sprintf("s%d", n)))
		if err != nil {
			rt.Fatal(err)
		}
		var markerIDs, noteIDs []string
		steps := rapid.IntRange(1, 10).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			offset := rapid.Int64Range(0, 60_000).Draw(rt, "offset")
			switch rapid.IntRange(0, 1).Draw(rt, "op") {
			case 0:
				in := session.MarkerInput{OffsetMS: offset}
				if len(noteIDs) > 0 && rapid.Bool().Draw(rt, "link_note") {
					in.VoiceNoteID = rapid.SampledFrom(noteIDs).Draw(rt, "note")
				}
				id, err := d.AddMarker(in)
				if err != nil {
					rt.Fatalf("AddMarker: %v", err)
				}
				markerIDs = append(markerIDs, id)
			case 1:
				in := session.VoiceNoteInput{OffsetMS: offset, DurationMS: 1000, MediaSource: src}
				if len(markerIDs) > 0 && rapid.Bool().Draw(rt, "link_marker") {
					in.MarkerID = rapid.SampledFrom(markerIDs).Draw(rt, "marker")
				}
				id, err := d.AddVoiceNote(in)
				if err != nil {
					rt.Fatalf("AddVoiceNote: %v", err)
				}
				noteIDs = append(noteIDs, id)
			}
		}

		cache := schema.NewEmbeddedCache()
		first := validate.Run(d.Path(), cache)
		if !first.OK {
			rt.Fatalf("issues: %+v", first.Issues)
		}
		if second := validate.Run(d.Path(), cache); !reflect.DeepEqual(first, second) {
			rt.Fatalf("validation not idempotent: %+v vs %+v", first, second)
		}
	})
}

func TestIdempotentOnBrokenDirectory(t *testing.T) {
	d := newSession(t)
	if err := os.WriteFile(filepath.Join(d.Path(), session.TimelineFile), []byte("garbage\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cache := schema.NewEmbeddedCache()
	a := validate.Run(d.Path(), cache)
	b := validate.Run(d.Path(), cache)
	if a.OK || !reflect.DeepEqual(a, b) {
		t.Fatalf("reports differ or ok: %+v vs %+v", a, b)
	}
}
