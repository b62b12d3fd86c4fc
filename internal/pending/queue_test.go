package pending_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/danielwarnersmith/trace/internal/pending"
	"github.com/danielwarnersmith/trace/internal/schema"
	"github.com/danielwarnersmith/trace/internal/session"
	"github.com/danielwarnersmith/trace/internal/validate"
)

func openQueue(t *testing.T) *pending.Queue {
	t.Helper()
	q, err := pending.Open(filepath.Join(t.TempDir(), "queue"))
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "note.M4A")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAddPersistsBeforeFlush(t *testing.T) {
	q := openQueue(t)
	target := filepath.Join(t.TempDir(), "later")

	e, err := q.AddMarker(target, pending.Marker{OffsetMS: 100, Label: "offline"})
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Marker.ID) != 26 || e.QueueID == "" {
		t.Errorf("entry ids not assigned: %+v", e)
	}

	// A second handle over the same directory sees the entry.
	again, err := pending.Open(q.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := again.Count(); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestFlushKeepsFailuresAndRetries(t *testing.T) {
	q := openQueue(t)
	target := filepath.Join(t.TempDir(), "s")

	if _, err := q.AddMarker(target, pending.Marker{OffsetMS: 1, Label: "a"}); err != nil {
		t.Fatal(err)
	}
	ve, err := q.AddVoiceNote(target, writeAudio(t), pending.VoiceNote{OffsetMS: 2, DurationMS: 300})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(q.Dir(), ve.VoiceNote.Audio)); err != nil {
		t.Fatalf("audio not staged: %v", err)
	}

	res, err := q.Flush(target)
	if err != nil {
		t.Fatal(err)
	}
	if res.Flushed != 0 || res.Failed != 2 {
		t.Errorf("flush without session = %+v", res)
	}
	entries, _ := q.Entries()
	if len(entries) != 2 || entries[0].Attempts != 1 || entries[0].LastError == "" {
		t.Errorf("entries after failed flush = %+v", entries)
	}

	d, _, err := session.Init(target)
	if err != nil {
		t.Fatal(err)
	}
	res, err = q.Flush(target)
	if err != nil {
		t.Fatal(err)
	}
	if res.Flushed != 2 || res.Failed != 0 {
		t.Errorf("flush = %+v", res)
	}
	if n, _ := q.Count(); n != 0 {
		t.Errorf("Count = %d after flush", n)
	}
	if _, err := os.Stat(filepath.Join(q.Dir(), ve.VoiceNote.Audio)); !os.IsNotExist(err) {
		t.Error("staged audio not removed")
	}

	markers, _ := d.Markers()
	if len(markers) != 1 || markers[0].Label != "a" {
		t.Errorf("markers = %+v", markers)
	}
	note, ok, _ := d.VoiceNote(ve.VoiceNote.ID)
	if !ok || note.MediaPath != "media/"+ve.VoiceNote.ID+".m4a" {
		t.Errorf("voice note = %+v", note)
	}
	if r := validate.Run(d.Path(), schema.NewEmbeddedCache()); !r.OK {
		t.Errorf("issues: %+v", r.Issues)
	}
}

func TestFlushOnlyTouchesTargetSession(t *testing.T) {
	q := openQueue(t)
	base := t.TempDir()
	a, b := filepath.Join(base, "a"), filepath.Join(base, "b")
	if _, _, err := session.Init(a); err != nil {
		t.Fatal(err)
	}
	q.AddMarker(a, pending.Marker{OffsetMS: 1})
	q.AddMarker(b, pending.Marker{OffsetMS: 2})

	res, err := q.Flush(a)
	if err != nil || res.Flushed != 1 || res.Failed != 0 {
		t.Fatalf("Flush = %+v, %v", res, err)
	}
	if n, _ := q.CountFor(b); n != 1 {
		t.Errorf("entry for b was touched, CountFor = %d", n)
	}
}

func TestFlushReplayIsIdempotent(t *testing.T) {
	q := openQueue(t)
	target := filepath.Join(t.TempDir(), "s")
	d, _, err := session.Init(target)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := q.AddMarker(target, pending.Marker{OffsetMS: 5, Label: "x"})

	// Simulate a crash after the marker reached the session but before the
	// queue was saved: the same id is written again on the next flush.
	if _, err := d.AddMarker(session.MarkerInput{ID: e.Marker.ID, OffsetMS: 5, Label: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Flush(target); err != nil {
		t.Fatal(err)
	}
	markers, _ := d.Markers()
	if len(markers) != 1 {
		t.Errorf("replay produced %d markers", len(markers))
	}
}

func TestWatchFlushesWhenSessionAppears(t *testing.T) {
	q := openQueue(t)
	target := filepath.Join(t.TempDir(), "s")
	if _, err := q.AddMarker(target, pending.Marker{OffsetMS: 1, Label: "watched"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	flushed := make(chan flushOutcome, 4)
	started := make(chan struct{})
	go func() {
		close(started)
		_ = pending.Watch(ctx, q, target, func(res pending.FlushResult, err error) {
			flushed <- flushOutcome{res, err}
		})
	}()
	<-started

	// The watcher flushes once on start and fails because the session is
	// missing; creating it must trigger another flush.
	first := <-flushed
	if first.res.Failed != 1 {
		t.Fatalf("initial flush = %+v", first)
	}
	if _, _, err := session.Init(target); err != nil {
		t.Fatal(err)
	}
	for {
		select {
		case out := <-flushed:
			if out.res.Flushed == 1 {
				if n, _ := q.Count(); n != 0 {
					t.Errorf("Count = %d", n)
				}
				return
			}
		case <-ctx.Done():
			t.Fatal("watcher did not flush after session was created")
		}
	}
}

type flushOutcome struct {
	res pending.FlushResult
	err error
}

// Feature: trace, Property: every queued marker reaches the session exactly
// once no matter how many flushes fail first.
func TestFlushDeliversEveryMarker(t *testing.T) {
	base := t.TempDir()
	n := 0
	rapid.Check(t, func(rt *rapid.T) {
		n++
		q, err := pending.Open(filepath.Join(base, fmt.Sprintf("q%d", n)))
		if err != nil {
			rt.Fatal(err)
		}
		target := filepath.Join(base, fmt.Sprintf("s%d", n))
		count := rapid.IntRange(1, 8).Draw(rt, "count")
		for i := 0; i < count; i++ {
			if _, err := q.AddMarker(target, pending.Marker{OffsetMS: int64(i)}); err != nil {
				rt.Fatal(err)
			}
		}
		failures := rapid.IntRange(0, 3).Draw(rt, "failures")
		for i := 0; i < failures; i++ {
			res, err := q.Flush(target)
			if err != nil || res.Failed != count {
				rt.Fatalf("flush before init = %+v, %v", res, err)
			}
		}
		d, _, err := session.Init(target)
		if err != nil {
			rt.Fatal(err)
		}
		if _, err := q.Flush(target); err != nil {
			rt.Fatal(err)
		}
		markers, _ := d.Markers()
		if len(markers) != count {
			rt.Fatalf("delivered %d markers, want %d", len(markers), count)
		}
		if left, _ := q.Count(); left != 0 {
			rt.Fatalf("%d entries left", left)
		}
	})
}
