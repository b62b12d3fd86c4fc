package digest_test

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/danielwarnersmith/trace/internal/digest"
	"github.com/danielwarnersmith/trace/internal/session"
)

func TestFormatOffset(t *testing.T) {
	cases := map[int64]string{
		0:       "0:00",
		999:     "0:00",
		1000:    "0:01",
		61_500:  "1:01",
		600_000: "10:00",
		-5:      "0:00",
	}
	for in, want := range cases {
		if got := digest.FormatOffset(in); got != want {
			t.Errorf("FormatOffset(%d) = %q, want %q", in, got, want)
		}
	}
}

// Feature: trace, Property: FormatOffset always yields m:ss with two-digit
// seconds.
func TestFormatOffsetShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.Int64Range(0, 1<<40).Draw(t, "ms")
		got := digest.FormatOffset(ms)
		parts := strings.Split(got, ":")
		if len(parts) != 2 || len(parts[1]) != 2 {
			t.Fatalf("%q is not m:ss", got)
		}
		m, err1 := strconv.ParseInt(parts[0], 10, 64)
		s, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil || s >= 60 || m*60+s != ms/1000 {
			t.Fatalf("FormatOffset(%d) = %q", ms, got)
		}
	})
}

func sampleInput() *digest.Input {
	dur := int64(125_000)
	return &digest.Input{
		Session: digest.Summary{ID: "01ABC", StartTime: "2026-01-01T00:00:00.000Z", Status: session.StatusClosed, EndTime: "2026-01-01T00:02:05.000Z", DurationMS: &dur},
		Markers: []session.Marker{
			{ID: "m1", OffsetMS: 1200, Label: "Warmup"},
			{ID: "m2", OffsetMS: 65_000, Tags: []string{"highlight", "structure"}},
			{ID: "m3", OffsetMS: 90_000},
		},
		VoiceNotes: []session.VoiceNote{{ID: "v1", OffsetMS: 3000, DurationMS: 4000, TranscriptText: "slow down"}},
		Actions:    []session.ActionRun{{ID: "a1", Action: "generate_digest", Status: session.ActionFailed, Error: "boom", CreatedAt: "2026-01-01T00:00:00.000Z"}},
	}
}

func TestGenerateMarkdown(t *testing.T) {
	out := digest.Generate(sampleInput())
	for _, want := range []string{
		"# Session digest",
		"- **ID:** 01ABC",
		"- **Duration:** 2:05",
		"**Markers:** 3",
		"## Notable moments",
		"- **0:01** — Warmup",
		"- **1:05** — highlight, structure",
		"- **1:30** — marker",
		"slow down",
		"| generate_digest | failed: boom |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("digest missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateWithoutMarkers(t *testing.T) {
	out := digest.Generate(&digest.Input{Session: digest.Summary{ID: "x", Status: session.StatusActive}})
	if strings.Contains(out, "Notable moments") || strings.Contains(out, "Duration") {
		t.Errorf("unexpected sections:\n%s", out)
	}
	if !strings.Contains(out, "**Markers:** 0") {
		t.Errorf("marker count missing:\n%s", out)
	}
}

func TestJSONRenderer(t *testing.T) {
	r, err := digest.NewRenderer("json")
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Render(sampleInput())
	if err != nil {
		t.Fatal(err)
	}
	var back digest.Input
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if back.Session.ID != "01ABC" || len(back.Markers) != 3 {
		t.Errorf("unexpected decode %+v", back)
	}
	if _, err := digest.NewRenderer("pdf"); err == nil {
		t.Error("expected unknown format error")
	}
}

func TestReadSortsMarkersAndTrimsActions(t *testing.T) {
	d, _, err := session.Init(filepath.Join(t.TempDir(), "s"))
	if err != nil {
		t.Fatal(err)
	}
	for _, off := range []int64{5000, 1000, 3000} {
		if _, err := d.AddMarker(session.MarkerInput{OffsetMS: off}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < digest.RecentActions+5; i++ {
		run := session.ActionRun{ID: fmt.Sprintf("r%02d", i), Action: "noop", CreatedAt: "2026-01-01T00:00:00.000Z", Status: session.ActionSucceeded}
		if err := d.AppendActionRun(run); err != nil {
			t.Fatal(err)
		}
	}
	in, err := digest.Read(d)
	if err != nil {
		t.Fatal(err)
	}
	if in.Markers[0].OffsetMS != 1000 || in.Markers[2].OffsetMS != 5000 {
		t.Errorf("markers not sorted: %+v", in.Markers)
	}
	if len(in.Actions) != digest.RecentActions || in.Actions[0].ID != "r05" {
		t.Errorf("actions = %d starting %s", len(in.Actions), in.Actions[0].ID)
	}
}
