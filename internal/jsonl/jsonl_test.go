package jsonl

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

type rec struct {
	ID    string `json:"id"`
	Value string `json:"value,omitempty"`
}

func recID(r rec) string { return r.ID }

func TestAppendCreatesThenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	if err := Append(path, rec{ID: "a", Value: "line\nbreak"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := Append(path, rec{ID: "b"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("expected trailing newline")
	}
	if !strings.Contains(lines[0], `line\nbreak`) {
		t.Errorf("embedded newline should be escaped, got %q", lines[0])
	}
}

func TestAppendAllSingleWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	if err := os.WriteFile(path, []byte(`{"id":"x"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := AppendAll(path, rec{ID: "a"}, rec{ID: "b"}); err != nil {
		t.Fatalf("AppendAll: %v", err)
	}
	lines, err := ReadLines(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if string(lines[0].Raw) != `{"id":"x"}` {
		t.Errorf("existing content rewritten: %q", lines[0].Raw)
	}
}

func TestReadLinesMissingFile(t *testing.T) {
	_, err := ReadLines(filepath.Join(t.TempDir(), "nope.jsonl"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestSplitLinesKeepsNumbersAcrossBlanks(t *testing.T) {
	lines, err := SplitLines([]byte("{\"id\":\"a\"}\n\n  \n{\"id\":\"b\"}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Number != 1 || lines[1].Number != 4 {
		t.Errorf("line numbers = %d,%d want 1,4", lines[0].Number, lines[1].Number)
	}
}

func TestDecodeContinuesAfterBadLine(t *testing.T) {
	lines, _ := SplitLines([]byte("{\"id\":\"a\"}\nnot json\n{\"id\":\"b\"}\n"))
	got, errs := Decode[rec](lines)
	if len(got) != 2 {
		t.Fatalf("expected 2 decoded records, got %d", len(got))
	}
	if len(errs) != 1 || errs[0].Number != 2 {
		t.Fatalf("expected one error on line 2, got %v", errs)
	}
}

func TestFoldLastLineWins(t *testing.T) {
	records := []rec{
		{ID: "m1"},
		{ID: "m2", Value: "two"},
		{ID: "m1", Value: "voice"},
	}
	got := Fold(records, recID)
	if len(got) != 2 {
		t.Fatalf("expected 2 folded records, got %d", len(got))
	}
	if got[0].ID != "m1" || got[0].Value != "voice" {
		t.Errorf("fold kept %+v, want last m1 line", got[0])
	}
	if got[1].ID != "m2" {
		t.Errorf("fold order changed: %+v", got)
	}
}

// Feature: trace, Property: folding is idempotent and keeps exactly the last
// record per id.
func TestFoldProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfN(rapid.SampledFrom([]string{"a", "b", "c", "d"}), 0, 30).Draw(t, "ids")
		records := make([]rec, len(ids))
		for i, id := range ids {
			records[i] = rec{ID: id, Value: rapid.StringMatching(`[a-z]{0,4}`).Draw(t, "value")}
		}

		folded := Fold(records, recID)
		again := Fold(folded, recID)
		if len(again) != len(folded) {
			t.Fatalf("fold not idempotent: %d vs %d", len(again), len(folded))
		}
		for i := range folded {
			if again[i] != folded[i] {
				t.Fatalf("fold not idempotent at %d", i)
			}
			last, ok := Last(records, recID, folded[i].ID)
			if !ok || last != folded[i] {
				t.Fatalf("folded %+v is not the last record for its id (%+v)", folded[i], last)
			}
		}
	})
}
