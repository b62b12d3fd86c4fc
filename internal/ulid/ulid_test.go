package ulid

import (
	"bytes"
	"errors"
	"sort"
	"testing"
	"time"

	"pgregory.net/rapid"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestNewHasFixedLengthAndAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := New()
		if len(id) != Len {
			t.Fatalf("len(%q) = %d, want %d", id, len(id), Len)
		}
		if !Valid(id) {
			t.Fatalf("Valid(%q) = false", id)
		}
	}
}

func TestEncodeKnownValues(t *testing.T) {
	if got := Encode(0, [10]byte{}); got != "00000000000000000000000000" {
		t.Errorf("Encode(0, zero) = %q", got)
	}
	var ones [10]byte
	for i := range ones {
		ones[i] = 0xff
	}
	if got := Encode(maxTime, ones); got != "7ZZZZZZZZZZZZZZZZZZZZZZZZZ" {
		t.Errorf("Encode(max, ones) = %q", got)
	}
}

// Feature: trace, Property: lexical order of ids follows byte order of the
// encoded (time, tail) pair.
func TestEncodePreservesOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msA := rapid.Uint64Range(0, maxTime).Draw(t, "msA")
		msB := rapid.Uint64Range(0, maxTime).Draw(t, "msB")
		var tailA, tailB [10]byte
		copy(tailA[:], rapid.SliceOfN(rapid.Byte(), 10, 10).Draw(t, "tailA"))
		copy(tailB[:], rapid.SliceOfN(rapid.Byte(), 10, 10).Draw(t, "tailB"))

		rawA := append(be48(msA), tailA[:]...)
		rawB := append(be48(msB), tailB[:]...)
		wantCmp := bytes.Compare(rawA, rawB)

		a, b := Encode(msA, tailA), Encode(msB, tailB)
		gotCmp := 0
		switch {
		case a < b:
			gotCmp = -1
		case a > b:
			gotCmp = 1
		}
		if gotCmp != wantCmp {
			t.Fatalf("order mismatch: %q vs %q got %d want %d", a, b, gotCmp, wantCmp)
		}
	})
}

func be48(ms uint64) []byte {
	return []byte{byte(ms >> 40), byte(ms >> 32), byte(ms >> 24), byte(ms >> 16), byte(ms >> 8), byte(ms)}
}

func TestGeneratorIsMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		steps := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 50).Draw(t, "steps")

		now := base
		g := NewGenerator(func() time.Time { return now }, nil)
		ids := make([]string, 0, len(steps))
		for _, step := range steps {
			now = now.Add(time.Duration(step) * time.Millisecond)
			ids = append(ids, g.New())
		}
		if !sort.StringsAreSorted(ids) {
			t.Fatalf("ids not sorted: %v", ids)
		}
		for i := 1; i < len(ids); i++ {
			if ids[i] == ids[i-1] {
				t.Fatalf("duplicate id %q", ids[i])
			}
		}
	})
}

func TestTimeRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 7, 8, 9, 10, 123_000_000, time.UTC)
	g := NewGenerator(func() time.Time { return at }, nil)
	id := g.New()
	got, err := Time(id)
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("Time(%q) = %v, want %v", id, got, at)
	}
}

func TestGeneratorSurvivesEntropyFailure(t *testing.T) {
	at := time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)
	g := NewGenerator(func() time.Time { return at }, failingReader{})
	first := g.New()
	at = at.Add(time.Millisecond)
	second := g.New()
	if !Valid(first) || !Valid(second) {
		t.Fatalf("invalid ids %q %q", first, second)
	}
	if first >= second {
		t.Errorf("expected %q < %q", first, second)
	}
}

type flakyReader struct{ fails int }

func (r *flakyReader) Read(p []byte) (int, error) {
	if r.fails > 0 {
		r.fails--
		return 0, errors.New("no entropy")
	}
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestGeneratorStaysOrderedAfterEntropyRecovers(t *testing.T) {
	at := time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)
	g := NewGenerator(func() time.Time { return at }, &flakyReader{fails: 1})
	ids := []string{g.New(), g.New(), g.New()}
	if !sort.StringsAreSorted(ids) || ids[0] == ids[1] || ids[1] == ids[2] {
		t.Fatalf("ids not strictly increasing: %v", ids)
	}
	for _, id := range ids {
		if !Valid(id) {
			t.Fatalf("Valid(%q) = false", id)
		}
	}
}

func TestGeneratorHoldsOrderWhenClockGoesBack(t *testing.T) {
	at := time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)
	g := NewGenerator(func() time.Time { return at }, nil)
	first := g.New()
	at = at.Add(-time.Second)
	second := g.New()
	if first >= second {
		t.Errorf("expected %q < %q", first, second)
	}
}

func TestValidRejects(t *testing.T) {
	cases := []string{
		"",
		"0000000000000000000000000",    // too short
		"8ZZZZZZZZZZZZZZZZZZZZZZZZZ",   // overflows 128 bits
		"0000000000000000000000000I",   // ambiguous symbol
		"0000000000000000000000000u",   // lower case
	}
	for _, id := range cases {
		if Valid(id) {
			t.Errorf("Valid(%q) = true, want false", id)
		}
	}
}
