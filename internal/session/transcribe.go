package session

import (
	"encoding/json"
	"fmt"

	"github.com/danielwarnersmith/trace/internal/jsonl"
	"github.com/danielwarnersmith/trace/internal/schema"
)

// TranscribeInput selects one of two modes: Import holds JSONL transcript
// lines to append as a batch, Segment a single ad-hoc segment.
type TranscribeInput struct {
	Import  []byte
	Segment *SegmentInput
}

// SegmentInput is one ad-hoc transcript segment.
type SegmentInput struct {
	Text       string
	OffsetMS   int64
	DurationMS int64
}

// TranscribeResult reports what was written.
type TranscribeResult struct {
	Path     string // relative transcript path
	Segments int
}

// Transcribe appends transcript segments. The whole batch is checked before
// anything is written: every line must match the transcript schema, offsets
// must be non-decreasing within the batch and must not precede the last
// offset already recorded.
func (d *Dir) Transcribe(in TranscribeInput) (TranscribeResult, error) {
	if (in.Import == nil) == (in.Segment == nil) {
		return TranscribeResult{}, fmt.Errorf("%w: give either import lines or a segment", ErrInvalidInput)
	}
	doc, err := d.Doc()
	if err != nil {
		return TranscribeResult{}, err
	}
	if !doc.HasAudio() {
		return TranscribeResult{}, ErrNoMedia
	}

	var segments []TranscriptSegment
	if in.Segment != nil {
		if in.Segment.OffsetMS < 0 || in.Segment.DurationMS < 0 {
			return TranscribeResult{}, fmt.Errorf("%w: segment offset and duration must be non-negative", ErrInvalidOffset)
		}
		segments = []TranscriptSegment{{
			ID:         d.newID(),
			OffsetMS:   in.Segment.OffsetMS,
			DurationMS: in.Segment.DurationMS,
			Text:       in.Segment.Text,
		}}
	} else {
		segments, err = decodeTranscript(d.schemas, in.Import)
		if err != nil {
			return TranscribeResult{}, err
		}
		if len(segments) == 0 {
			return TranscribeResult{}, fmt.Errorf("%w: no transcript lines to import", ErrInvalidInput)
		}
	}

	rel := doc.transcriptFile()
	existing, _, err := readLog[TranscriptSegment](d.join(rel))
	if err != nil {
		return TranscribeResult{}, err
	}
	if n := len(existing); n > 0 && segments[0].OffsetMS < existing[n-1].OffsetMS {
		return TranscribeResult{}, fmt.Errorf("%w: transcript offsets must be non-decreasing (offset %d precedes recorded %d)",
			ErrInvalidOffset, segments[0].OffsetMS, existing[n-1].OffsetMS)
	}

	records := make([]any, len(segments))
	for i, s := range segments {
		records[i] = s
	}
	if err := jsonl.AppendAll(d.join(rel), records...); err != nil {
		return TranscribeResult{}, fmt.Errorf("failed to append transcript: %w", err)
	}

	if doc.TranscriptPath == nil {
		doc.TranscriptPath = ptr(TranscriptFile)
	}
	doc.TranscribedAt = Timestamp(d.now())
	if err := d.commit(doc); err != nil {
		return TranscribeResult{}, err
	}
	return TranscribeResult{Path: rel, Segments: len(segments)}, nil
}

func decodeTranscript(schemas *schema.Cache, data []byte) ([]TranscriptSegment, error) {
	lines, err := jsonl.SplitLines(data)
	if err != nil {
		return nil, err
	}
	out := make([]TranscriptSegment, 0, len(lines))
	for _, l := range lines {
		if res := schemas.Validate(schema.Transcript, l.Raw); !res.OK {
			return nil, fmt.Errorf("%w: transcript line %d: %s", ErrInvalidInput, l.Number, res)
		}
		var seg TranscriptSegment
		if err := json.Unmarshal(l.Raw, &seg); err != nil {
			return nil, fmt.Errorf("%w: transcript line %d: %v", ErrInvalidInput, l.Number, err)
		}
		if n := len(out); n > 0 && seg.OffsetMS < out[n-1].OffsetMS {
			return nil, fmt.Errorf("%w: transcript offsets must be non-decreasing (line %d)", ErrInvalidOffset, l.Number)
		}
		out = append(out, seg)
	}
	return out, nil
}
