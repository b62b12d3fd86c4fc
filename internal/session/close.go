package session

import (
	"fmt"

	"github.com/danielwarnersmith/trace/internal/jsonl"
)

// CloseResult reports the recorded end of a session.
type CloseResult struct {
	EndTime    string
	DurationMS int64
}

// Close ends the session: it logs session_end at now-start_time and marks the
// document closed.
func (d *Dir) Close() (CloseResult, error) {
	doc, err := d.Doc()
	if err != nil {
		return CloseResult{}, err
	}
	if doc.Status == StatusClosed {
		return CloseResult{}, ErrAlreadyClosed
	}
	if doc.StartTime == "" {
		return CloseResult{}, fmt.Errorf("%w: start_time is missing", ErrInvalidInput)
	}
	start, err := ParseTimestamp(doc.StartTime)
	if err != nil {
		return CloseResult{}, fmt.Errorf("%w: start_time %q: %v", ErrInvalidInput, doc.StartTime, err)
	}

	now := d.now()
	duration := now.Sub(start).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	ts := Timestamp(now)
	end := TimelineEntry{
		ID:        d.newID(),
		Kind:      KindSessionEnd,
		OffsetMS:  duration,
		WallTime:  ts,
		CreatedAt: ts,
		Source:    SourceSystem,
	}
	if err := jsonl.Append(d.join(doc.timelineFile()), end); err != nil {
		return CloseResult{}, fmt.Errorf("failed to append timeline: %w", err)
	}

	doc.Status = StatusClosed
	doc.EndTime = ts
	doc.DurationMS = ptr(duration)
	if err := d.commit(doc); err != nil {
		return CloseResult{}, err
	}
	return CloseResult{EndTime: ts, DurationMS: duration}, nil
}
