package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielwarnersmith/trace/internal/jsonl"
)

// MediaInput describes a file to copy into the session.
type MediaInput struct {
	SourcePath    string
	Kind          MediaKind
	MIME          string
	StartOffsetMS int64
	DurationMS    *int64
}

// MediaResult identifies the stored copy.
type MediaResult struct {
	ID   string
	Path string // relative to the session directory
}

// AddMedia copies in.SourcePath to media/<id><ext>, logs media_start (and
// media_end when the duration is known) and appends the descriptor to the
// document.
func (d *Dir) AddMedia(in MediaInput) (MediaResult, error) {
	if in.StartOffsetMS < 0 {
		return MediaResult{}, fmt.Errorf("%w: start offset %d is negative", ErrInvalidOffset, in.StartOffsetMS)
	}
	if in.DurationMS != nil && *in.DurationMS < 0 {
		return MediaResult{}, fmt.Errorf("%w: duration %d is negative", ErrInvalidOffset, *in.DurationMS)
	}
	if !in.Kind.Valid() {
		return MediaResult{}, fmt.Errorf("%w: unknown media kind %q", ErrInvalidInput, in.Kind)
	}
	if in.MIME == "" {
		return MediaResult{}, fmt.Errorf("%w: mime type is required", ErrInvalidInput)
	}
	if err := requireFile(in.SourcePath); err != nil {
		return MediaResult{}, err
	}

	doc, err := d.Doc()
	if err != nil {
		return MediaResult{}, err
	}
	start, err := ParseTimestamp(doc.StartTime)
	if err != nil {
		return MediaResult{}, fmt.Errorf("%w: start_time %q: %v", ErrInvalidInput, doc.StartTime, err)
	}
	last, ok, err := d.lastTimelineOffset(doc)
	if err != nil {
		return MediaResult{}, err
	}
	if ok && in.StartOffsetMS < last {
		return MediaResult{}, fmt.Errorf("%w: start offset %d precedes last timeline offset %d",
			ErrInvalidOffset, in.StartOffsetMS, last)
	}
	end := in.StartOffsetMS
	if in.DurationMS != nil {
		end += *in.DurationMS
	}
	if doc.Status == StatusClosed && doc.DurationMS != nil && end > *doc.DurationMS {
		return MediaResult{}, fmt.Errorf("%w: media ends at %d, after session end %d",
			ErrInvalidOffset, end, *doc.DurationMS)
	}

	id := d.newID()
	rel := filepath.ToSlash(filepath.Join(MediaDir, id+strings.ToLower(filepath.Ext(in.SourcePath))))
	if err := CopyFile(in.SourcePath, d.join(rel)); err != nil {
		return MediaResult{}, err
	}

	ts := Timestamp(d.now())
	entries := []any{TimelineEntry{
		ID:        d.newID(),
		Kind:      KindMediaStart,
		OffsetMS:  in.StartOffsetMS,
		WallTime:  wallTime(start, in.StartOffsetMS),
		CreatedAt: ts,
		Source:    SourceSystem,
	}}
	if in.DurationMS != nil {
		entries = append(entries, TimelineEntry{
			ID:        d.newID(),
			Kind:      KindMediaEnd,
			OffsetMS:  end,
			WallTime:  wallTime(start, end),
			CreatedAt: ts,
			Source:    SourceSystem,
		})
	}
	if err := jsonl.AppendAll(d.join(doc.timelineFile()), entries...); err != nil {
		return MediaResult{}, fmt.Errorf("failed to append timeline: %w", err)
	}

	doc.Media = append(doc.Media, Media{
		ID:            id,
		Kind:          in.Kind,
		Path:          rel,
		MIME:          in.MIME,
		CreatedAt:     ts,
		StartOffsetMS: in.StartOffsetMS,
		DurationMS:    in.DurationMS,
	})
	if err := d.commit(doc); err != nil {
		return MediaResult{}, err
	}
	return MediaResult{ID: id, Path: rel}, nil
}

// lastTimelineOffset returns the offset of the last decodable timeline entry.
func (d *Dir) lastTimelineOffset(doc *Doc) (int64, bool, error) {
	entries, _, err := readLog[TimelineEntry](d.join(doc.timelineFile()))
	if err != nil {
		return 0, false, err
	}
	if len(entries) == 0 {
		return 0, false, nil
	}
	return entries[len(entries)-1].OffsetMS, true, nil
}

func requireFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: source path is required", ErrInvalidInput)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: source file %s does not exist", ErrInvalidInput, path)
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: source %s is not a regular file", ErrInvalidInput, path)
	}
	return nil
}

// CopyFile copies src to dst, failing if dst already exists.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
