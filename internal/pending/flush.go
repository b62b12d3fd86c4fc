package pending

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/danielwarnersmith/trace/internal/session"
)

// FlushResult reports one flush pass.
type FlushResult struct {
	Flushed int
	Failed  int
	Errors  []error
}

// Flush replays every entry queued for sessionPath. Each entry is tried on
// its own; entries that fail stay queued with their attempt count bumped, and
// the rest are removed along with their staged audio. Entries for other
// sessions are left untouched.
func (q *Queue) Flush(sessionPath string) (FlushResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return FlushResult{}, err
	}
	target := normalize(sessionPath)

	var (
		res       FlushResult
		remaining []Entry
		staged    []string
		d         *session.Dir
		openErr   error
	)
	for _, e := range entries {
		if e.Session != target {
			remaining = append(remaining, e)
			continue
		}
		if d == nil && openErr == nil {
			d, openErr = session.Open(target, q.opts...)
		}
		err := openErr
		if err == nil {
			err = q.apply(d, e)
		}
		if err != nil {
			e.Attempts++
			e.LastError = err.Error()
			remaining = append(remaining, e)
			res.Failed++
			res.Errors = append(res.Errors, fmt.Errorf("%s %s: %w", e.Kind, e.RecordID(), err))
			q.logger.Debug("pending entry kept", "kind", e.Kind, "id", e.RecordID(), "attempts", e.Attempts, "err", err)
			continue
		}
		res.Flushed++
		if e.VoiceNote != nil {
			staged = append(staged, e.VoiceNote.Audio)
		}
		q.logger.Debug("pending entry flushed", "kind", e.Kind, "id", e.RecordID())
	}

	if res.Flushed == 0 && res.Failed == 0 {
		return res, nil
	}
	if err := q.save(remaining); err != nil {
		return res, err
	}
	for _, rel := range staged {
		os.Remove(filepath.Join(q.dir, filepath.FromSlash(rel)))
	}
	return res, nil
}

func (q *Queue) apply(d *session.Dir, e Entry) error {
	switch {
	case e.Kind == KindMarker && e.Marker != nil:
		m := e.Marker
		_, err := d.AddMarker(session.MarkerInput{
			ID:       m.ID,
			OffsetMS: m.OffsetMS,
			Source:   m.Source,
			Label:    m.Label,
			Note:     m.Note,
			Tags:     m.Tags,
		})
		return err
	case e.Kind == KindVoiceNote && e.VoiceNote != nil:
		v := e.VoiceNote
		in := session.VoiceNoteInput{
			ID:             v.ID,
			OffsetMS:       v.OffsetMS,
			DurationMS:     v.DurationMS,
			TranscriptText: v.TranscriptText,
			MarkerID:       v.MarkerID,
		}
		// A previous attempt may have copied the audio before failing.
		copied := v.ID + path.Ext(v.Audio)
		if _, err := os.Stat(filepath.Join(d.Path(), session.MediaDir, copied)); err == nil {
			in.MediaFilename = copied
		} else {
			in.MediaSource = filepath.Join(q.dir, filepath.FromSlash(v.Audio))
		}
		_, err := d.AddVoiceNote(in)
		return err
	}
	return errors.New("malformed queue entry")
}
