package pending

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/danielwarnersmith/trace/internal/session"
)

// Watch flushes entries for sessionPath whenever the session directory or its
// session.json appears or changes, until ctx is cancelled. It flushes once on
// start. notify, if non-nil, receives the outcome of every flush that had
// something to do.
func Watch(ctx context.Context, q *Queue, sessionPath string, notify func(FlushResult, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := normalize(sessionPath)
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(parent); err != nil {
		return err
	}
	watching := false
	watchTarget := func() {
		if watching {
			return
		}
		if info, err := os.Stat(target); err == nil && info.IsDir() {
			if err := watcher.Add(target); err == nil {
				watching = true
			}
		}
	}

	flush := func() {
		n, err := q.CountFor(target)
		if err != nil {
			if notify != nil {
				notify(FlushResult{}, err)
			}
			return
		}
		if n == 0 {
			return
		}
		res, err := q.Flush(target)
		if notify != nil && (err != nil || res.Flushed > 0 || res.Failed > 0) {
			notify(res, err)
		}
	}

	watchTarget()
	flush()

	docPath := filepath.Join(target, session.DocFile)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			switch event.Name {
			case target:
				watchTarget()
				flush()
			case docPath:
				flush()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			q.logger.Warn("pending watcher error", "err", err)
		}
	}
}
