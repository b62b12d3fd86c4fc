package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielwarnersmith/trace/internal/jsonl"
)

// Init creates a new session directory at path and returns a handle on it
// with the new session id. The directory, media/, session.json, timeline.jsonl
// and markers.jsonl are assembled in a sibling temp directory and renamed into
// place, so path either appears complete or not at all. The target is checked
// again right before the rename; concurrent Init calls on one path are not
// otherwise serialized.
func Init(path string, opts ...Option) (*Dir, string, error) {
	if _, err := os.Lstat(path); err == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, "", err
	}

	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create parent directory: %w", err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(path)+"-*")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session directory: %w", err)
	}
	renamed := false
	defer func() {
		if !renamed {
			os.RemoveAll(staging)
		}
	}()

	d := newDir(staging, opts)
	now := d.now()
	ts := Timestamp(now)
	id := d.newID()

	if err := os.Mkdir(filepath.Join(staging, MediaDir), 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create media directory: %w", err)
	}
	start := TimelineEntry{
		ID:        d.newID(),
		Kind:      KindSessionStart,
		OffsetMS:  0,
		WallTime:  ts,
		CreatedAt: ts,
		Source:    SourceSystem,
	}
	if err := jsonl.Append(filepath.Join(staging, TimelineFile), start); err != nil {
		return nil, "", fmt.Errorf("failed to write timeline: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, MarkersFile), nil, 0o644); err != nil {
		return nil, "", fmt.Errorf("failed to create markers log: %w", err)
	}
	doc := &Doc{
		ID:           id,
		Title:        d.title,
		CreatedAt:    ts,
		UpdatedAt:    ts,
		Status:       StatusActive,
		StartTime:    ts,
		TimelinePath: TimelineFile,
		MarkersPath:  MarkersFile,
		Media:        []Media{},
	}
	if err := WriteDoc(staging, doc); err != nil {
		return nil, "", err
	}

	// MkdirTemp creates 0700 directories.
	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create session directory: %w", err)
	}
	// Rename silently replaces an empty directory on Linux.
	if _, err := os.Lstat(path); err == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err := os.Rename(staging, path); err != nil {
		if _, statErr := os.Lstat(path); statErr == nil {
			return nil, "", fmt.Errorf("%w: %s", ErrExists, path)
		}
		return nil, "", fmt.Errorf("failed to create session directory: %w", err)
	}
	renamed = true
	d.root = path
	return d, id, nil
}
