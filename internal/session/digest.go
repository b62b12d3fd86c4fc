package session

import (
	"errors"
	"fmt"
	"os"
)

// WriteDigest replaces digest.md with content and pins digest_path.
func (d *Dir) WriteDigest(content string) error {
	doc, err := d.Doc()
	if err != nil {
		return err
	}
	rel := DigestFile
	if doc.DigestPath != nil && *doc.DigestPath != "" {
		rel = *doc.DigestPath
	}
	if err := WriteFileAtomic(d.join(rel), []byte(content)); err != nil {
		return err
	}
	if doc.DigestPath == nil {
		doc.DigestPath = ptr(rel)
	}
	doc.DigestUpdatedAt = Timestamp(d.now())
	return d.commit(doc)
}

// ReadDigest returns digest.md. The boolean is false when no digest has been
// written yet.
func (d *Dir) ReadDigest() (string, bool, error) {
	doc, err := d.Doc()
	if err != nil {
		return "", false, err
	}
	if doc.DigestPath == nil || *doc.DigestPath == "" {
		return "", false, nil
	}
	data, err := os.ReadFile(d.join(*doc.DigestPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read digest: %w", err)
	}
	return string(data), true, nil
}
