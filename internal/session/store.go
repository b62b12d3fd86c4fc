package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gowebpki/jcs"
)

// ReadDoc loads session.json from dir.
// Returns ErrNotFound if the document does not exist.
func ReadDoc(dir string) (*Doc, error) {
	path := filepath.Join(dir, DocFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read session document: %w", err)
	}
	var doc Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &doc, nil
}

// WriteDoc replaces session.json in dir with doc. Keys are written in sorted
// order with two-space indentation so successive versions diff cleanly.
func WriteDoc(dir string, doc *Doc) error {
	data, err := EncodeDoc(doc)
	if err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(dir, DocFile), data)
}

// EncodeDoc renders doc exactly as WriteDoc stores it.
func EncodeDoc(doc *Doc) ([]byte, error) {
	out := *doc
	if out.Media == nil {
		out.Media = []Media{}
	}
	raw, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session document: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize session document: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent session document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteFileAtomic writes to a temp file in the same directory and renames it
// over path.
func WriteFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
