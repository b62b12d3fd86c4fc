// Package jsonl appends and reads JSON-Lines logs. Files are only ever
// appended to; readers reconcile repeated ids with Fold.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

const fileMode = 0o644

// Line is one non-blank line of a log with its 1-based line number.
type Line struct {
	Number int
	Raw    []byte
}

// LineError reports a line that could not be decoded.
type LineError struct {
	Number int
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Number, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Append serializes record as a single line and appends it to path, creating
// the file if needed.
func Append(path string, record any) error {
	return AppendAll(path, record)
}

// AppendAll appends one line per record using a single write call.
func AppendAll(path string, records ...any) error {
	if len(records) == 0 {
		return nil
	}
	var payload []byte
	for _, r := range records {
		line, err := Marshal(r)
		if err != nil {
			return err
		}
		payload = append(payload, line...)
		payload = append(payload, '\n')
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Marshal encodes record as compact JSON. encoding/json escapes control
// characters, so the result never contains a raw newline.
func Marshal(record any) ([]byte, error) {
	line, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return line, nil
}

// ReadLines returns the non-blank lines of path. A missing file is returned as
// an error matching fs.ErrNotExist.
func ReadLines(path string) ([]Line, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(data)
}

// SplitLines splits raw JSONL content into numbered non-blank lines.
func SplitLines(data []byte) ([]Line, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	var lines []Line
	n := 0
	for scanner.Scan() {
		n++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		raw := make([]byte, len(b))
		copy(raw, b)
		lines = append(lines, Line{Number: n, Raw: raw})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return lines, nil
}

// Decode unmarshals every line into T. Lines that fail are reported and
// skipped; decoding continues with the next line.
func Decode[T any](lines []Line) ([]T, []*LineError) {
	out := make([]T, 0, len(lines))
	var errs []*LineError
	for _, l := range lines {
		var v T
		if err := json.Unmarshal(l.Raw, &v); err != nil {
			errs = append(errs, &LineError{Number: l.Number, Err: err})
			continue
		}
		out = append(out, v)
	}
	return out, errs
}

// ReadAll reads and decodes path. A missing file yields an empty slice.
func ReadAll[T any](path string) ([]T, []*LineError, error) {
	lines, err := ReadLines(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	out, errs := Decode[T](lines)
	return out, errs, nil
}

// Fold reconciles records sharing a key: the last record for each key wins.
// The result is ordered by the first appearance of each key. Records with an
// empty key are dropped.
func Fold[T any](records []T, key func(T) string) []T {
	index := make(map[string]int, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

// Last returns the last record with the given key, if any.
func Last[T any](records []T, key func(T) string, want string) (T, bool) {
	var found T
	ok := false
	for _, r := range records {
		if key(r) == want {
			found = r
			ok = true
		}
	}
	return found, ok
}
