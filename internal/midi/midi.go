// Package midi decodes MIDI Control-Change messages and maps them to marker
// categories. Device I/O is left to the caller; this package works on bytes.
package midi

import (
	"bufio"
	"errors"
	"io"
)

// Control-Change status bytes are 0xB0 plus the channel (0-15).
const (
	ccStatusMin = 0xB0
	ccStatusMax = 0xBF
)

// CC is a decoded Control-Change message.
type CC struct {
	Channel    int `json:"channel"`
	Controller int `json:"controller"`
	Value      int `json:"value"`
}

// IsControlChange reports whether status is a Control-Change status byte.
func IsControlChange(status byte) bool {
	return status >= ccStatusMin && status <= ccStatusMax
}

// Decode parses a raw message. It reports false for anything that is not a
// Control-Change message of at least three bytes.
func Decode(msg []byte) (CC, bool) {
	if len(msg) < 3 || !IsControlChange(msg[0]) {
		return CC{}, false
	}
	return CC{
		Channel:    int(msg[0] - ccStatusMin),
		Controller: int(msg[1]),
		Value:      int(msg[2]),
	}, true
}

// ReadStream reads a raw MIDI byte stream (for example a character device or
// a capture file) and calls fn for every Control-Change message. Running
// status is honoured for Control-Change; other messages are skipped. A non-nil
// error from fn stops the read and is returned.
func ReadStream(r io.Reader, fn func(CC) error) error {
	br := bufio.NewReader(r)
	var (
		running byte
		data    []byte
	)
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch {
		case b >= 0xF8:
			// System real-time bytes may appear anywhere and carry no data.
			continue
		case b >= 0x80:
			running = b
			data = data[:0]
			if b >= 0xF0 {
				running = 0
			}
			continue
		}
		if !IsControlChange(running) {
			continue
		}
		data = append(data, b)
		if len(data) < 2 {
			continue
		}
		cc, _ := Decode([]byte{running, data[0], data[1]})
		data = data[:0]
		if err := fn(cc); err != nil {
			return err
		}
	}
}
