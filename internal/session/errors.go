package session

import (
	"errors"
	"fmt"
)

// Precondition failures. Operations wrap these with detail, so match them
// with errors.Is.
var (
	ErrNotFound      = errors.New("session not found")
	ErrExists        = errors.New("target already exists")
	ErrAlreadyClosed = errors.New("session already closed")
	ErrUnknownID     = errors.New("unknown id")
	ErrInvalidOffset = errors.New("invalid offset")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNoMedia       = errors.New("session has no audio or video media")
)

// ParseError is returned when session.json exists but is not a valid document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid session document %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
