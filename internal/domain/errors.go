package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidSource = errors.New("invalid source")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrEmptyQuestion = errors.New("question is required")

	// ErrNoGenerator is returned when no text generation backend is configured.
	ErrNoGenerator = errors.New("text generation unavailable")
	// ErrUpstream wraps failures of the text generation backend.
	ErrUpstream = errors.New("upstream failure")
)
