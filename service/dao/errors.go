package dao

import "errors"

// Sentinel storage errors, detectable with errors.Is at any wrapping depth.
var (
	// ErrNotFound reports a key with no stored entity behind it.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID reports an empty or malformed key.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity reports an attempt to persist a nil pointer.
	ErrNilEntity = errors.New("dao: nil entity")
)
