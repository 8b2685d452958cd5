package store

import "errors"

var (
	// ErrDuplicateWorkflow indicates a create with an already persisted id.
	ErrDuplicateWorkflow = errors.New("store: duplicate workflow")

	// ErrDuplicateDecision indicates a second decision by the same approver
	// on the same stage instance.
	ErrDuplicateDecision = errors.New("store: duplicate decision")
)
