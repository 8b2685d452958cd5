package catalog

import "errors"

// Sentinel errors reported by catalog implementations.  Callers detect them
// with errors.Is rather than string comparison.

var (
	// ErrNoPolicy is returned by Select when no active policy admits the
	// subject.
	ErrNoPolicy = errors.New("catalog: no matching policy")

	// ErrInvalidPolicy is returned by Save when the policy fails structural
	// validation.
	ErrInvalidPolicy = errors.New("catalog: invalid policy")

	// ErrDuplicateName is returned by Save when another policy already uses
	// the name.
	ErrDuplicateName = errors.New("catalog: duplicate policy name")
)
