// Package idgen issues the opaque string identifiers assigned to workflows,
// decisions and receipts. Callers treat the values as opaque; the package is
// internal so the underlying scheme can change.
package idgen

import "github.com/google/uuid"

// NewFunc produces a fresh identifier. Tests replace it for stable IDs.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new unique identifier via NewFunc.
func New() string { return NewFunc() }
