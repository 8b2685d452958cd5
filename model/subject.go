package model

import "fmt"

// SystemUserID is the reserved principal that authors synthetic decisions
// recorded by the engine itself (for example a self-bypass approval).  Real
// approver ids must not collide with it.
const SystemUserID = "system"

// Subject is the contract a business object must satisfy to be routed through
// the approval engine.  The engine never mutates a subject; terminal
// outcomes are delivered to collaborators as events and it is the caller's
// responsibility to translate them into subject-level side effects.
type Subject interface {
	// SubjectKind returns the type tag scoping the polymorphic reference,
	// e.g. "purchase-request" or "overtime-request"
	SubjectKind() string

	// SubjectID returns the stable identity of the business object
	SubjectID() string

	// RequesterID returns the principal that submitted the subject; used by
	// the self-decide guard and the self-bypass rule
	RequesterID() string

	// ApprovalAttributes exposes the attributes policy criteria match
	// against.  They are read once at submission time.
	ApprovalAttributes() Attributes
}

// Attributes carries the subject dimensions the catalog matches on.
type Attributes struct {
	// Amount is an optional numeric magnitude (e.g. order total)
	Amount *float64 `json:"amount,omitempty" yaml:"amount,omitempty"`

	// Tags carry free-form markers (e.g. priority, site)
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Ref is the polymorphic subject reference persisted on a workflow.
type Ref struct {
	Kind string `json:"kind" yaml:"kind"`
	ID   string `json:"id" yaml:"id"`
}

// RefOf builds the persistent reference for a subject.
func RefOf(subject Subject) Ref {
	return Ref{Kind: subject.SubjectKind(), ID: subject.SubjectID()}
}

// String renders the reference as kind/id.
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}
