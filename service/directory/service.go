// Package directory resolves approver principals.  Policies reference
// individual users and groups; at submission time the engine expands that
// configuration into the concrete approver list frozen on each stage
// instance.  Group membership is dynamic, so expansion happens exactly once
// per workflow and never again.
package directory

import "context"

// Service defines the principal directory interface.
type Service interface {
	// User returns a user by id, or nil when unknown.
	User(ctx context.Context, id string) (*User, error)

	// Group returns a group by id, or nil when unknown.
	Group(ctx context.Context, id string) (*Group, error)

	// Resolve expands user and group ids into a flat approver list.
	// Explicitly listed users are kept unless the directory knows them as
	// inactive; groups expand to their active members only.  The result is
	// deduplicated preserving first occurrence order.
	Resolve(ctx context.Context, userIDs, groupIDs []string) ([]string, error)
}

// User is an approver principal.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Active bool   `json:"active"`
}

// Group is a named set of users referenced by stage templates.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	MemberIDs []string `json:"memberIds,omitempty"`
}
