// Package dao declares the generic persistence contract shared by the policy
// catalog, the principal directory and the workflow store, together with the
// listing parameters those implementations recognise.
package dao

import "context"

// Service is the uniform CRUD surface over one entity type T keyed by K.
type Service[K comparable, T any] interface {
	// Save stores or replaces an entity.
	Save(ctx context.Context, entity *T) error

	// Load returns an entity by key.
	Load(ctx context.Context, id K) (*T, error)

	// Delete removes an entity by key.
	Delete(ctx context.Context, id K) error

	// List returns entities admitted by the supplied parameters.
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
