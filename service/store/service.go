// Package store persists workflow aggregates.  A workflow, its stage
// instances and their decisions load and commit as one unit; every state
// transition runs through Update, which holds an exclusive per-workflow lock
// for the duration of the mutation so concurrent decisions serialize instead
// of interleaving.
package store

import (
	"context"

	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/dao"
)

// Mutator applies a transition to a workflow loaded under the exclusive
// lock.  Returning an error abandons the transition without persisting
// anything.
type Mutator func(workflow *model.Workflow) error

// Service defines the workflow store interface.  Returned aggregates are
// private copies: mutating them has no effect until committed through
// Update.
type Service interface {
	// Create persists a new workflow with its stage instances atomically.
	Create(ctx context.Context, workflow *model.Workflow) error

	// Load returns the workflow aggregate by id.
	Load(ctx context.Context, id string) (*model.Workflow, error)

	// Update loads the workflow under an exclusive lock, applies the
	// mutator and commits the result atomically.
	Update(ctx context.Context, id string, mutate Mutator) (*model.Workflow, error)

	// List returns workflows admitted by the supplied parameters; State,
	// SubjectKind and Subject are recognised.
	List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Workflow, error)

	// Delete removes the workflow aggregate.
	Delete(ctx context.Context, id string) error

	// Verify audits the stored aggregate and returns found discrepancies.
	Verify(ctx context.Context, id string) ([]string, error)
}
