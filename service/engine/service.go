package engine

import (
	"context"

	"github.com/gearmill/stagegate/extension"
	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/catalog"
	"github.com/gearmill/stagegate/service/directory"
	"github.com/gearmill/stagegate/service/event"
	"github.com/gearmill/stagegate/service/store"
)

// Service defines the approval engine interface.
type Service interface {
	// Submit selects the governing policy, resolves approvers, freezes the
	// configuration snapshot and opens the workflow atomically.
	Submit(ctx context.Context, request *SubmitRequest) (*model.Workflow, error)

	// Decide records one approver verdict on the current stage and applies
	// the quorum and advance rules.
	Decide(ctx context.Context, request *DecideRequest) (*DecideResponse, error)

	// Cancel terminates an active workflow without a verdict.
	Cancel(ctx context.Context, workflowID, actorID string) (*model.Workflow, error)

	// Lookup returns the workflow aggregate.
	Lookup(ctx context.Context, workflowID string) (*model.Workflow, error)

	// PendingFor returns the active workflows awaiting a decision by the
	// given user.
	PendingFor(ctx context.Context, userID string) ([]*model.Workflow, error)

	// Verify audits the stored aggregate against its recorded decisions.
	Verify(ctx context.Context, workflowID string) ([]string, error)

	// Drift renders how the live policy diverged from the workflow's frozen
	// snapshot.
	Drift(ctx context.Context, workflowID string) (string, model.DiffStats, error)
}

type service struct {
	catalog   catalog.Service
	directory directory.Service
	workflows store.Service
	kinds     *extension.Kinds
	events    *event.Service
}

var _ Service = (*service)(nil)

/* ---------------- construction -------------------------------- */

// New creates the approval engine on top of a policy catalog, a principal
// directory and a workflow store.
func New(catalogService catalog.Service, directoryService directory.Service, workflowStore store.Service, options ...Option) Service {
	s := &service{
		catalog:   catalogService,
		directory: directoryService,
		workflows: workflowStore,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Option customises the engine.
type Option func(*service)

// WithKinds attaches the subject-kind registry used for stage-resolution
// overrides.
func WithKinds(kinds *extension.Kinds) Option {
	return func(s *service) {
		s.kinds = kinds
	}
}

// WithEventService attaches the lifecycle event feed.
func WithEventService(events *event.Service) Option {
	return func(s *service) {
		s.events = events
	}
}
