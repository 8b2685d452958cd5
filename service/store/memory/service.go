// Package memory provides an in-memory workflow store for tests and
// single-process deployments.  Aggregates are cloned on the way in and out,
// and every Update runs under an exclusive per-workflow lock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/dao"
	"github.com/gearmill/stagegate/service/dao/criteria"
	daostore "github.com/gearmill/stagegate/service/dao/store"
	"github.com/gearmill/stagegate/service/store"
)

type service struct {
	workflows *daostore.MemoryStore[string, model.Workflow]
	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	createMu  sync.Mutex
}

var _ store.Service = (*service)(nil)

/* ---------------- construction -------------------------------- */

// New creates an in-memory workflow store.
func New(options ...Option) store.Service {
	s := &service{
		workflows: daostore.NewMemoryStore[string, model.Workflow](workflowKey),
		locks:     map[string]*sync.Mutex{},
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func workflowKey(workflow *model.Workflow) string { return workflow.ID }

/* ---------------- store.Service ------------------------------- */

func (s *service) Create(ctx context.Context, workflow *model.Workflow) error {
	if workflow == nil {
		return dao.ErrNilEntity
	}
	if workflow.ID == "" {
		return dao.ErrInvalidID
	}
	if err := checkConstraints(workflow); err != nil {
		return err
	}
	s.createMu.Lock()
	defer s.createMu.Unlock()
	if existing, _ := s.workflows.Load(ctx, workflow.ID); existing != nil {
		return fmt.Errorf("workflow %v: %w", workflow.ID, store.ErrDuplicateWorkflow)
	}
	// one live workflow per subject
	all, err := s.workflows.List(ctx)
	if err != nil {
		return err
	}
	for _, candidate := range all {
		if candidate.Subject == workflow.Subject && !candidate.Terminal() {
			return fmt.Errorf("subject %v/%v already tracked by workflow %v: %w",
				workflow.Subject.Kind, workflow.Subject.ID, candidate.ID, store.ErrDuplicateWorkflow)
		}
	}
	return s.workflows.Save(ctx, workflow.Clone())
}

func (s *service) Load(ctx context.Context, id string) (*model.Workflow, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	workflow, err := s.workflows.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow == nil {
		return nil, fmt.Errorf("workflow %v: %w", id, dao.ErrNotFound)
	}
	return workflow.Clone(), nil
}

func (s *service) Update(ctx context.Context, id string, mutate store.Mutator) (*model.Workflow, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	if mutate == nil {
		return nil, fmt.Errorf("store: nil mutator")
	}
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.workflows.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("workflow %v: %w", id, dao.ErrNotFound)
	}
	working := current.Clone()
	if err = mutate(working); err != nil {
		return nil, err
	}
	if err = checkConstraints(working); err != nil {
		return nil, err
	}
	working.Touch()
	if err = s.workflows.Save(ctx, working); err != nil {
		return nil, err
	}
	return working.Clone(), nil
}

func (s *service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Workflow, error) {
	all, err := s.workflows.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.Workflow
	for _, workflow := range all {
		if !criteria.FilterByState(workflow.State(), parameters) {
			continue
		}
		if !criteria.FilterBySubjectKind(workflow.Subject.Kind, parameters) {
			continue
		}
		if !criteria.FilterBySubject(workflow.Subject, parameters) {
			continue
		}
		out = append(out, workflow.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	existing, err := s.workflows.Load(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("workflow %v: %w", id, dao.ErrNotFound)
	}
	return s.workflows.Delete(ctx, id)
}

func (s *service) Verify(ctx context.Context, id string) ([]string, error) {
	workflow, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return store.Audit(workflow), nil
}

/* ---------------- internals ----------------------------------- */

// lockFor returns the exclusive lock for a workflow id, creating it on first
// use.  Lock entries are kept for the lifetime of the store so every caller
// observes the same mutex.
func (s *service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// checkConstraints mirrors the relational uniqueness guarantees: stage orders
// are unique within a workflow and each approver decides a stage at most once.
func checkConstraints(workflow *model.Workflow) error {
	orders := map[int]bool{}
	for _, stage := range workflow.Stages {
		if orders[stage.Order] {
			return fmt.Errorf("workflow %v: stage order %v occurs more than once", workflow.ID, stage.Order)
		}
		orders[stage.Order] = true
		approvers := map[string]bool{}
		for _, decision := range stage.Decisions {
			if approvers[decision.ApproverID] {
				return fmt.Errorf("stage %v approver %v: %w", stage.Order, decision.ApproverID, store.ErrDuplicateDecision)
			}
			approvers[decision.ApproverID] = true
		}
	}
	return nil
}
