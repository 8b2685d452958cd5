package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gearmill/stagegate/internal/idgen"
	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/catalog"
	"github.com/gearmill/stagegate/service/dao"
	"github.com/gearmill/stagegate/service/dao/store"
)

type service struct {
	// DAO-backed store
	policies dao.Service[string, model.Policy]

	// assigns catalog insertion order used to break priority ties
	mu       sync.Mutex
	sequence int
	byName   map[string]string // name -> id
}

// key selector, grab ID field
func policyKey(p *model.Policy) string { return p.ID }

// New creates an in-memory policy catalog.
func New(options ...Option) catalog.Service {
	ret := &service{
		policies: store.NewMemoryStore[string, model.Policy](policyKey),
		byName:   map[string]string{},
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

/* ---------------- DAO-style operations -------------------------------- */

func (s *service) Save(ctx context.Context, policy *model.Policy) error {
	if policy == nil {
		return dao.ErrNilEntity
	}
	if issues := policy.Validate(); len(issues) > 0 {
		return fmt.Errorf("%w: %v", catalog.ErrInvalidPolicy, issues[0])
	}

	s.mu.Lock()
	if policy.ID == "" {
		policy.ID = idgen.New()
	}
	if owner, taken := s.byName[policy.Name]; taken && owner != policy.ID {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", catalog.ErrDuplicateName, policy.Name)
	}
	if policy.Sequence == 0 {
		s.sequence++
		policy.Sequence = s.sequence
	} else if policy.Sequence > s.sequence {
		s.sequence = policy.Sequence
	}
	s.byName[policy.Name] = policy.ID
	s.mu.Unlock()

	return s.policies.Save(ctx, policy)
}

func (s *service) Load(ctx context.Context, id string) (*model.Policy, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	policy, err := s.policies.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, fmt.Errorf("policy %s: %w", id, dao.ErrNotFound)
	}
	return policy, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	policy, err := s.policies.Load(ctx, id)
	if err != nil {
		return err
	}
	if policy != nil {
		s.mu.Lock()
		delete(s.byName, policy.Name)
		s.mu.Unlock()
	}
	return s.policies.Delete(ctx, id)
}

func (s *service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Policy, error) {
	policies, err := s.policies.List(ctx, parameters...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(policies, func(i, j int) bool { return policies[i].Sequence < policies[j].Sequence })
	return policies, nil
}

/* ---------------- Selection ------------------------------------------- */

func (s *service) Select(ctx context.Context, kind string, attributes model.Attributes) (*model.Policy, error) {
	policies, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var candidates []*model.Policy
	for _, policy := range policies {
		if !policy.Active || !policy.AppliesTo(kind) {
			continue
		}
		if !policy.Criteria.Matches(attributes) {
			continue
		}
		candidates = append(candidates, policy)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("subject kind %s: %w", kind, catalog.ErrNoPolicy)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].SelectionPriority != candidates[j].SelectionPriority {
			return candidates[i].SelectionPriority < candidates[j].SelectionPriority
		}
		return candidates[i].Sequence < candidates[j].Sequence
	})
	return candidates[0], nil
}

var _ catalog.Service = (*service)(nil)
