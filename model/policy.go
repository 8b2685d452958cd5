package model

import (
	"fmt"
	"sort"
)

// Policy represents a reusable approval template: an ordered sequence of
// stages applied to every subject the policy admits.  Policies are configured
// ahead of time and rarely mutate; a workflow never references a live policy
// for its own progression, it keeps a frozen Snapshot taken at submission.
type Policy struct {
	// Source provides information about the origin of the policy definition
	Source *Source `json:"source,omitempty" yaml:"source,omitempty"`

	// ID is the stable identifier of the policy
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Name is unique within a catalog
	Name string `json:"name" yaml:"name"`

	// Description provides a human-readable description of the policy
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Active policies participate in selection; inactive ones are kept for
	// audit only
	Active bool `json:"active" yaml:"active"`

	// SelectionPriority orders competing matches, lower value wins
	SelectionPriority int `json:"selectionPriority,omitempty" yaml:"selectionPriority,omitempty"`

	// SubjectKinds scopes the policy to the listed subject kinds; empty
	// applies to all kinds
	SubjectKinds []string `json:"subjectKinds,omitempty" yaml:"kinds,omitempty"`

	// Criteria restricts which subjects the policy admits; nil admits all
	Criteria *Criteria `json:"criteria,omitempty" yaml:"criteria,omitempty"`

	// Stages define the approval sequence, ordered by Stage.Order
	Stages []*Stage `json:"stages" yaml:"stages"`

	// Sequence records catalog insertion order and breaks selection-priority
	// ties deterministically
	Sequence int `json:"sequence,omitempty" yaml:"sequence,omitempty"`
}

// Stage is one step of a policy requiring a quorum of approvals.
type Stage struct {
	// Order is a positive integer unique within the policy
	Order int `json:"order" yaml:"order"`

	// Name labels the stage for approvers and audit
	Name string `json:"name" yaml:"name"`

	// RequiredApprovals is the quorum, approvals needed to close the stage
	RequiredApprovals int `json:"requiredApprovals" yaml:"quorum"`

	// ApproverUserIDs names individual approver principals
	ApproverUserIDs []string `json:"approverUserIDs,omitempty" yaml:"approvers,omitempty"`

	// ApproverGroupIDs name approver groups, expanded to users at workflow
	// creation time, never stored expanded on the template
	ApproverGroupIDs []string `json:"approverGroupIDs,omitempty" yaml:"groups,omitempty"`
}

// Source records where a policy definition was loaded from.
type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// NewPolicy creates a new active policy with the given name.
func NewPolicy(name string) *Policy {
	return &Policy{Name: name, Active: true, SelectionPriority: DefaultSelectionPriority}
}

// DefaultSelectionPriority is assigned when a policy does not specify one.
const DefaultSelectionPriority = 100

// WithDescription sets the description of the policy.
func (p *Policy) WithDescription(description string) *Policy {
	p.Description = description
	return p
}

// WithSelectionPriority sets the selection priority (lower wins).
func (p *Policy) WithSelectionPriority(priority int) *Policy {
	p.SelectionPriority = priority
	return p
}

// WithCriteria sets the match criteria.
func (p *Policy) WithCriteria(criteria *Criteria) *Policy {
	p.Criteria = criteria
	return p
}

// WithSubjectKinds scopes the policy to the supplied subject kinds.
func (p *Policy) WithSubjectKinds(kinds ...string) *Policy {
	p.SubjectKinds = append(p.SubjectKinds, kinds...)
	return p
}

// AppliesTo reports whether the policy is in scope for a subject kind.
func (p *Policy) AppliesTo(kind string) bool {
	if len(p.SubjectKinds) == 0 {
		return true
	}
	for _, candidate := range p.SubjectKinds {
		if candidate == kind {
			return true
		}
	}
	return false
}

// AddStage appends a stage to the policy.
func (p *Policy) AddStage(stage *Stage) *Policy {
	p.Stages = append(p.Stages, stage)
	return p
}

// NewStage creates a stage with the given order, name and quorum and adds it
// to the policy.
func (p *Policy) NewStage(order int, name string, quorum int) *Stage {
	stage := NewStage(order, name, quorum)
	p.Stages = append(p.Stages, stage)
	return stage
}

// NewStage creates a detached stage template; combine with Policy.AddStage.
func NewStage(order int, name string, quorum int) *Stage {
	return &Stage{Order: order, Name: name, RequiredApprovals: quorum}
}

// WithApprovers adds individual approver user ids to the stage.
func (s *Stage) WithApprovers(userIDs ...string) *Stage {
	s.ApproverUserIDs = append(s.ApproverUserIDs, userIDs...)
	return s
}

// WithGroups adds approver group ids to the stage.
func (s *Stage) WithGroups(groupIDs ...string) *Stage {
	s.ApproverGroupIDs = append(s.ApproverGroupIDs, groupIDs...)
	return s
}

// OrderedStages returns the policy stages sorted by ascending order. The
// underlying slice is not modified.
func (p *Policy) OrderedStages() []*Stage {
	stages := make([]*Stage, len(p.Stages))
	copy(stages, p.Stages)
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Order < stages[j].Order })
	return stages
}

// Stage returns the stage with the supplied order or nil.
func (p *Policy) Stage(order int) *Stage {
	for _, stage := range p.Stages {
		if stage.Order == order {
			return stage
		}
	}
	return nil
}

// Validate performs a structural validation of the policy.  The returned
// slice is empty when the policy is sound; otherwise it contains
// human-readable error descriptions.
func (p *Policy) Validate() []error {
	var issues []error
	if p.Name == "" {
		issues = append(issues, fmt.Errorf("policy name is empty"))
	}
	if len(p.Stages) == 0 {
		issues = append(issues, fmt.Errorf("policy %s has no stages", p.Name))
	}
	seen := map[int]bool{}
	for _, stage := range p.Stages {
		if stage.Order <= 0 {
			issues = append(issues, fmt.Errorf("policy %s stage %q has non-positive order %d", p.Name, stage.Name, stage.Order))
		}
		if seen[stage.Order] {
			issues = append(issues, fmt.Errorf("policy %s has duplicate stage order %d", p.Name, stage.Order))
		}
		seen[stage.Order] = true
		if stage.RequiredApprovals < 1 {
			issues = append(issues, fmt.Errorf("policy %s stage %d requires a quorum of at least 1", p.Name, stage.Order))
		}
	}
	if p.Criteria != nil {
		if err := p.Criteria.Validate(); err != nil {
			issues = append(issues, err)
		}
	}
	return issues
}

// Criteria restricts which subjects a policy admits.  A nil field places no
// constraint on its dimension: a policy with no criteria at all matches every
// subject.
type Criteria struct {
	// MinAmount and MaxAmount bound the subject amount (inclusive)
	MinAmount *float64 `json:"minAmount,omitempty" yaml:"minAmount,omitempty"`
	MaxAmount *float64 `json:"maxAmount,omitempty" yaml:"maxAmount,omitempty"`

	// Tags admits subjects carrying at least one of the listed tags; empty
	// admits any tag set
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Validate checks internal consistency of the criteria.
func (c *Criteria) Validate() error {
	if c.MinAmount != nil && c.MaxAmount != nil && *c.MinAmount > *c.MaxAmount {
		return fmt.Errorf("criteria minAmount %v exceeds maxAmount %v", *c.MinAmount, *c.MaxAmount)
	}
	return nil
}

// Matches reports whether the supplied subject attributes satisfy the
// criteria.  Attributes are read once at submission time and never
// re-evaluated later.
func (c *Criteria) Matches(attributes Attributes) bool {
	if c == nil {
		return true
	}
	if c.MinAmount != nil || c.MaxAmount != nil {
		if attributes.Amount == nil {
			return false
		}
		if c.MinAmount != nil && *attributes.Amount < *c.MinAmount {
			return false
		}
		if c.MaxAmount != nil && *attributes.Amount > *c.MaxAmount {
			return false
		}
	}
	if len(c.Tags) > 0 {
		if !hasAnyTag(c.Tags, attributes.Tags) {
			return false
		}
	}
	return true
}

func hasAnyTag(accepted, actual []string) bool {
	if len(actual) == 0 {
		return false
	}
	index := make(map[string]bool, len(accepted))
	for _, tag := range accepted {
		index[tag] = true
	}
	for _, tag := range actual {
		if index[tag] {
			return true
		}
	}
	return false
}

// Float returns a pointer to the supplied value; a convenience for building
// criteria literals.
func Float(value float64) *float64 {
	return &value
}
