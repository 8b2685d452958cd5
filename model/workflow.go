package model

import (
	"time"

	"github.com/gearmill/stagegate/internal/clock"
	"github.com/gearmill/stagegate/internal/idgen"
)

// Workflow state constants.
const (
	StateActive    = "active"
	StateCompleted = "completed"
	StateRejected  = "rejected"
	StateCancelled = "cancelled"
)

// Workflow represents one approval run bound to a single subject.  It is
// created atomically together with all of its stage instances and mutated
// only by the decision recorder and the auto-advance rules, always under an
// exclusive store lock.  Once a terminal flag is set the workflow is
// immutable.
type Workflow struct {
	ID      string `json:"id"`
	Subject Ref    `json:"subject"`

	// RequesterID identifies who submitted the subject; the recorder refuses
	// decisions by the requester and the self-bypass rule keys off it
	RequesterID string `json:"requesterId"`

	// PolicyID references the policy used for instantiation; progression
	// itself relies solely on the frozen Snapshot and the stage instances
	PolicyID string `json:"policyId"`

	// CurrentStageOrder points at the stage awaiting action.  It is
	// monotonically non-decreasing and may jump over pre-completed stages.
	CurrentStageOrder int `json:"currentStageOrder"`

	// Terminal flags, at most one may ever be true
	Completed bool `json:"completed"`
	Rejected  bool `json:"rejected"`
	Cancelled bool `json:"cancelled"`

	// Snapshot freezes the policy and stage configuration at submission time
	// for audit stability
	Snapshot *Snapshot `json:"snapshot,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// Stages are the per-workflow instances, ascending by Order
	Stages []*StageInstance `json:"stages,omitempty"`
}

// StageInstance is the per-workflow copy of a policy stage.  Order, name and
// quorum are copied from the template at creation time; the approver set is
// resolved (groups expanded) once and never re-resolved.
type StageInstance struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflowId"`
	Order      int    `json:"order"`
	Name       string `json:"name"`

	// RequiredApprovals is the quorum; self-bypass may clamp it down but it
	// never rises after creation
	RequiredApprovals int `json:"requiredApprovals"`

	// ApproverUserIDs is the resolved, deduplicated approver set
	ApproverUserIDs []string `json:"approverUserIDs"`

	// ApproverGroupIDs keeps the original group ids for traceability
	ApproverGroupIDs []string `json:"approverGroupIDs,omitempty"`

	// ApprovedCount never exceeds RequiredApprovals and never decreases
	ApprovedCount int  `json:"approvedCount"`
	Completed     bool `json:"completed"`
	Rejected      bool `json:"rejected"`

	// Decisions are append-only, at most one per approver
	Decisions []*Decision `json:"decisions,omitempty"`
}

// DecisionKind discriminates approve from reject.
type DecisionKind string

// Decision kinds.
const (
	DecisionApprove DecisionKind = "approve"
	DecisionReject  DecisionKind = "reject"
)

// Decision records a single approver verdict on a stage instance.  Decisions
// are append-only, never updated or deleted.
type Decision struct {
	ID              string       `json:"id"`
	StageInstanceID string       `json:"stageInstanceId"`
	ApproverID      string       `json:"approverId"`
	Kind            DecisionKind `json:"kind"`
	Comment         string       `json:"comment,omitempty"`
	DecidedAt       time.Time    `json:"decidedAt"`
}

// Outcome summarises the effect of one recorded decision for the caller.
type Outcome string

// Decision outcomes.
const (
	// OutcomePending means quorum is not reached, the same stage remains open.
	OutcomePending Outcome = "pending"
	// OutcomeMoved means the stage closed and the pointer advanced to a new
	// open stage.
	OutcomeMoved Outcome = "moved"
	// OutcomeCompleted means the workflow is fully approved.
	OutcomeCompleted Outcome = "completed"
	// OutcomeRejected means the stage and the workflow are rejected.
	OutcomeRejected Outcome = "rejected"

	// OutcomeCancelled travels on the activity feed when a workflow is
	// cancelled; Decide never returns it.
	OutcomeCancelled Outcome = "cancelled"
)

// NewWorkflow creates a workflow shell for the given subject and policy.
// Stage instances are attached by the instantiator.
func NewWorkflow(subject Ref, requesterID, policyID string) *Workflow {
	now := clock.Now()
	return &Workflow{
		ID:                idgen.New(),
		Subject:           subject,
		RequesterID:       requesterID,
		PolicyID:          policyID,
		CurrentStageOrder: 1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// NewStageInstance materialises a stage template for a workflow with an
// already-resolved approver set.
func NewStageInstance(workflowID string, template *Stage, userIDs, groupIDs []string) *StageInstance {
	return &StageInstance{
		ID:                idgen.New(),
		WorkflowID:        workflowID,
		Order:             template.Order,
		Name:              template.Name,
		RequiredApprovals: template.RequiredApprovals,
		ApproverUserIDs:   userIDs,
		ApproverGroupIDs:  groupIDs,
	}
}

// State returns the workflow state name.
func (w *Workflow) State() string {
	switch {
	case w.Completed:
		return StateCompleted
	case w.Rejected:
		return StateRejected
	case w.Cancelled:
		return StateCancelled
	}
	return StateActive
}

// Terminal reports whether any terminal flag is set.
func (w *Workflow) Terminal() bool {
	return w.Completed || w.Rejected || w.Cancelled
}

// StageAt returns the stage instance with the supplied order or nil.
func (w *Workflow) StageAt(order int) *StageInstance {
	for _, stage := range w.Stages {
		if stage.Order == order {
			return stage
		}
	}
	return nil
}

// CurrentStage returns the stage instance at the current pointer or nil.
func (w *Workflow) CurrentStage() *StageInstance {
	return w.StageAt(w.CurrentStageOrder)
}

// NextOpenStage returns the first stage with order strictly greater than
// after that is neither complete nor rejected, ascending.  It returns nil
// when no such stage exists.
func (w *Workflow) NextOpenStage(after int) *StageInstance {
	var next *StageInstance
	for _, stage := range w.Stages {
		if stage.Order <= after || stage.Completed || stage.Rejected {
			continue
		}
		if next == nil || stage.Order < next.Order {
			next = stage
		}
	}
	return next
}

// LastOrder returns the highest stage order, or 0 for an empty workflow.
func (w *Workflow) LastOrder() int {
	last := 0
	for _, stage := range w.Stages {
		if stage.Order > last {
			last = stage.Order
		}
	}
	return last
}

// Touch refreshes the update timestamp.
func (w *Workflow) Touch() {
	w.UpdatedAt = clock.Now()
}

// Finish sets the terminal state and stamps FinishedAt.  state must be one of
// StateCompleted, StateRejected or StateCancelled; any other value leaves the
// workflow untouched.
func (w *Workflow) Finish(state string) {
	switch state {
	case StateCompleted:
		w.Completed = true
	case StateRejected:
		w.Rejected = true
	case StateCancelled:
		w.Cancelled = true
	default:
		return
	}
	now := clock.Now()
	w.FinishedAt = &now
	w.UpdatedAt = now
}

// Clone creates a deep copy of the workflow suitable for handing out to
// callers without exposing store-owned state.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	if w.Snapshot != nil {
		snapshot := *w.Snapshot
		snapshot.Stages = append([]SnapshotStage(nil), w.Snapshot.Stages...)
		out.Snapshot = &snapshot
	}
	if len(w.Stages) > 0 {
		out.Stages = make([]*StageInstance, len(w.Stages))
		for i, stage := range w.Stages {
			out.Stages[i] = stage.Clone()
		}
	}
	return &out
}

// Open reports whether the stage still accepts decisions.
func (s *StageInstance) Open() bool {
	return !s.Completed && !s.Rejected
}

// HasApprover reports whether the user belongs to the resolved approver set.
func (s *StageInstance) HasApprover(userID string) bool {
	for _, id := range s.ApproverUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// DecisionBy returns the decision recorded by the supplied approver or nil.
func (s *StageInstance) DecisionBy(userID string) *Decision {
	for _, decision := range s.Decisions {
		if decision.ApproverID == userID {
			return decision
		}
	}
	return nil
}

// RemoveApprover drops the user from the resolved set, preserving order.  It
// reports whether the set changed.
func (s *StageInstance) RemoveApprover(userID string) bool {
	kept := s.ApproverUserIDs[:0]
	removed := false
	for _, id := range s.ApproverUserIDs {
		if id == userID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	s.ApproverUserIDs = kept
	return removed
}

// Append records a decision on the stage.
func (s *StageInstance) Append(decision *Decision) {
	decision.StageInstanceID = s.ID
	s.Decisions = append(s.Decisions, decision)
}

// Clone creates a deep copy of the stage instance.
func (s *StageInstance) Clone() *StageInstance {
	if s == nil {
		return nil
	}
	out := *s
	out.ApproverUserIDs = append([]string(nil), s.ApproverUserIDs...)
	out.ApproverGroupIDs = append([]string(nil), s.ApproverGroupIDs...)
	if len(s.Decisions) > 0 {
		out.Decisions = make([]*Decision, len(s.Decisions))
		for i, decision := range s.Decisions {
			clone := *decision
			out.Decisions[i] = &clone
		}
	}
	return &out
}

// NewDecision creates a decision authored by the supplied approver.
func NewDecision(approverID string, kind DecisionKind, comment string) *Decision {
	return &Decision{
		ID:         idgen.New(),
		ApproverID: approverID,
		Kind:       kind,
		Comment:    comment,
		DecidedAt:  clock.Now(),
	}
}
