package engine

import (
	"github.com/gearmill/stagegate/model"
)

// Workflow lifecycle event types published on the engine's activity feed.
const (
	EventWorkflowSubmitted = "workflow.submitted"
	EventDecisionRecorded  = "decision.recorded"
	EventStageAdvanced     = "stage.advanced"
	EventWorkflowCompleted = "workflow.completed"
	EventWorkflowRejected  = "workflow.rejected"
	EventWorkflowCancelled = "workflow.cancelled"
)

// SubmitRequest opens an approval workflow for a business subject.
type SubmitRequest struct {
	// Subject references the business record under approval
	Subject model.Ref `json:"subject"`

	// RequesterID identifies who submitted the subject; the requester can
	// never act as an approver on the resulting workflow
	RequesterID string `json:"requesterId"`

	// Attributes feed policy selection and are read exactly once
	Attributes model.Attributes `json:"attributes,omitempty"`

	// PolicyID optionally pins a policy, bypassing catalog selection
	PolicyID string `json:"policyId,omitempty"`
}

// DecideRequest records one approver verdict on the workflow's current stage.
type DecideRequest struct {
	WorkflowID string `json:"workflowId"`
	ApproverID string `json:"approverId"`
	Approve    bool   `json:"approve"`
	Comment    string `json:"comment,omitempty"`
}

// DecideResponse couples the recorded decision with its effect on the
// workflow.
type DecideResponse struct {
	// Outcome is pending, moved, completed or rejected
	Outcome model.Outcome `json:"outcome"`

	// Decision is the appended decision row
	Decision *model.Decision `json:"decision,omitempty"`

	// Stage is the stage instance the decision landed on
	Stage *model.StageInstance `json:"stage,omitempty"`

	// Workflow is the post-transition aggregate
	Workflow *model.Workflow `json:"workflow,omitempty"`
}

// Activity is the payload published for every lifecycle event.
type Activity struct {
	EventType string          `json:"eventType"`
	Workflow  *model.Workflow `json:"workflow"`
	Decision  *model.Decision `json:"decision,omitempty"`
	Outcome   model.Outcome   `json:"outcome,omitempty"`
}
