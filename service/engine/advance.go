package engine

import (
	"github.com/gearmill/stagegate/model"
)

// autoAdvance applies the two advance rules to a fixed point: stages with no
// eligible approver are skipped, and stages gated on the requester are
// bypassed or shrunk.  The loop ends with the pointer on a stage that needs
// a decision from someone other than the requester, or with the workflow
// finished.  Both rules are idempotent and safe to re-run after any
// transition.
func (s *service) autoAdvance(workflow *model.Workflow) {
	for !workflow.Terminal() {
		stage := workflow.CurrentStage()
		if stage == nil {
			workflow.Finish(model.StateCompleted)
			return
		}
		if !stage.Open() {
			s.moveOn(workflow, stage.Order)
			continue
		}

		// skip-empty-stage: nobody can decide, close without a decision
		if len(stage.ApproverUserIDs) == 0 {
			stage.Completed = true
			s.moveOn(workflow, stage.Order)
			continue
		}

		requester := workflow.RequesterID
		if requester == "" || !stage.HasApprover(requester) {
			return
		}

		// self-bypass, sole approver: approve on the system's authority
		if len(stage.ApproverUserIDs) == 1 {
			decision := model.NewDecision(model.SystemUserID, model.DecisionApprove, "requester is the sole approver")
			stage.Append(decision)
			stage.ApprovedCount = stage.RequiredApprovals
			stage.Completed = true
			s.moveOn(workflow, stage.Order)
			continue
		}

		// self-bypass, shared stage: drop the requester and shrink the
		// quorum to the remaining approvers, never below progress made
		stage.RemoveApprover(requester)
		if remaining := len(stage.ApproverUserIDs); stage.RequiredApprovals > remaining {
			stage.RequiredApprovals = remaining
		}
		if stage.RequiredApprovals < stage.ApprovedCount {
			stage.RequiredApprovals = stage.ApprovedCount
		}
		if stage.ApprovedCount > 0 && stage.ApprovedCount >= stage.RequiredApprovals {
			stage.Completed = true
			s.moveOn(workflow, stage.Order)
			continue
		}
		return
	}
}

// moveOn advances the stage pointer past the given order to the next open
// stage, or finishes the workflow when none remains.
func (s *service) moveOn(workflow *model.Workflow, order int) {
	next := workflow.NextOpenStage(order)
	if next == nil {
		workflow.Finish(model.StateCompleted)
		return
	}
	workflow.CurrentStageOrder = next.Order
}
