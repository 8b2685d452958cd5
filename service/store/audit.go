package store

import (
	"fmt"

	"github.com/gearmill/stagegate/model"
)

// Audit recomputes derived workflow state from the recorded decisions and
// returns one message per discrepancy.  An empty result means the aggregate
// is internally consistent.
func Audit(workflow *model.Workflow) []string {
	var issues []string
	report := func(format string, args ...interface{}) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	terminal := 0
	for _, set := range []bool{workflow.Completed, workflow.Rejected, workflow.Cancelled} {
		if set {
			terminal++
		}
	}
	if terminal > 1 {
		report("workflow %v carries more than one terminal flag", workflow.ID)
	}

	seenOrder := map[int]bool{}
	rejectedStages := 0
	openStages := 0
	for _, stage := range workflow.Stages {
		if stage.Order < 1 {
			report("stage %v has non-positive order %v", stage.ID, stage.Order)
		}
		if seenOrder[stage.Order] {
			report("stage order %v occurs more than once", stage.Order)
		}
		seenOrder[stage.Order] = true
		if stage.Open() {
			openStages++
		}
		if stage.Rejected {
			rejectedStages++
		}

		approvals := 0
		rejections := 0
		system := false
		byApprover := map[string]bool{}
		for _, decision := range stage.Decisions {
			if decision.StageInstanceID != stage.ID {
				report("decision %v recorded on stage %v but references %v", decision.ID, stage.ID, decision.StageInstanceID)
			}
			if byApprover[decision.ApproverID] {
				report("stage %v holds more than one decision by %v", stage.Order, decision.ApproverID)
			}
			byApprover[decision.ApproverID] = true
			if decision.ApproverID == model.SystemUserID {
				system = true
			} else if !stage.HasApprover(decision.ApproverID) {
				report("stage %v holds a decision by %v who is not in the approver set", stage.Order, decision.ApproverID)
			}
			switch decision.Kind {
			case model.DecisionApprove:
				approvals++
			case model.DecisionReject:
				rejections++
			default:
				report("decision %v has unknown kind %v", decision.ID, decision.Kind)
			}
		}
		// Two stage shapes close legitimately short of quorum-many human
		// approvals: skip-empty closes with no decisions at all, and the
		// self-bypass rule closes on a single system-authored approval with
		// the approved count raised to the quorum.
		bypassed := system && stage.ApprovedCount == stage.RequiredApprovals
		skipped := len(stage.Decisions) == 0 && len(stage.ApproverUserIDs) == 0
		if stage.ApprovedCount != approvals && !bypassed {
			report("stage %v approved count %v does not match %v recorded approvals", stage.Order, stage.ApprovedCount, approvals)
		}
		if stage.Completed && approvals < stage.RequiredApprovals && !bypassed && !skipped {
			report("stage %v completed with %v of %v required approvals", stage.Order, approvals, stage.RequiredApprovals)
		}
		if stage.Rejected && rejections == 0 {
			report("stage %v rejected without a rejecting decision", stage.Order)
		}
	}

	switch {
	case workflow.Rejected && rejectedStages == 0:
		report("workflow %v rejected without a rejected stage", workflow.ID)
	case workflow.Completed && openStages > 0:
		report("workflow %v completed with %v open stages", workflow.ID, openStages)
	case !workflow.Terminal():
		current := workflow.CurrentStage()
		if current == nil {
			report("workflow %v active with no stage at order %v", workflow.ID, workflow.CurrentStageOrder)
		} else if !current.Open() {
			report("workflow %v active on closed stage %v", workflow.ID, current.Order)
		}
	}
	return issues
}
