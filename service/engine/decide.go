package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/progress"
	"github.com/gearmill/stagegate/service/dao"
	"github.com/gearmill/stagegate/service/store"
	"github.com/gearmill/stagegate/tracing"
)

func (s *service) Decide(ctx context.Context, request *DecideRequest) (response *DecideResponse, err error) {
	if request == nil {
		return nil, fmt.Errorf("engine: nil decide request")
	}
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("engine.decide %s", request.WorkflowID), "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"workflow.id": request.WorkflowID, "approver.id": request.ApproverID})

	if request.WorkflowID == "" {
		return nil, dao.ErrInvalidID
	}
	if request.ApproverID == "" {
		return nil, fmt.Errorf("engine: approver id is empty")
	}

	response = &DecideResponse{}
	var before progress.Counters
	updated, err := s.workflows.Update(ctx, request.WorkflowID, func(workflow *model.Workflow) error {
		before = progress.Of(workflow)
		return s.record(workflow, request, response)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateDecision) {
			return nil, fmt.Errorf("approver %v on workflow %v: %w", request.ApproverID, request.WorkflowID, ErrAlreadyDecided)
		}
		return nil, err
	}

	// re-anchor the response on the committed aggregate
	response.Workflow = updated
	if response.Stage != nil {
		response.Stage = updated.StageAt(response.Stage.Order)
	}
	if response.Stage != nil && response.Decision != nil {
		response.Decision = response.Stage.DecisionBy(response.Decision.ApproverID)
	}
	span.WithAttributes(map[string]string{"outcome": string(response.Outcome)})
	progress.UpdateCtx(ctx, progressDelta(before, progress.Of(updated)))

	s.announce(ctx, request, response)
	return response, nil
}

// record validates and applies one verdict.  It runs under the store's
// exclusive workflow lock; returning an error rolls the whole transition
// back.
func (s *service) record(workflow *model.Workflow, request *DecideRequest, response *DecideResponse) error {
	if workflow.Terminal() {
		return fmt.Errorf("workflow %v is %v: %w", workflow.ID, workflow.State(), ErrWorkflowClosed)
	}
	stage := workflow.CurrentStage()
	if stage == nil {
		return fmt.Errorf("workflow %v has no stage at order %v: %w", workflow.ID, workflow.CurrentStageOrder, ErrStageClosed)
	}
	if !stage.Open() {
		return fmt.Errorf("stage %v of workflow %v: %w", stage.Order, workflow.ID, ErrStageClosed)
	}
	if request.ApproverID == workflow.RequesterID {
		return fmt.Errorf("approver %v: %w", request.ApproverID, ErrSelfApproval)
	}
	if !stage.HasApprover(request.ApproverID) {
		return fmt.Errorf("approver %v on stage %v: %w", request.ApproverID, stage.Order, ErrNotApprover)
	}
	if stage.DecisionBy(request.ApproverID) != nil {
		return fmt.Errorf("approver %v on stage %v: %w", request.ApproverID, stage.Order, ErrAlreadyDecided)
	}

	kind := model.DecisionReject
	if request.Approve {
		kind = model.DecisionApprove
	}
	decision := model.NewDecision(request.ApproverID, kind, request.Comment)
	stage.Append(decision)
	response.Decision = decision
	response.Stage = stage

	if !request.Approve {
		// reject closes stage and workflow, the pointer stays put
		stage.Rejected = true
		workflow.Finish(model.StateRejected)
		response.Outcome = model.OutcomeRejected
		return nil
	}

	stage.ApprovedCount++
	if stage.ApprovedCount < stage.RequiredApprovals {
		response.Outcome = model.OutcomePending
		return nil
	}
	stage.Completed = true
	s.autoAdvance(workflow)
	if workflow.Completed {
		response.Outcome = model.OutcomeCompleted
	} else {
		response.Outcome = model.OutcomeMoved
	}
	return nil
}

func (s *service) Cancel(ctx context.Context, workflowID, actorID string) (cancelled *model.Workflow, err error) {
	if workflowID == "" {
		return nil, dao.ErrInvalidID
	}
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("engine.cancel %s", workflowID), "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"workflow.id": workflowID, "actor.id": actorID})

	cancelled, err = s.workflows.Update(ctx, workflowID, func(workflow *model.Workflow) error {
		if workflow.Terminal() {
			return fmt.Errorf("workflow %v is %v: %w", workflow.ID, workflow.State(), ErrWorkflowClosed)
		}
		workflow.Finish(model.StateCancelled)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventWorkflowCancelled, cancelled, nil, model.OutcomeCancelled, actorID)
	return cancelled, nil
}
