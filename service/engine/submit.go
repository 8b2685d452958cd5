package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/gearmill/stagegate/extension"
	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/progress"
	"github.com/gearmill/stagegate/service/catalog"
	"github.com/gearmill/stagegate/service/store"
	"github.com/gearmill/stagegate/tracing"
)

func (s *service) Submit(ctx context.Context, request *SubmitRequest) (workflow *model.Workflow, err error) {
	if request == nil {
		return nil, fmt.Errorf("engine: nil submit request")
	}
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("engine.submit %s", request.Subject), "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"subject.kind": request.Subject.Kind, "subject.id": request.Subject.ID})

	if request.Subject.Kind == "" || request.Subject.ID == "" {
		return nil, fmt.Errorf("engine: subject reference is incomplete")
	}
	if request.RequesterID == "" {
		return nil, fmt.Errorf("engine: requester id is empty")
	}
	policy, err := s.selectPolicy(ctx, request)
	if err != nil {
		return nil, err
	}
	workflow, err = s.instantiate(ctx, request, policy)
	if err != nil {
		return nil, err
	}

	// the advance rules run before persistence so creation commits the
	// post-advance state in one unit
	s.autoAdvance(workflow)

	if err = s.workflows.Create(ctx, workflow); err != nil {
		if errors.Is(err, store.ErrDuplicateWorkflow) {
			return nil, fmt.Errorf("subject %v/%v: %w", request.Subject.Kind, request.Subject.ID, ErrActiveWorkflow)
		}
		return nil, err
	}
	span.WithAttributes(map[string]string{"workflow.id": workflow.ID, "policy.id": workflow.PolicyID})
	progress.UpdateCtx(ctx, progressDelta(progress.Counters{}, progress.Of(workflow)))
	s.publish(ctx, EventWorkflowSubmitted, workflow, nil, "", request.RequesterID)
	if workflow.Completed {
		s.publish(ctx, EventWorkflowCompleted, workflow, nil, model.OutcomeCompleted, model.SystemUserID)
	}
	return workflow, nil
}

// selectPolicy resolves the governing policy, either pinned by id or matched
// through the catalog.  A policy without stages can never govern a
// submission.
func (s *service) selectPolicy(ctx context.Context, request *SubmitRequest) (*model.Policy, error) {
	if request.PolicyID != "" {
		policy, err := s.catalog.Load(ctx, request.PolicyID)
		if err != nil {
			return nil, err
		}
		if !policy.Active || len(policy.Stages) == 0 {
			return nil, fmt.Errorf("policy %v cannot govern submissions: %w", request.PolicyID, catalog.ErrNoPolicy)
		}
		return policy, nil
	}
	policy, err := s.catalog.Select(ctx, request.Subject.Kind, request.Attributes)
	if err != nil {
		return nil, err
	}
	if len(policy.Stages) == 0 {
		return nil, fmt.Errorf("policy %v has no stages: %w", policy.Name, catalog.ErrNoPolicy)
	}
	return policy, nil
}

// instantiate materialises the workflow aggregate: one stage instance per
// template with the approver set resolved exactly once, plus the frozen
// snapshot.
func (s *service) instantiate(ctx context.Context, request *SubmitRequest, policy *model.Policy) (*model.Workflow, error) {
	workflow := model.NewWorkflow(request.Subject, request.RequesterID, policy.ID)
	workflow.Snapshot = model.NewSnapshot(policy)
	stages := policy.OrderedStages()
	for _, template := range stages {
		userIDs, groupIDs, err := s.resolveStage(ctx, request.Subject, template)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve stage %v approvers: %w", template.Order, err)
		}
		workflow.Stages = append(workflow.Stages, model.NewStageInstance(workflow.ID, template, userIDs, groupIDs))
	}
	workflow.CurrentStageOrder = stages[0].Order
	return workflow, nil
}

// resolveStage expands the template approver configuration into the frozen
// per-stage user set.  A registered subject-kind handler may override
// resolution; its user list is taken as final and its group ids are kept for
// audit only.
func (s *service) resolveStage(ctx context.Context, subject model.Ref, template *model.Stage) ([]string, []string, error) {
	if s.kinds != nil {
		if handler := s.kinds.Lookup(subject.Kind); handler != nil {
			if resolver, ok := handler.(extension.StageResolver); ok {
				userIDs, groupIDs, err := resolver.ResolveStage(ctx, subject, template)
				if err != nil {
					return nil, nil, err
				}
				return dedupe(userIDs), groupIDs, nil
			}
		}
	}
	resolved, err := s.directory.Resolve(ctx, template.ApproverUserIDs, template.ApproverGroupIDs)
	if err != nil {
		return nil, nil, err
	}
	return resolved, append([]string(nil), template.ApproverGroupIDs...), nil
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
