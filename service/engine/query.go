package engine

import (
	"context"
	"fmt"

	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/dao"
)

func (s *service) Lookup(ctx context.Context, workflowID string) (*model.Workflow, error) {
	return s.workflows.Load(ctx, workflowID)
}

func (s *service) PendingFor(ctx context.Context, userID string) ([]*model.Workflow, error) {
	if userID == "" {
		return nil, fmt.Errorf("engine: user id is empty")
	}
	active, err := s.workflows.List(ctx, dao.ByState(model.StateActive))
	if err != nil {
		return nil, err
	}
	var out []*model.Workflow
	for _, workflow := range active {
		stage := workflow.CurrentStage()
		if stage == nil || !stage.Open() {
			continue
		}
		if !stage.HasApprover(userID) || stage.DecisionBy(userID) != nil {
			continue
		}
		out = append(out, workflow)
	}
	return out, nil
}

func (s *service) Verify(ctx context.Context, workflowID string) ([]string, error) {
	return s.workflows.Verify(ctx, workflowID)
}

// Drift compares the workflow's frozen snapshot with the live catalog entry
// and renders the divergence as a unified diff.
func (s *service) Drift(ctx context.Context, workflowID string) (string, model.DiffStats, error) {
	workflow, err := s.workflows.Load(ctx, workflowID)
	if err != nil {
		return "", model.DiffStats{}, err
	}
	if workflow.Snapshot == nil {
		return "", model.DiffStats{}, fmt.Errorf("workflow %v carries no snapshot", workflowID)
	}
	policy, err := s.catalog.Load(ctx, workflow.PolicyID)
	if err != nil {
		return "", model.DiffStats{}, err
	}
	return workflow.Snapshot.Diff(policy)
}
