package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gearmill/stagegate/model"
)

func TestTracker(t *testing.T) {
	ctx, tracker := WithNewTracker(context.Background(), "wf-1", "expense/exp-1", nil)

	UpdateCtx(ctx, Delta{Stages: 3})
	UpdateCtx(ctx, Delta{Completed: 1, Skipped: 1})
	UpdateCtx(ctx, Delta{Decisions: 1, Completed: 1})

	snapshot := tracker.Snapshot()
	assert.Equal(t, "wf-1", snapshot.WorkflowID)
	assert.Equal(t, 3, snapshot.StageCount)
	assert.Equal(t, 2, snapshot.CompletedStages)
	assert.Equal(t, 1, snapshot.SkippedStages)
	assert.Equal(t, 1, snapshot.Decisions)
	assert.Equal(t, 1, snapshot.OpenStages())

	viaContext, ok := GetSnapshot(ctx)
	assert.True(t, ok)
	assert.Equal(t, snapshot, viaContext)

	_, ok = GetSnapshot(context.Background())
	assert.False(t, ok)
}

func TestTracker_OnChange(t *testing.T) {
	var seen []Counters
	ctx, _ := WithNewTracker(context.Background(), "wf-1", "expense/exp-1", func(c Counters) {
		seen = append(seen, c)
	})

	UpdateCtx(ctx, Delta{Stages: 2})
	UpdateCtx(ctx, Delta{Rejected: 1})

	if assert.Equal(t, 2, len(seen)) {
		assert.Equal(t, 2, seen[1].StageCount)
		assert.Equal(t, 1, seen[1].RejectedStages)
	}
}

func TestOf(t *testing.T) {
	workflow := model.NewWorkflow(model.Ref{Kind: "expense", ID: "exp-1"}, "req-1", "policy-1")
	first := model.NewStageInstance(workflow.ID, model.NewStage(1, "Vacant", 1), nil, nil)
	first.Completed = true
	second := model.NewStageInstance(workflow.ID, model.NewStage(2, "Finance", 2), []string{"fin-1", "fin-2"}, nil)
	second.Decisions = append(second.Decisions, model.NewDecision("fin-1", model.DecisionApprove, ""))
	second.ApprovedCount = 1
	workflow.Stages = append(workflow.Stages, first, second)

	counters := Of(workflow)
	assert.Equal(t, 2, counters.StageCount)
	assert.Equal(t, 1, counters.CompletedStages)
	assert.Equal(t, 1, counters.SkippedStages)
	assert.Equal(t, 1, counters.Decisions)
	assert.Equal(t, 1, counters.OpenStages())
	assert.Equal(t, "expense/exp-1", counters.Subject)
}
