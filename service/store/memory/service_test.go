package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/dao"
	"github.com/gearmill/stagegate/service/store"
)

func newTestWorkflow(id, kind, subjectID string) *model.Workflow {
	return &model.Workflow{
		ID:                id,
		Subject:           model.Ref{Kind: kind, ID: subjectID},
		PolicyID:          "pol-1",
		CurrentStageOrder: 1,
		Stages: []*model.StageInstance{
			{ID: id + "-s1", WorkflowID: id, Order: 1, Name: "Team Lead Approval", RequiredApprovals: 1, ApproverUserIDs: []string{"lead-1"}},
			{ID: id + "-s2", WorkflowID: id, Order: 2, Name: "Finance Approval", RequiredApprovals: 2, ApproverUserIDs: []string{"fin-1", "fin-2"}},
		},
	}
}

func TestService_CreateLoad(t *testing.T) {
	srv := New()
	ctx := context.Background()

	err := srv.Create(ctx, newTestWorkflow("wf-1", "expense", "exp-1"))
	assert.Nil(t, err)

	loaded, err := srv.Load(ctx, "wf-1")
	assert.Nil(t, err)
	assert.Equal(t, "wf-1", loaded.ID)
	assert.Equal(t, 2, len(loaded.Stages))

	// returned aggregates are private copies
	loaded.Stages[0].ApprovedCount = 99
	loaded.Stages[0].ApproverUserIDs[0] = "intruder"
	reloaded, err := srv.Load(ctx, "wf-1")
	assert.Nil(t, err)
	assert.Equal(t, 0, reloaded.Stages[0].ApprovedCount)
	assert.Equal(t, "lead-1", reloaded.Stages[0].ApproverUserIDs[0])

	err = srv.Create(ctx, newTestWorkflow("wf-1", "expense", "exp-1"))
	assert.True(t, errors.Is(err, store.ErrDuplicateWorkflow))

	// a subject carries at most one live workflow
	err = srv.Create(ctx, newTestWorkflow("wf-9", "expense", "exp-1"))
	assert.True(t, errors.Is(err, store.ErrDuplicateWorkflow))

	_, err = srv.Load(ctx, "missing")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}

func TestService_Update(t *testing.T) {
	srv := New()
	ctx := context.Background()
	assert.Nil(t, srv.Create(ctx, newTestWorkflow("wf-1", "expense", "exp-1")))

	updated, err := srv.Update(ctx, "wf-1", func(workflow *model.Workflow) error {
		stage := workflow.CurrentStage()
		stage.Append(&model.Decision{ID: "d-1", ApproverID: "lead-1", Kind: model.DecisionApprove})
		stage.ApprovedCount++
		stage.Completed = true
		workflow.CurrentStageOrder = 2
		return nil
	})
	assert.Nil(t, err)
	assert.Equal(t, 2, updated.CurrentStageOrder)

	loaded, err := srv.Load(ctx, "wf-1")
	assert.Nil(t, err)
	assert.True(t, loaded.Stages[0].Completed)
	assert.Equal(t, 1, len(loaded.Stages[0].Decisions))

	// a failing mutator leaves the aggregate untouched
	boom := errors.New("boom")
	_, err = srv.Update(ctx, "wf-1", func(workflow *model.Workflow) error {
		workflow.Cancelled = true
		return boom
	})
	assert.True(t, errors.Is(err, boom))
	loaded, err = srv.Load(ctx, "wf-1")
	assert.Nil(t, err)
	assert.False(t, loaded.Cancelled)

	// the duplicate decision constraint rolls the mutation back
	_, err = srv.Update(ctx, "wf-1", func(workflow *model.Workflow) error {
		workflow.Stages[0].Append(&model.Decision{ID: "d-2", ApproverID: "lead-1", Kind: model.DecisionApprove})
		return nil
	})
	assert.True(t, errors.Is(err, store.ErrDuplicateDecision))
	loaded, err = srv.Load(ctx, "wf-1")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(loaded.Stages[0].Decisions))

	_, err = srv.Update(ctx, "missing", func(workflow *model.Workflow) error { return nil })
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}

func TestService_List(t *testing.T) {
	srv := New(WithWorkflows(
		newTestWorkflow("wf-1", "expense", "exp-1"),
		newTestWorkflow("wf-2", "expense", "exp-2"),
		newTestWorkflow("wf-3", "overtime", "ot-1"),
	))
	ctx := context.Background()

	_, err := srv.Update(ctx, "wf-2", func(workflow *model.Workflow) error {
		workflow.Finish(model.StateCancelled)
		return nil
	})
	assert.Nil(t, err)

	all, err := srv.List(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 3, len(all))

	active, err := srv.List(ctx, dao.ByState(model.StateActive))
	assert.Nil(t, err)
	assert.Equal(t, 2, len(active))

	expenses, err := srv.List(ctx, dao.BySubjectKind("expense"))
	assert.Nil(t, err)
	assert.Equal(t, 2, len(expenses))

	one, err := srv.List(ctx, &dao.Parameter{Name: dao.ParamSubject, Value: model.Ref{Kind: "overtime", ID: "ot-1"}})
	assert.Nil(t, err)
	if assert.Equal(t, 1, len(one)) {
		assert.Equal(t, "wf-3", one[0].ID)
	}
}

func TestService_Verify(t *testing.T) {
	srv := New(WithWorkflows(newTestWorkflow("wf-1", "expense", "exp-1")))
	ctx := context.Background()

	issues, err := srv.Verify(ctx, "wf-1")
	assert.Nil(t, err)
	assert.Equal(t, 0, len(issues))

	_, err = srv.Update(ctx, "wf-1", func(workflow *model.Workflow) error {
		workflow.Stages[0].ApprovedCount = 5
		return nil
	})
	assert.Nil(t, err)

	issues, err = srv.Verify(ctx, "wf-1")
	assert.Nil(t, err)
	if assert.Equal(t, 1, len(issues)) {
		assert.Contains(t, issues[0], "approved count")
	}
}

func TestService_Delete(t *testing.T) {
	srv := New(WithWorkflows(newTestWorkflow("wf-1", "expense", "exp-1")))
	ctx := context.Background()

	assert.Nil(t, srv.Delete(ctx, "wf-1"))
	_, err := srv.Load(ctx, "wf-1")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	assert.True(t, errors.Is(srv.Delete(ctx, "wf-1"), dao.ErrNotFound))
}
