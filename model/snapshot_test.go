package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSnapshotFreezesConfiguration(t *testing.T) {
	defer stubIdentity(t)()

	policy := NewPolicy("expense-default").
		AddStage(NewStage(2, "Finance Approval", 2).WithGroups("finance-approvers")).
		AddStage(NewStage(1, "Team Lead Approval", 1).WithApprovers("lead-1").WithGroups("team-leads"))
	policy.ID = "p-1"

	snapshot := NewSnapshot(policy)

	assert.Equal(t, "p-1", snapshot.Policy.ID)
	assert.Equal(t, "expense-default", snapshot.Policy.Name)
	assert.False(t, snapshot.TakenAt.IsZero())

	// Stages are frozen in order regardless of declaration order
	if assert.Len(t, snapshot.Stages, 2) {
		assert.Equal(t, 1, snapshot.Stages[0].Order)
		assert.Equal(t, "Team Lead Approval", snapshot.Stages[0].Name)
		assert.Equal(t, []string{"lead-1"}, snapshot.Stages[0].UserIDs)
		assert.Equal(t, []string{"team-leads"}, snapshot.Stages[0].GroupIDs)
		assert.Equal(t, 2, snapshot.Stages[1].Order)
		assert.Equal(t, 2, snapshot.Stages[1].RequiredApprovals)
	}

	// Later edits to the policy do not leak into the snapshot
	policy.Stages[0].RequiredApprovals = 5
	policy.Stages[1].ApproverUserIDs[0] = "someone-else"
	assert.Equal(t, 2, snapshot.Stages[1].RequiredApprovals)
	assert.Equal(t, []string{"lead-1"}, snapshot.Stages[0].UserIDs)
}

func TestSnapshotDiff(t *testing.T) {
	defer stubIdentity(t)()

	policy := NewPolicy("expense-default").
		AddStage(NewStage(1, "Team Lead Approval", 1).WithGroups("team-leads")).
		AddStage(NewStage(2, "Finance Approval", 2).WithGroups("finance-approvers"))
	policy.ID = "p-1"

	snapshot := NewSnapshot(policy)

	// Unchanged policy yields an empty diff
	patch, stats, err := snapshot.Diff(policy)
	assert.NoError(t, err)
	assert.Empty(t, patch)
	assert.Equal(t, DiffStats{}, stats)

	// Drifted policy yields a unified diff with the changed quorum
	policy.Stage(2).RequiredApprovals = 3
	patch, stats, err = snapshot.Diff(policy)
	assert.NoError(t, err)
	assert.NotEmpty(t, patch)
	assert.Contains(t, patch, "expense-default (snapshot)")
	assert.Contains(t, patch, "expense-default (current)")
	assert.True(t, strings.Contains(patch, "quorum: 2"))
	assert.True(t, strings.Contains(patch, "quorum: 3"))
	assert.True(t, stats.Added > 0)
	assert.True(t, stats.Removed > 0)
}
