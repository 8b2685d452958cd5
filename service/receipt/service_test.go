package receipt

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/scy"

	"github.com/gearmill/stagegate/model"
)

func newHMACConfig(t *testing.T, ctx context.Context) *Config {
	t.Helper()
	fs := afs.New()
	keyURL := "mem://localhost/stagegate/receipt/hmac.key"
	encoded := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	err := fs.Upload(ctx, keyURL, file.DefaultFileOsMode, strings.NewReader(encoded))
	assert.Nil(t, err)
	return &Config{HMAC: &scy.Resource{URL: keyURL}}
}

func decidedWorkflow() (*model.Workflow, *model.Decision) {
	workflow := model.NewWorkflow(model.Ref{Kind: "expense", ID: "exp-9"}, "req-1", "policy-1")
	stage := model.NewStageInstance(workflow.ID, model.NewStage(1, "Finance Approval", 1), []string{"fin-1"}, nil)
	decision := model.NewDecision("fin-1", model.DecisionApprove, "all good")
	decision.StageInstanceID = stage.ID
	stage.Decisions = append(stage.Decisions, decision)
	stage.ApprovedCount = 1
	stage.Completed = true
	workflow.Stages = append(workflow.Stages, stage)
	workflow.CurrentStageOrder = 1
	workflow.Finish(model.StateCompleted)
	return workflow, decision
}

func TestService_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	service := New(newHMACConfig(t, ctx))
	workflow, decision := decidedWorkflow()

	receipt, err := service.IssueDecision(ctx, workflow, decision.ID)
	assert.Nil(t, err)
	if !assert.NotNil(t, receipt) {
		return
	}
	assert.Equal(t, workflow.ID, receipt.Body.WorkflowID)
	assert.Equal(t, "fin-1", receipt.Body.ApproverID)
	assert.Equal(t, string(model.DecisionApprove), receipt.Body.Verdict)
	assert.Equal(t, model.StateCompleted, receipt.Body.Outcome)
	assert.NotEqual(t, "", receipt.Digest)
	assert.NotEqual(t, "", receipt.Token)

	assert.Nil(t, service.Verify(ctx, receipt))

	// altering the body invalidates the sealed digest
	tampered := *receipt
	tampered.Body.ApproverID = "someone-else"
	assert.True(t, errors.Is(service.Verify(ctx, &tampered), ErrTampered))
}

func TestService_IssueOutcome(t *testing.T) {
	ctx := context.Background()
	service := New(newHMACConfig(t, ctx))
	workflow, _ := decidedWorkflow()

	receipt, err := service.IssueOutcome(ctx, workflow)
	assert.Nil(t, err)
	if assert.NotNil(t, receipt) {
		assert.Equal(t, model.StateCompleted, receipt.Body.Outcome)
		assert.Equal(t, "", receipt.Body.DecisionID)
		assert.Nil(t, service.Verify(ctx, receipt))
	}

	// outcome receipts only attest terminal workflows
	active := model.NewWorkflow(model.Ref{Kind: "expense", ID: "exp-10"}, "req-1", "policy-1")
	_, err = service.IssueOutcome(ctx, active)
	assert.NotNil(t, err)
}

func TestService_ErrorPaths(t *testing.T) {
	ctx := context.Background()
	workflow, decision := decidedWorkflow()

	unconfigured := New(nil)
	_, err := unconfigured.IssueDecision(ctx, workflow, decision.ID)
	assert.True(t, errors.Is(err, ErrNoKey))

	service := New(newHMACConfig(t, ctx))
	_, err = service.IssueDecision(ctx, workflow, "no-such-decision")
	assert.NotNil(t, err)

	assert.True(t, errors.Is(service.Verify(ctx, &Receipt{}), ErrUnsigned))
}
