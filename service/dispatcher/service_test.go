package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gearmill/stagegate/extension"
	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/engine"
	"github.com/gearmill/stagegate/service/event"
	"github.com/gearmill/stagegate/service/messaging/memory"
)

type observed struct {
	workflowID string
	outcome    model.Outcome
}

type expenseHandler struct {
	outcomes chan observed
}

func (h *expenseHandler) Kind() string { return "expense" }

func (h *expenseHandler) OnOutcome(ctx context.Context, workflow *model.Workflow, outcome model.Outcome) error {
	h.outcomes <- observed{workflowID: workflow.ID, outcome: outcome}
	return nil
}

func newTestFeed(t *testing.T) *event.Service {
	t.Helper()
	events, err := event.New(memory.Vendor, event.WithNewMemoryQueueConfig(func(name string) memory.Config {
		return memory.DefaultConfig()
	}))
	assert.Nil(t, err)
	return events
}

func TestService_Dispatch(t *testing.T) {
	events := newTestFeed(t)
	handler := &expenseHandler{outcomes: make(chan observed, 4)}
	kinds := extension.NewKinds()
	kinds.Register(handler)

	service, err := New(events, kinds, WithWorkers(2))
	assert.Nil(t, err)
	ctx := context.Background()
	assert.Nil(t, service.Start(ctx))
	defer service.Shutdown()

	workflow := model.NewWorkflow(model.Ref{Kind: "expense", ID: "exp-1"}, "req-1", "policy-1")
	workflow.Finish(model.StateCompleted)

	publisher, err := event.PublisherOf[engine.Activity](events)
	assert.Nil(t, err)

	// a non terminal event passes through without a delivery
	err = publisher.Publish(ctx, event.NewEvent(&event.Context{WorkflowID: workflow.ID, EventType: engine.EventDecisionRecorded},
		engine.Activity{EventType: engine.EventDecisionRecorded, Workflow: workflow, Outcome: model.OutcomePending}))
	assert.Nil(t, err)

	err = publisher.Publish(ctx, event.NewEvent(&event.Context{WorkflowID: workflow.ID, EventType: engine.EventWorkflowCompleted},
		engine.Activity{EventType: engine.EventWorkflowCompleted, Workflow: workflow, Outcome: model.OutcomeCompleted}))
	assert.Nil(t, err)

	select {
	case delivery := <-handler.outcomes:
		assert.Equal(t, workflow.ID, delivery.workflowID)
		assert.Equal(t, model.OutcomeCompleted, delivery.outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("observer was not invoked")
	}

	// the decision event must not have produced a second delivery
	select {
	case delivery := <-handler.outcomes:
		t.Fatalf("unexpected delivery: %+v", delivery)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestService_DispatchUnknownKind(t *testing.T) {
	events := newTestFeed(t)
	handler := &expenseHandler{outcomes: make(chan observed, 1)}
	kinds := extension.NewKinds()
	kinds.Register(handler)

	service, err := New(events, kinds)
	assert.Nil(t, err)
	ctx := context.Background()
	assert.Nil(t, service.Start(ctx))
	defer service.Shutdown()

	workflow := model.NewWorkflow(model.Ref{Kind: "overtime", ID: "ot-1"}, "req-1", "policy-1")
	workflow.Finish(model.StateRejected)

	publisher, err := event.PublisherOf[engine.Activity](events)
	assert.Nil(t, err)
	err = publisher.Publish(ctx, event.NewEvent(&event.Context{WorkflowID: workflow.ID, EventType: engine.EventWorkflowRejected},
		engine.Activity{EventType: engine.EventWorkflowRejected, Workflow: workflow, Outcome: model.OutcomeRejected}))
	assert.Nil(t, err)

	select {
	case delivery := <-handler.outcomes:
		t.Fatalf("unexpected delivery for unregistered kind: %+v", delivery)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNew_Validation(t *testing.T) {
	events := newTestFeed(t)
	_, err := New(nil, extension.NewKinds())
	assert.NotNil(t, err)
	_, err = New(events, nil)
	assert.NotNil(t, err)
}
