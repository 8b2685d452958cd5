package engine

import (
	"context"
	"log"

	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/progress"
	"github.com/gearmill/stagegate/service/event"
)

// publish emits one lifecycle event on the activity feed.  Publication is
// best effort and runs after the owning transaction committed; a failure is
// logged, never propagated.
func (s *service) publish(ctx context.Context, eventType string, workflow *model.Workflow, decision *model.Decision, outcome model.Outcome, actor string) {
	if s.events == nil || workflow == nil {
		return
	}
	publisher, err := event.PublisherOf[Activity](s.events)
	if err != nil {
		log.Printf("failed to resolve activity publisher: %v", err)
		return
	}
	eCtx := &event.Context{
		WorkflowID:  workflow.ID,
		SubjectKind: workflow.Subject.Kind,
		StageOrder:  workflow.CurrentStageOrder,
		EventType:   eventType,
		Actor:       actor,
	}
	anEvent := event.NewEvent[Activity](eCtx, Activity{
		EventType: eventType,
		Workflow:  workflow,
		Decision:  decision,
		Outcome:   outcome,
	})
	if err = publisher.Publish(ctx, anEvent); err != nil {
		log.Printf("failed to publish %v event: %v", eventType, err)
	}
}

// progressDelta reports how the stage counters moved between two views of
// the same workflow, for trackers travelling in the context.
func progressDelta(before, after progress.Counters) progress.Delta {
	return progress.Delta{
		Stages:    after.StageCount - before.StageCount,
		Completed: after.CompletedStages - before.CompletedStages,
		Skipped:   after.SkippedStages - before.SkippedStages,
		Rejected:  after.RejectedStages - before.RejectedStages,
		Decisions: after.Decisions - before.Decisions,
	}
}

// announce emits the decision event plus the lifecycle event its outcome
// implies.
func (s *service) announce(ctx context.Context, request *DecideRequest, response *DecideResponse) {
	s.publish(ctx, EventDecisionRecorded, response.Workflow, response.Decision, response.Outcome, request.ApproverID)
	switch response.Outcome {
	case model.OutcomeMoved:
		s.publish(ctx, EventStageAdvanced, response.Workflow, response.Decision, response.Outcome, request.ApproverID)
	case model.OutcomeCompleted:
		s.publish(ctx, EventWorkflowCompleted, response.Workflow, response.Decision, response.Outcome, request.ApproverID)
	case model.OutcomeRejected:
		s.publish(ctx, EventWorkflowRejected, response.Workflow, response.Decision, response.Outcome, request.ApproverID)
	}
}
