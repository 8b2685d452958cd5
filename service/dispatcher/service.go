package dispatcher

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gearmill/stagegate/extension"
	"github.com/gearmill/stagegate/service/engine"
	"github.com/gearmill/stagegate/service/event"
)

// Config represents dispatcher configuration.
type Config struct {
	// WorkerCount is the number of workers delivering events to observers
	WorkerCount int

	// Buffer is the capacity of the in-flight event channel
	Buffer int
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		WorkerCount: 5,
		Buffer:      128,
	}
}

// Service drains the engine activity feed and hands terminal outcomes to the
// subject-kind handlers that registered an interest.
type Service struct {
	config Config
	events *event.Service
	kinds  *extension.Kinds

	jobs       chan *event.Event[engine.Activity]
	workers    []*worker
	workerWg   sync.WaitGroup
	shutdownCh chan struct{}
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New creates a dispatcher on top of an event service and a subject-kind
// registry.
func New(events *event.Service, kinds *extension.Kinds, options ...Option) (*Service, error) {
	s := &Service{
		config:     DefaultConfig(),
		events:     events,
		kinds:      kinds,
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.events == nil {
		return nil, fmt.Errorf("event service is required")
	}
	if s.kinds == nil {
		return nil, fmt.Errorf("kind registry is required")
	}
	return s, nil
}

// Start subscribes to the activity feed and begins delivering events.
func (s *Service) Start(ctx context.Context) error {
	s.jobs = make(chan *event.Event[engine.Activity], s.config.Buffer)
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		worker := &worker{
			id:       i,
			service:  s,
			ctx:      workerCtx,
			cancelFn: cancel,
		}
		s.workers = append(s.workers, worker)
		s.workerWg.Add(1)
		go worker.run()
	}
	return event.SetListenerOf[engine.Activity](s.events, s.enqueue)
}

// enqueue moves one event from the feed listener onto the worker channel.
func (s *Service) enqueue(anEvent *event.Event[engine.Activity]) {
	select {
	case s.jobs <- anEvent:
	case <-s.shutdownCh:
	}
}

// run delivers queued events until the worker context is cancelled.
func (w *worker) run() {
	defer w.service.workerWg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case anEvent := <-w.service.jobs:
			if anEvent == nil {
				continue
			}
			if err := w.service.dispatch(w.ctx, anEvent); err != nil {
				// observers run post commit, a failure never unwinds the decision
				log.Printf("worker %d: failed to dispatch %v event: %v", w.id, anEvent.Data.EventType, err)
			}
		}
	}
}

// dispatch routes one activity to the observer registered for its subject
// kind.  Events without a terminal outcome, or for kinds without an observer,
// are dropped silently.
func (s *Service) dispatch(ctx context.Context, anEvent *event.Event[engine.Activity]) error {
	activity := anEvent.Data
	if activity.Workflow == nil {
		return nil
	}
	handler := s.kinds.Lookup(activity.Workflow.Subject.Kind)
	if handler == nil {
		return nil
	}
	observer, ok := handler.(extension.OutcomeObserver)
	if !ok {
		return nil
	}
	switch activity.EventType {
	case engine.EventWorkflowCompleted, engine.EventWorkflowRejected, engine.EventWorkflowCancelled:
		return observer.OnOutcome(ctx, activity.Workflow, activity.Outcome)
	}
	return nil
}

// Shutdown stops the workers and waits for in-flight deliveries to finish.
func (s *Service) Shutdown() {
	close(s.shutdownCh)
	for _, worker := range s.workers {
		worker.cancelFn()
	}
	s.workerWg.Wait()
}
