package progress

import (
	"context"
	"sync"
	"time"

	"github.com/gearmill/stagegate/model"
)

// Delta represents an incremental counter change emitted by the engine as
// stages open, close or record decisions.  The fields are signed and
// therefore can be either positive (increment) or negative (decrement).
type Delta struct {
	Stages    int
	Completed int
	Skipped   int
	Rejected  int
	Decisions int
}

// Counters is the read-only view of a tracker.
type Counters struct {
	// Identification fields, informative only, filled when tracking starts.
	WorkflowID string
	Subject    string
	StartedAt  time.Time

	StageCount      int
	CompletedStages int
	SkippedStages   int
	RejectedStages  int
	Decisions       int
}

// OpenStages returns how many stages still await approvals.
func (c Counters) OpenStages() int {
	open := c.StageCount - c.CompletedStages - c.RejectedStages
	if open < 0 {
		return 0
	}
	return open
}

// Of derives counters from a stored aggregate, for dashboards that inspect
// workflows after the fact rather than observing them live.
func Of(workflow *model.Workflow) Counters {
	ret := Counters{}
	if workflow == nil {
		return ret
	}
	ret.WorkflowID = workflow.ID
	ret.Subject = workflow.Subject.String()
	ret.StartedAt = workflow.CreatedAt
	ret.StageCount = len(workflow.Stages)
	for _, stage := range workflow.Stages {
		ret.Decisions += len(stage.Decisions)
		switch {
		case stage.Rejected:
			ret.RejectedStages++
		case stage.Completed && len(stage.Decisions) == 0:
			ret.CompletedStages++
			ret.SkippedStages++
		case stage.Completed:
			ret.CompletedStages++
		}
	}
	return ret
}

// Progress keeps aggregated stage counters for one workflow.  It is safe for
// concurrent use.
type Progress struct {
	counters Counters
	mu       sync.Mutex
	onChange func(Counters)
}

// Update applies the supplied delta to the tracker.  It is safe to call from
// multiple goroutines.  If an onChange callback has been registered it is
// invoked with a copy of the updated counters outside the critical section so
// that the callback can perform slow operations (e.g. JSON encoding, I/O)
// without blocking engine internals.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}

	p.mu.Lock()
	p.counters.StageCount += d.Stages
	p.counters.CompletedStages += d.Completed
	p.counters.SkippedStages += d.Skipped
	p.counters.RejectedStages += d.Rejected
	p.counters.Decisions += d.Decisions
	snapshot := p.counters
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters suitable for read-only inspection.
func (p *Progress) Snapshot() Counters {
	if p == nil {
		return Counters{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// OnChange registers a callback that is invoked after every successful
// Update.  Passing nil disables the callback.  Only one callback can be
// active; subsequent calls overwrite the previous value.
func (p *Progress) OnChange(cb func(Counters)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

/* ---------------- context helpers ----------------------------- */

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a new Progress tracker, embeds it in a derived
// context and returns both.  The caller may optionally pass an onChange
// callback that will be invoked after every counter update.
func WithNewTracker(ctx context.Context, workflowID, subject string, onChange func(Counters)) (context.Context, *Progress) {
	if ctx == nil {
		ctx = context.Background()
	}
	tr := &Progress{
		counters: Counters{WorkflowID: workflowID, Subject: subject, StartedAt: time.Now()},
		onChange: onChange,
	}
	return context.WithValue(ctx, trackerKey, tr), tr
}

// FromContext extracts the Progress tracker from ctx.  The second return
// value is false when the context carries no tracker.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// GetSnapshot is a convenience wrapper that combines FromContext and
// Snapshot.  The boolean return value is false when the context does not
// carry a tracker.
func GetSnapshot(ctx context.Context) (Counters, bool) {
	if tr, ok := FromContext(ctx); ok {
		return tr.Snapshot(), true
	}
	return Counters{}, false
}

// UpdateCtx is a helper that looks up the tracker in ctx (if any) and applies
// the supplied delta.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
