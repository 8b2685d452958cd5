package engine

import "errors"

// The recorder rejects invalid decisions synchronously and mutates nothing
// when it does.  Configuration failures reuse catalog.ErrNoPolicy; the
// sentinels below cover authorization, duplication and terminal-state
// failures.  Callers detect them with errors.Is.

var (
	// ErrWorkflowClosed guards against decisions and cancellation arriving
	// after the workflow reached a terminal state.
	ErrWorkflowClosed = errors.New("engine: workflow already closed")

	// ErrStageClosed is returned when the current stage no longer accepts
	// decisions.
	ErrStageClosed = errors.New("engine: stage not open")

	// ErrNotApprover is returned when the decider is not in the stage's
	// resolved approver set.
	ErrNotApprover = errors.New("engine: not an eligible approver")

	// ErrSelfApproval is returned when the requester attempts to decide on
	// their own submission.
	ErrSelfApproval = errors.New("engine: requester cannot decide own request")

	// ErrAlreadyDecided is returned when the approver already holds a
	// decision on the stage.
	ErrAlreadyDecided = errors.New("engine: duplicate decision")

	// ErrActiveWorkflow is returned by Submit when the subject is already
	// tracked by a live workflow.
	ErrActiveWorkflow = errors.New("engine: subject already has an active workflow")
)
