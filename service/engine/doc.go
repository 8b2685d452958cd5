// Package engine implements the approval workflow engine: policy selection,
// workflow instantiation with a frozen configuration snapshot, quorum
// tracking, decision recording and the auto-advance rules that skip
// approver-less stages and bypass the requester.
//
// Every state transition runs inside the workflow store's exclusive lock, so
// concurrent decisions on the same workflow serialize and the second decider
// always observes post-transition state.  Side effects (events, collaborator
// callbacks) happen only after a transition committed.
package engine
