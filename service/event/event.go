// Package event distributes workflow lifecycle notifications. The engine
// publishes an Event per recorded decision or state change; the dispatcher
// and any other subscriber receive them through type-scoped queues backed by
// the configured messaging vendor.
package event

import "time"

// Context identifies the workflow activity an event originated from.
type Context struct {
	WorkflowID  string `json:"workflowID"`
	SubjectKind string `json:"subjectKind,omitempty"`
	StageOrder  int    `json:"stageOrder,omitempty"`
	EventType   string `json:"eventType"`
	Actor       string `json:"actor,omitempty"`
}

// Event wraps a typed payload with the workflow context it belongs to.
// CreatedAt is stamped when the event is published.
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

// NewEvent builds an event carrying data for the given context.
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
