package event

import (
	"context"
	"time"

	"github.com/gearmill/stagegate/service/messaging"
)

// Publisher emits typed events onto its queue and hands consumed ones to
// listeners. One publisher exists per payload type, shared by all callers.
type Publisher[T any] struct {
	queue messaging.Queue[Event[T]]
}

// NewPublisher wraps a queue.
func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue}
}

// Publish stamps the event and enqueues it.
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = time.Now()
	return p.queue.Publish(ctx, event)
}

// Consume returns the next event, acknowledging it on receipt. A nil event
// with a nil error means the queue is currently empty.
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	message, err := p.queue.Consume(ctx)
	if err != nil || message == nil {
		return nil, err
	}
	if err = message.Ack(); err != nil {
		return nil, err
	}
	return message.T(), nil
}
