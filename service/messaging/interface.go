// Package messaging defines the queue contract the event layer publishes
// workflow lifecycle activity through. Implementations live in subpackages,
// one per vendor.
package messaging

import (
	"context"
)

// Vendor names a queue implementation, e.g. "memory" or "fs".
type Vendor string

// Queue transports typed payloads between the engine and its consumers.
type Queue[T any] interface {
	// Publish enqueues a payload.
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a message is available or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a consumed payload awaiting acknowledgement. A message stays
// in-flight until Ack or Nack; Nack requeues it subject to the vendor's
// retry policy.
type Message[T any] interface {
	// T returns the payload.
	T() *T

	// Ack marks the message processed.
	Ack() error

	// Nack reports a processing failure so the message can be retried.
	Nack(err error) error
}
