// Package memory implements the messaging contract on a buffered channel.
// It is the default vendor: no configuration, no persistence, suitable for
// embedding the engine in a single process.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gearmill/stagegate/service/messaging"
)

// Vendor is the name this implementation is selected by.
const Vendor = messaging.Vendor("memory")

// Config controls redelivery behaviour of the in-memory queue.
type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	DeadLetter  bool
	QueueBuffer int
}

// DefaultConfig returns the settings used when callers pass a zero Config.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		DeadLetter:  true,
		QueueBuffer: 100,
	}
}

// Queue is a channel-backed messaging.Queue. Nacked messages are redelivered
// after RetryDelay until MaxRetries is exhausted, then parked on the dead
// letter list when DeadLetter is set.
type Queue[T any] struct {
	buffer chan *Message[T]
	config Config

	deadMu sync.Mutex
	dead   []*Message[T]
}

// NewQueue creates a queue with the given config.
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		buffer: make(chan *Message[T], config.QueueBuffer),
		config: config,
	}
}

// Publish enqueues a payload, blocking when the buffer is full.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &Message[T]{payload: *t, queue: q}
	select {
	case q.buffer <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns the next message or blocks until ctx is done.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.buffer:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size reports how many messages are waiting for delivery.
func (q *Queue[T]) Size() int {
	return len(q.buffer)
}

// DLQSize reports how many messages exhausted their retries.
func (q *Queue[T]) DLQSize() int {
	q.deadMu.Lock()
	defer q.deadMu.Unlock()
	return len(q.dead)
}

func (q *Queue[T]) park(m *Message[T]) {
	q.deadMu.Lock()
	q.dead = append(q.dead, m)
	q.deadMu.Unlock()
}

// Message is a single in-flight delivery. Each delivery is settled exactly
// once via Ack or Nack.
type Message[T any] struct {
	payload  T
	queue    *Queue[T]
	attempts int

	mu      sync.Mutex
	settled bool
}

// T returns the payload.
func (m *Message[T]) T() *T {
	return &m.payload
}

// Ack settles the message as processed.
func (m *Message[T]) Ack() error {
	return m.settle(func() {})
}

// Nack settles the message as failed and arranges redelivery. Once retries
// are exhausted the message moves to the dead letter list.
func (m *Message[T]) Nack(err error) error {
	return m.settle(func() {
		m.attempts++
		if m.attempts <= m.queue.config.MaxRetries {
			next := &Message[T]{payload: m.payload, queue: m.queue, attempts: m.attempts}
			time.AfterFunc(m.queue.config.RetryDelay, func() {
				m.queue.buffer <- next
			})
			return
		}
		if m.queue.config.DeadLetter {
			m.queue.park(m)
		}
	})
}

func (m *Message[T]) settle(then func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message already settled")
	}
	m.settled = true
	then()
	return nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
