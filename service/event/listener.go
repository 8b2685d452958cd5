package event

import (
	"context"
	"log"
	"time"
)

// Listener pumps events from a publisher into a handler on a dedicated
// goroutine until stopped.
type Listener[T any] struct {
	source  *Publisher[T]
	handler func(*Event[T])
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewListener binds a handler to a publisher. Call Start to begin delivery.
func NewListener[T any](source *Publisher[T], handler func(*Event[T])) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		source:  source,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the delivery loop.
func (l *Listener[T]) Start() {
	go l.run()
}

// Stop ends the delivery loop. In-flight handler calls complete.
func (l *Listener[T]) Stop() {
	l.cancel()
}

func (l *Listener[T]) run() {
	for l.ctx.Err() == nil {
		event, err := l.source.Consume(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			log.Printf("consume event: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if event == nil {
			// Non-blocking vendors report an empty queue as a nil event.
			time.Sleep(50 * time.Millisecond)
			continue
		}
		l.handler(event)
	}
}
