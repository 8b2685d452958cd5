package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearmill/stagegate/service/messaging"
)

type stageNotice struct {
	WorkflowID string
	StageOrder int
	Outcome    string
}

func consumeWithin(t *testing.T, queue *Queue[stageNotice], timeout time.Duration) messaging.Message[stageNotice] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, message)
	return message
}

func TestQueue_PublishConsume(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[stageNotice](config)

	ctx := context.Background()
	notice := stageNotice{WorkflowID: "wf-1", StageOrder: 1, Outcome: "moved"}

	require.NoError(t, queue.Publish(ctx, &notice))
	assert.Equal(t, 1, queue.Size())

	message := consumeWithin(t, queue, time.Second)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, notice, *message.T())

	require.NoError(t, message.Ack())
	assert.Error(t, message.Ack(), "second settle should be rejected")
	assert.Error(t, message.Nack(nil), "settle after ack should be rejected")
}

func TestQueue_RedeliveryAndDeadLetter(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[stageNotice](config)

	notice := stageNotice{WorkflowID: "wf-2", StageOrder: 2, Outcome: "pending"}
	require.NoError(t, queue.Publish(context.Background(), &notice))

	// Initial delivery plus MaxRetries redeliveries.
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		message := consumeWithin(t, queue, 2*time.Second)
		assert.Equal(t, notice.WorkflowID, message.T().WorkflowID)
		require.NoError(t, message.Nack(fmt.Errorf("handler unavailable")))
	}

	assert.Equal(t, 1, queue.DLQSize())
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_Concurrent(t *testing.T) {
	config := DefaultConfig()
	queue := NewQueue[stageNotice](config)

	ctx := context.Background()
	producers := 10
	perProducer := 10
	total := producers * perProducer

	var wg sync.WaitGroup
	var consumed sync.Map

	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func(producer int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				notice := stageNotice{
					WorkflowID: fmt.Sprintf("wf-%d-%d", producer, j),
					StageOrder: j,
				}
				if err := queue.Publish(ctx, &notice); err != nil {
					t.Errorf("publish: %v", err)
				}
			}
		}(i)
	}

	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				message := consumeWithin(t, queue, 5*time.Second)
				consumed.Store(message.T().WorkflowID, true)
				if err := message.Ack(); err != nil {
					t.Errorf("ack: %v", err)
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for producers and consumers")
	}

	var count int
	consumed.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, total, count)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_ContextCancelled(t *testing.T) {
	queue := NewQueue[stageNotice](DefaultConfig())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	notice := stageNotice{WorkflowID: "wf-3"}
	assert.Error(t, queue.Publish(cancelled, &notice))

	short, cancelShort := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelShort()
	_, err := queue.Consume(short)
	assert.Error(t, err)

	// The queue stays usable after a cancelled call.
	require.NoError(t, queue.Publish(context.Background(), &notice))
	message := consumeWithin(t, queue, time.Second)
	require.NoError(t, message.Ack())
}
