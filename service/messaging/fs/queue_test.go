package fs

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

type outcomeRecord struct {
	WorkflowID string `json:"workflowId"`
	StageOrder int    `json:"stageOrder"`
	Outcome    string `json:"outcome"`
}

func newTestQueue(t *testing.T, maxRetries int, retryDelay time.Duration) (*Queue[outcomeRecord], afs.Service) {
	t.Helper()
	service := afs.New()
	config := QueueConfig{
		BasePath:   fmt.Sprintf("mem://localhost/queue-%v", time.Now().UnixNano()),
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
	}
	queue, err := NewQueue[outcomeRecord](service, config)
	require.NoError(t, err)
	return queue, service
}

func countJSON(t *testing.T, service afs.Service, dir string) int {
	t.Helper()
	objects, err := service.List(context.Background(), dir)
	require.NoError(t, err)
	count := 0
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			count++
		}
	}
	return count
}

func TestQueue_Lifecycle(t *testing.T) {
	queue, service := newTestQueue(t, 2, 10*time.Millisecond)
	ctx := context.Background()

	for _, dir := range []string{queue.pending, queue.processing, queue.completed, queue.failed, queue.dead} {
		exists, err := service.Exists(ctx, dir)
		require.NoError(t, err)
		assert.True(t, exists, "directory %v should exist", dir)
	}

	published := map[string]bool{}
	for i := 1; i <= 3; i++ {
		record := outcomeRecord{WorkflowID: fmt.Sprintf("wf-%d", i), StageOrder: i, Outcome: "moved"}
		require.NoError(t, queue.Publish(ctx, &record))
		published[record.WorkflowID] = true
	}
	assert.Equal(t, 3, countJSON(t, service, queue.pending))

	for i := 0; i < 3; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NotNil(t, message)
		assert.True(t, published[message.T().WorkflowID], "unexpected payload %v", message.T().WorkflowID)
		require.NoError(t, message.Ack())
		assert.Error(t, message.Ack(), "second settle should be rejected")
	}

	assert.Equal(t, 0, countJSON(t, service, queue.pending))
	assert.Equal(t, 0, countJSON(t, service, queue.processing))
	assert.Equal(t, 3, countJSON(t, service, queue.completed))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Nil(t, message, "drained queue should yield nothing")
}

func TestQueue_RetryThenDeadLetter(t *testing.T) {
	retryDelay := 100 * time.Millisecond
	queue, service := newTestQueue(t, 2, retryDelay)
	ctx := context.Background()

	record := outcomeRecord{WorkflowID: "wf-retry", StageOrder: 1, Outcome: "pending"}
	require.NoError(t, queue.Publish(ctx, &record))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, message)
	require.NoError(t, message.Nack(fmt.Errorf("handler unavailable")))
	assert.Equal(t, 1, countJSON(t, service, queue.failed))

	// Inside the retry delay the failed message is not claimable yet.
	message, err = queue.Consume(ctx)
	require.NoError(t, err)
	assert.Nil(t, message)

	for attempt := 0; attempt < 2; attempt++ {
		time.Sleep(retryDelay + 50*time.Millisecond)
		message, err = queue.Consume(ctx)
		require.NoError(t, err)
		require.NotNil(t, message, "retry %d should be claimable after the delay", attempt+1)
		assert.Equal(t, "wf-retry", message.T().WorkflowID)
		require.NoError(t, message.Nack(fmt.Errorf("handler unavailable")))
	}

	// Third Nack exhausted MaxRetries, the message is dead lettered.
	assert.Equal(t, 1, countJSON(t, service, queue.dead))
	assert.Equal(t, 0, countJSON(t, service, queue.failed))

	time.Sleep(retryDelay + 50*time.Millisecond)
	message, err = queue.Consume(ctx)
	require.NoError(t, err)
	assert.Nil(t, message, "dead lettered message must not be redelivered")
}

func TestNewQueue_Validation(t *testing.T) {
	service := afs.New()

	_, err := NewQueue[outcomeRecord](service, QueueConfig{})
	assert.Error(t, err, "empty base path should be rejected")

	queue, err := NewQueue[outcomeRecord](service, QueueConfig{
		BasePath:   fmt.Sprintf("mem://localhost/queue-init-%v", time.Now().UnixNano()),
		MaxRetries: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, queue)
	exists, err := service.Exists(context.Background(), queue.dead)
	require.NoError(t, err)
	assert.True(t, exists)
}
