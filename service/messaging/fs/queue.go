// Package fs implements the messaging contract on top of afs storage.
// Messages live as JSON files under a base path, one directory per lifecycle
// state, so any scheme afs supports can host a queue, including mem:// in
// tests and file:// for durable local delivery.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"

	"github.com/gearmill/stagegate/service/messaging"
)

// Vendor is the name this implementation is selected by.
const Vendor = messaging.Vendor("fs")

// MessageState tracks which lifecycle directory a message file belongs to.
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateCompleted  MessageState = "completed"
	MessageStateFailed     MessageState = "failed"
)

// QueueConfig locates the queue on storage and bounds redelivery.
type QueueConfig struct {
	BasePath   string
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns the settings used when callers pass a zero config.
func DefaultConfig() QueueConfig {
	return QueueConfig{
		BasePath:   "/tmp/stagegate/queue",
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Queue is a storage-backed messaging.Queue. Claiming a message moves its
// file from pending (or failed, for retries) into processing; Ack moves it
// to completed, Nack back to failed until MaxRetries is exhausted, then to
// the dead letter directory.
type Queue[T any] struct {
	fs     afs.Service
	config QueueConfig
	mu     sync.Mutex

	pending    string
	processing string
	completed  string
	failed     string
	dead       string
}

// NewQueue creates the lifecycle directories under config.BasePath.
func NewQueue[T any](fs afs.Service, config QueueConfig) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("queue base path is required")
	}
	q := &Queue[T]{
		fs:         fs,
		config:     config,
		pending:    path.Join(config.BasePath, "pending"),
		processing: path.Join(config.BasePath, "processing"),
		completed:  path.Join(config.BasePath, "completed"),
		failed:     path.Join(config.BasePath, "failed"),
		dead:       path.Join(config.BasePath, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pending, q.processing, q.completed, q.failed, q.dead} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("create queue directory %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish writes the payload as a new pending message file.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := time.Now()
	message := &Message[T]{
		ID:        uuid.New().String(),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
		queue:     q,
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return q.write(ctx, path.Join(q.pending, message.ID+".json"), data)
}

// Consume claims the next message, preferring failed messages due for a
// retry over fresh pending ones. It returns (nil, nil) when nothing is
// ready; it never blocks.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	message, err := q.takeFailed(ctx)
	if err != nil {
		return nil, err
	}
	if message == nil {
		if message, err = q.takePending(ctx); err != nil {
			return nil, err
		}
	}
	if message == nil {
		return nil, nil
	}
	return message, nil
}

// takePending claims the oldest pending message. Unreadable files are
// quarantined into the failed directory.
func (q *Queue[T]) takePending(ctx context.Context) (*Message[T], error) {
	obj, err := q.oldest(ctx, q.pending)
	if err != nil || obj == nil {
		return nil, err
	}
	message, err := q.read(ctx, obj.URL())
	if err != nil {
		_ = q.fs.Move(ctx, obj.URL(), path.Join(q.failed, "invalid-"+obj.Name()))
		return nil, err
	}
	return q.promote(ctx, message, obj)
}

// takeFailed claims the oldest failed message still inside the retry limit
// and past its retry delay. Exhausted or unreadable messages move to the
// dead letter directory.
func (q *Queue[T]) takeFailed(ctx context.Context) (*Message[T], error) {
	obj, err := q.oldest(ctx, q.failed)
	if err != nil || obj == nil {
		return nil, err
	}
	message, err := q.read(ctx, obj.URL())
	if err != nil {
		_ = q.fs.Move(ctx, obj.URL(), path.Join(q.dead, "invalid-"+obj.Name()))
		return nil, err
	}
	if message.Retries > q.config.MaxRetries {
		if err := q.fs.Move(ctx, obj.URL(), path.Join(q.dead, obj.Name())); err != nil {
			return nil, fmt.Errorf("move message to dead letter directory: %w", err)
		}
		return nil, nil
	}
	if q.config.RetryDelay > 0 && time.Since(message.UpdatedAt) < q.config.RetryDelay {
		return nil, nil
	}
	return q.promote(ctx, message, obj)
}

// oldest returns the message file with the earliest modification time in
// dir, nil when the directory holds none.
func (q *Queue[T]) oldest(ctx context.Context, dir string) (storage.Object, error) {
	objects, err := q.fs.List(ctx, dir, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var oldest storage.Object
	for _, candidate := range objects {
		if candidate.IsDir() || !strings.HasSuffix(candidate.Name(), ".json") {
			continue
		}
		if oldest == nil || candidate.ModTime().Before(oldest.ModTime()) {
			oldest = candidate
		}
	}
	return oldest, nil
}

// promote marks the message in-flight and relocates its file into the
// processing directory. Copy before delete, so an interrupted claim never
// drops the message.
func (q *Queue[T]) promote(ctx context.Context, message *Message[T], obj storage.Object) (*Message[T], error) {
	message.State = MessageStateProcessing
	message.UpdatedAt = time.Now()
	message.queue = q
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal claimed message: %w", err)
	}
	if err := q.write(ctx, path.Join(q.processing, obj.Name()), data); err != nil {
		return nil, fmt.Errorf("move message to processing: %w", err)
	}
	if err := q.fs.Delete(ctx, obj.URL()); err != nil {
		return nil, fmt.Errorf("remove claimed message: %w", err)
	}
	return message, nil
}

// finish writes the settled message into the target directory and removes
// its processing file.
func (q *Queue[T]) finish(ctx context.Context, m *Message[T], target string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal settled message: %w", err)
	}
	name := m.ID + ".json"
	if err := q.write(ctx, path.Join(target, name), data); err != nil {
		return fmt.Errorf("write settled message: %w", err)
	}
	processing := path.Join(q.processing, name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		if err := q.fs.Delete(ctx, processing); err != nil {
			return fmt.Errorf("remove processing file: %w", err)
		}
	}
	return nil
}

func (q *Queue[T]) write(ctx context.Context, dest string, data []byte) error {
	return q.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("read message %v: %w", URL, err)
	}
	message := &Message[T]{}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("decode message %v: %w", URL, err)
	}
	return message, nil
}

// Message is a queued payload persisted as a JSON file. A claimed message
// stays in processing until settled exactly once via Ack or Nack.
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`

	queue   *Queue[T]
	mu      sync.Mutex
	settled bool
}

// T returns the payload.
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack records the message as completed.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message already settled")
	}
	m.settled = true
	m.State = MessageStateCompleted
	m.UpdatedAt = time.Now()
	return m.queue.finish(context.Background(), m, m.queue.completed)
}

// Nack records a failure. The message returns to the failed directory for a
// later retry, or moves to the dead letter directory once retries are
// exhausted.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message already settled")
	}
	m.settled = true
	m.State = MessageStateFailed
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = time.Now()
	target := m.queue.failed
	if m.Retries > m.queue.config.MaxRetries {
		target = m.queue.dead
	}
	return m.queue.finish(context.Background(), m, target)
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
