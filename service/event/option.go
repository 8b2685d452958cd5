package event

import (
	"github.com/gearmill/stagegate/service/messaging/fs"
	"github.com/gearmill/stagegate/service/messaging/memory"
)

// Option configures the event service.
type Option func(s *Service)

// WithNewFsQueueConfig supplies the per-queue configuration callback for the
// fs vendor. The name argument is the queue's type-derived identity; config
// callbacks typically join it onto a base path.
func WithNewFsQueueConfig(config func(name string) fs.QueueConfig) Option {
	return func(s *Service) {
		s.fsConfig = config
	}
}

// WithNewMemoryQueueConfig supplies the per-queue configuration callback for
// the memory vendor.
func WithNewMemoryQueueConfig(config func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memConfig = config
	}
}
