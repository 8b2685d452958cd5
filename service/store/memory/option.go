package memory

import (
	"context"

	"github.com/gearmill/stagegate/model"
)

// Option customises the in-memory workflow store.
type Option func(*service)

// WithWorkflows pre-populates the store, mostly for tests.
func WithWorkflows(workflows ...*model.Workflow) Option {
	return func(s *service) {
		for _, workflow := range workflows {
			if err := s.Create(context.Background(), workflow); err != nil {
				panic(err)
			}
		}
	}
}
