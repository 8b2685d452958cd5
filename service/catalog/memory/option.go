package memory

import (
	"context"

	"github.com/gearmill/stagegate/model"
)

type Option func(*service)

// WithPolicies pre-populates the catalog.  Policies are saved in the given
// order so their insertion sequence is deterministic; an invalid policy
// panics since a seeded catalog is part of process wiring, not user input.
func WithPolicies(policies ...*model.Policy) Option {
	return func(s *service) {
		for _, policy := range policies {
			if err := s.Save(context.Background(), policy); err != nil {
				panic(err)
			}
		}
	}
}
