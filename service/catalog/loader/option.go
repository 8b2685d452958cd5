package loader

import "github.com/viant/afs/storage"

type Option func(*Service)

// WithBaseURL sets the base URL relative policy URLs resolve against.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = baseURL }
}

// WithFsOptions sets storage options passed to the virtual filesystem, e.g.
// an embedded filesystem for tests.
func WithFsOptions(options ...storage.Option) Option {
	return func(s *Service) { s.fsOptions = options }
}
