package memory

import (
	"context"

	"github.com/gearmill/stagegate/service/directory"
)

type Option func(*service)

// WithUsers pre-populates the directory with users.
func WithUsers(users ...*directory.User) Option {
	return func(s *service) {
		for _, user := range users {
			_ = s.users.Save(context.Background(), user)
		}
	}
}

// WithGroups pre-populates the directory with groups.
func WithGroups(groups ...*directory.Group) Option {
	return func(s *service) {
		for _, group := range groups {
			_ = s.groups.Save(context.Background(), group)
		}
	}
}
