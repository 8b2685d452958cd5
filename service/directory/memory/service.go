package memory

import (
	"context"

	"github.com/gearmill/stagegate/service/dao"
	"github.com/gearmill/stagegate/service/dao/store"
	"github.com/gearmill/stagegate/service/directory"
)

type service struct {
	// DAO-backed stores
	users  dao.Service[string, directory.User]
	groups dao.Service[string, directory.Group]
}

// key selectors, grab ID field
func userKey(u *directory.User) string { return u.ID }
func groupKey(g *directory.Group) string { return g.ID }

// New creates an in-memory principal directory.
func New(options ...Option) directory.Service {
	ret := &service{
		users:  store.NewMemoryStore[string, directory.User](userKey),
		groups: store.NewMemoryStore[string, directory.Group](groupKey),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *service) User(ctx context.Context, id string) (*directory.User, error) {
	return s.users.Load(ctx, id)
}

func (s *service) Group(ctx context.Context, id string) (*directory.Group, error) {
	return s.groups.Load(ctx, id)
}

func (s *service) Resolve(ctx context.Context, userIDs, groupIDs []string) ([]string, error) {
	var resolved []string
	seen := map[string]bool{}
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		resolved = append(resolved, id)
	}

	// Listed users stay unless the directory marks them inactive
	for _, id := range userIDs {
		user, err := s.users.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if user != nil && !user.Active {
			continue
		}
		add(id)
	}

	// Groups contribute their active members only
	for _, groupID := range groupIDs {
		group, err := s.groups.Load(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if group == nil {
			continue
		}
		for _, memberID := range group.MemberIDs {
			user, err := s.users.Load(ctx, memberID)
			if err != nil {
				return nil, err
			}
			if user == nil || !user.Active {
				continue
			}
			add(memberID)
		}
	}
	return resolved, nil
}

var _ directory.Service = (*service)(nil)
