package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gearmill/stagegate/service/directory"
)

func TestService_Resolve(t *testing.T) {
	service := New(
		WithUsers(
			&directory.User{ID: "lead-1", Active: true},
			&directory.User{ID: "lead-2", Active: true},
			&directory.User{ID: "lead-retired", Active: false},
			&directory.User{ID: "fin-1", Active: true},
			&directory.User{ID: "fin-2", Active: false},
		),
		WithGroups(
			&directory.Group{ID: "team-leads", MemberIDs: []string{"lead-1", "lead-2", "lead-retired"}},
			&directory.Group{ID: "finance", MemberIDs: []string{"fin-1", "fin-2", "ghost"}},
		),
	)
	ctx := context.Background()

	testCases := []struct {
		description string
		userIDs     []string
		groupIDs    []string
		expected    []string
	}{
		{
			description: "group expands to active members",
			groupIDs:    []string{"team-leads"},
			expected:    []string{"lead-1", "lead-2"},
		},
		{
			description: "unknown members and inactive users are dropped",
			groupIDs:    []string{"finance"},
			expected:    []string{"fin-1"},
		},
		{
			description: "explicit users come first and merge with groups",
			userIDs:     []string{"fin-1", "external-auditor"},
			groupIDs:    []string{"team-leads"},
			expected:    []string{"fin-1", "external-auditor", "lead-1", "lead-2"},
		},
		{
			description: "explicitly listed inactive user is dropped",
			userIDs:     []string{"lead-retired", "lead-1"},
			expected:    []string{"lead-1"},
		},
		{
			description: "duplicates keep their first position",
			userIDs:     []string{"lead-2"},
			groupIDs:    []string{"team-leads"},
			expected:    []string{"lead-2", "lead-1"},
		},
		{
			description: "unknown group expands to nothing",
			groupIDs:    []string{"no-such-group"},
			expected:    nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			resolved, err := service.Resolve(ctx, tc.userIDs, tc.groupIDs)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, resolved)
		})
	}
}

func TestService_Lookup(t *testing.T) {
	service := New(
		WithUsers(&directory.User{ID: "lead-1", Name: "Lena", Active: true}),
		WithGroups(&directory.Group{ID: "team-leads", MemberIDs: []string{"lead-1"}}),
	)
	ctx := context.Background()

	user, err := service.User(ctx, "lead-1")
	assert.NoError(t, err)
	if assert.NotNil(t, user) {
		assert.Equal(t, "Lena", user.Name)
	}

	missing, err := service.User(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	group, err := service.Group(ctx, "team-leads")
	assert.NoError(t, err)
	if assert.NotNil(t, group) {
		assert.Equal(t, []string{"lead-1"}, group.MemberIDs)
	}
}
