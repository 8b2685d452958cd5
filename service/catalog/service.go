package catalog

import (
	"context"

	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/dao"
)

// Service defines the policy catalog interface.
type Service interface {
	dao.Service[string, model.Policy]

	// Select returns the policy governing a new workflow for the supplied
	// subject.  Only active policies whose scope and criteria admit the
	// subject compete; among those the lowest selection priority wins and
	// catalog insertion order breaks ties.  ErrNoPolicy is returned when
	// nothing matches.
	Select(ctx context.Context, kind string, attributes model.Attributes) (*model.Policy, error)
}
