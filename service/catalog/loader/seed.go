package loader

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs/file"
	"gopkg.in/yaml.v3"

	"github.com/gearmill/stagegate/internal/yml"
)

// DefaultPolicyName names the policy written by Seed.
const DefaultPolicyName = "default-approval"

// Seed writes a starter catalog document to the supplied URL unless one
// already exists.  The seeded catalog holds a single two-stage policy that
// routes every subject through team-lead and finance review, mirroring the
// chain most deployments begin with before they customise the catalog.
func (s *Service) Seed(ctx context.Context, URL string) error {
	if exists, _ := s.fs.Exists(ctx, URL); exists {
		return nil
	}

	document := (*yml.Node)(yml.NewDocument())
	catalog := (*yml.Node)(yml.NewMap())
	policies := (*yml.Node)(yml.NewSlice())

	policy := (*yml.Node)(yml.NewMap())
	policy.Put("name", DefaultPolicyName)
	policy.Put("description", "Two stage approval applied when no other policy matches")

	stages := (*yml.Node)(yml.NewSlice())
	teamLead := (*yml.Node)(yml.NewMap())
	teamLead.Put("order", 1)
	teamLead.Put("name", "Team Lead Approval")
	teamLead.Put("quorum", 1)
	teamLead.Put("groups", []string{"team-leads"})
	stages.Append(teamLead)

	finance := (*yml.Node)(yml.NewMap())
	finance.Put("order", 2)
	finance.Put("name", "Finance Approval")
	finance.Put("quorum", 1)
	finance.Put("groups", []string{"finance-approvers"})
	stages.Append(finance)

	policy.Put("stages", stages)
	policies.Append(policy)
	catalog.Put("policies", policies)
	document.Append(catalog)

	data, err := yaml.Marshal((*yaml.Node)(document))
	if err != nil {
		return fmt.Errorf("failed to render seed catalog: %w", err)
	}
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write seed catalog to %s: %w", URL, err)
	}
	return nil
}
