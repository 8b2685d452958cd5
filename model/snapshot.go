package model

import (
	"strings"
	"time"

	"github.com/gearmill/stagegate/internal/clock"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

// Snapshot is the frozen copy of the policy and stage configuration attached
// to a workflow at submission time.  It keeps the audit trail stable even if
// the catalog entry is later edited or deactivated: progression and review
// read the snapshot, never the live policy.
type Snapshot struct {
	Policy  SnapshotPolicy  `json:"policy" yaml:"policy"`
	Stages  []SnapshotStage `json:"stages" yaml:"stages"`
	TakenAt time.Time       `json:"takenAt" yaml:"takenAt"`
}

// SnapshotPolicy records the policy identity.
type SnapshotPolicy struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// SnapshotStage records one stage template as configured at submission,
// with the original (unexpanded) user and group ids.
type SnapshotStage struct {
	Order             int      `json:"order" yaml:"order"`
	Name              string   `json:"name" yaml:"name"`
	RequiredApprovals int      `json:"requiredApprovals" yaml:"quorum"`
	UserIDs           []string `json:"userIds,omitempty" yaml:"approvers,omitempty"`
	GroupIDs          []string `json:"groupIds,omitempty" yaml:"groups,omitempty"`
}

// NewSnapshot freezes the supplied policy.
func NewSnapshot(policy *Policy) *Snapshot {
	snapshot := &Snapshot{
		Policy:  SnapshotPolicy{ID: policy.ID, Name: policy.Name},
		TakenAt: clock.Now(),
	}
	for _, stage := range policy.OrderedStages() {
		snapshot.Stages = append(snapshot.Stages, SnapshotStage{
			Order:             stage.Order,
			Name:              stage.Name,
			RequiredApprovals: stage.RequiredApprovals,
			UserIDs:           append([]string(nil), stage.ApproverUserIDs...),
			GroupIDs:          append([]string(nil), stage.ApproverGroupIDs...),
		})
	}
	return snapshot
}

// DiffStats captures basic statistics about a unified-diff output.
type DiffStats struct {
	Added   int // lines starting with '+' (excluding +++)
	Removed int // lines starting with '-' (excluding ---)
}

// Diff renders the snapshot against the current policy definition as a GNU
// unified diff.  Auditors use it to see how a policy drifted after a workflow
// froze its configuration.  An empty diff string means the live policy still
// matches the snapshot.
func (s *Snapshot) Diff(current *Policy) (string, DiffStats, error) {
	frozen, err := yaml.Marshal(s.rendering())
	if err != nil {
		return "", DiffStats{}, err
	}
	live, err := yaml.Marshal(NewSnapshot(current).rendering())
	if err != nil {
		return "", DiffStats{}, err
	}
	if string(frozen) == string(live) {
		return "", DiffStats{}, nil
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(frozen)),
		B:        difflib.SplitLines(string(live)),
		FromFile: s.Policy.Name + " (snapshot)",
		ToFile:   s.Policy.Name + " (current)",
		Context:  3,
	}
	patch, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", DiffStats{}, err
	}

	var stats DiffStats
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			stats.Added++
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			stats.Removed++
		}
	}
	return patch, stats, nil
}

// rendering strips the volatile TakenAt field so diffs compare configuration
// only.
func (s *Snapshot) rendering() interface{} {
	return struct {
		Policy SnapshotPolicy  `yaml:"policy"`
		Stages []SnapshotStage `yaml:"stages"`
	}{Policy: s.Policy, Stages: s.Stages}
}
