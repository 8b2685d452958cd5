// Package loader reads policy catalog definitions from YAML documents.
//
// A catalog document is a mapping with a single "policies" sequence; each
// entry carries the policy name, selection priority, an optional match rule
// or structured criteria, and the stage templates:
//
//	policies:
//	  - name: expense-default
//	    priority: 10
//	    kinds: [expense]
//	    match: amount(100..5000) tags(urgent|normal)
//	    stages:
//	      - order: 1
//	        name: Team Lead Approval
//	        quorum: 1
//	        groups: [team-leads]
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/structology/conv"
	"gopkg.in/yaml.v3"

	"github.com/gearmill/stagegate/internal/yml"
	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/catalog/rule"
)

// Service loads policy definitions.
type Service struct {
	fs        afs.Service
	baseURL   string
	fsOptions []storage.Option
	converter *conv.Converter
}

// New creates a new policy loader.
func New(options ...Option) *Service {
	convOptions := conv.DefaultOptions()
	convOptions.ClonePointerData = true
	convOptions.IgnoreUnmapped = true
	ret := &Service{
		fs:        afs.New(),
		converter: conv.NewConverter(convOptions),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Load loads policies from YAML at the specified URL.  A relative URL is
// resolved against the loader base URL.
func (s *Service) Load(ctx context.Context, URL string) ([]*model.Policy, error) {
	ext := filepath.Ext(URL)
	if ext == "" {
		URL += ".yaml"
	}
	if s.baseURL != "" && !strings.Contains(URL, "://") {
		URL = url.Join(s.baseURL, URL)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL, s.fsOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies from %s: %w", URL, err)
	}
	policies, err := s.DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policies from %s: %w", URL, err)
	}
	for _, policy := range policies {
		policy.Source = &model.Source{URL: URL}
	}
	return policies, nil
}

// DecodeYAML decodes policies from a YAML catalog document.
func (s *Service) DecodeYAML(encoded []byte) ([]*model.Policy, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(encoded, &node); err != nil {
		return nil, err
	}
	return s.parsePolicies((*yml.Node)(&node))
}

// parsePolicies converts the YAML root node into policies
func (s *Service) parsePolicies(node *yml.Node) ([]*model.Policy, error) {
	rootNode := node
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		rootNode = (*yml.Node)(node.Content[0])
	}

	var policies []*model.Policy
	err := rootNode.Pairs(func(key string, valueNode *yml.Node) error {
		if strings.ToLower(key) != "policies" {
			return nil
		}
		if valueNode.Kind != yaml.SequenceNode {
			return fmt.Errorf("policies node should be a sequence")
		}
		return valueNode.Items(func(index int, policyNode *yml.Node) error {
			policy, err := s.parsePolicy(policyNode)
			if err != nil {
				return fmt.Errorf("policy %d: %w", index, err)
			}
			// Document order breaks selection-priority ties
			policy.Sequence = index + 1
			policies = append(policies, policy)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, fmt.Errorf("catalog document defines no policies")
	}
	return policies, nil
}

// parsePolicy converts a YAML node to a policy
func (s *Service) parsePolicy(node *yml.Node) (*model.Policy, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("policy node should be a mapping")
	}

	policy := model.NewPolicy("")
	var matchRule string
	var explicitCriteria bool

	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "id":
			policy.ID = valueNode.Value
		case "name":
			policy.Name = valueNode.Value
		case "description":
			policy.Description = valueNode.Value
		case "active":
			flag, ok := valueNode.Interface().(bool)
			if !ok {
				return fmt.Errorf("active should be a boolean")
			}
			policy.Active = flag
		case "priority", "selectionpriority":
			value, ok := valueNode.Interface().(int)
			if !ok {
				return fmt.Errorf("priority should be an integer")
			}
			policy.SelectionPriority = value
		case "kinds":
			kinds, err := stringSlice(valueNode)
			if err != nil {
				return fmt.Errorf("kinds: %w", err)
			}
			policy.SubjectKinds = kinds
		case "match":
			if valueNode.Kind != yaml.ScalarNode {
				return fmt.Errorf("match should be a rule string")
			}
			matchRule = valueNode.Value
		case "criteria":
			criteria := &criteriaDocument{}
			if err := s.converter.Convert(valueNode.Interface(), criteria); err != nil {
				return fmt.Errorf("criteria: %w", err)
			}
			policy.Criteria = criteria.asCriteria()
			explicitCriteria = true
		case "stages":
			if valueNode.Kind != yaml.SequenceNode {
				return fmt.Errorf("stages should be a sequence")
			}
			return valueNode.Items(func(index int, stageNode *yml.Node) error {
				stage, err := s.parseStage(stageNode)
				if err != nil {
					return fmt.Errorf("stage %d: %w", index, err)
				}
				policy.Stages = append(policy.Stages, stage)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if matchRule != "" {
		if explicitCriteria {
			return nil, fmt.Errorf("policy %s defines both match and criteria", policy.Name)
		}
		criteria, err := rule.Parse([]byte(matchRule))
		if err != nil {
			return nil, fmt.Errorf("policy %s match rule: %w", policy.Name, err)
		}
		policy.Criteria = criteria
	}

	if issues := policy.Validate(); len(issues) > 0 {
		return nil, issues[0]
	}
	return policy, nil
}

// parseStage converts a YAML node to a stage template
func (s *Service) parseStage(node *yml.Node) (*model.Stage, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("stage node should be a mapping")
	}
	document := &stageDocument{}
	if err := s.converter.Convert(node.Interface(), document); err != nil {
		return nil, err
	}
	return document.asStage(), nil
}

func stringSlice(node *yml.Node) ([]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a sequence")
	}
	var values []string
	err := node.Items(func(index int, item *yml.Node) error {
		text, ok := item.Interface().(string)
		if !ok {
			return fmt.Errorf("item %d is not a string", index)
		}
		values = append(values, text)
		return nil
	})
	return values, err
}

// stageDocument mirrors the YAML stage shape; field names match document keys
// so the converter can coerce loosely typed values.
type stageDocument struct {
	Order     int
	Name      string
	Quorum    int
	Approvers []string
	Groups    []string
}

func (d *stageDocument) asStage() *model.Stage {
	return &model.Stage{
		Order:             d.Order,
		Name:              d.Name,
		RequiredApprovals: d.Quorum,
		ApproverUserIDs:   d.Approvers,
		ApproverGroupIDs:  d.Groups,
	}
}

// criteriaDocument mirrors the YAML criteria shape.
type criteriaDocument struct {
	MinAmount *float64
	MaxAmount *float64
	Tags      []string
}

func (d *criteriaDocument) asCriteria() *model.Criteria {
	return &model.Criteria{MinAmount: d.MinAmount, MaxAmount: d.MaxAmount, Tags: d.Tags}
}
