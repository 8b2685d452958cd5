// Package yml wraps yaml.v3 nodes with tolerant accessors used by the policy
// catalog loader.  Catalog documents are edited by hand and arrive with
// loosely typed scalars, so value coercion follows the node tag rather than
// Go static types.
package yml

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node aliases yaml.Node so traversal helpers can hang off parsed content.
type Node yaml.Node

// Pairs walks a mapping node key by key.
func (n *Node) Pairs(callback func(key string, value *Node) error) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := callback(n.Content[i].Value, (*Node)(n.Content[i+1])); err != nil {
			return err
		}
	}
	return nil
}

// Items walks a sequence node item by item.
func (n *Node) Items(callback func(index int, item *Node) error) error {
	for i, item := range n.Content {
		if err := callback(i, (*Node)(item)); err != nil {
			return err
		}
	}
	return nil
}

// Interface converts the node subtree to plain Go values: scalars coerce by
// tag, mappings become map[string]interface{} and sequences []interface{}.
func (n *Node) Interface() interface{} {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.scalarValue()
	case yaml.MappingNode:
		result := make(map[string]interface{})
		_ = n.Pairs(func(key string, value *Node) error {
			result[key] = value.Interface()
			return nil
		})
		return result
	case yaml.SequenceNode:
		result := make([]interface{}, 0, len(n.Content))
		_ = n.Items(func(index int, item *Node) error {
			result = append(result, item.Interface())
			return nil
		})
		return result
	}
	return nil
}

func (n *Node) scalarValue() interface{} {
	switch n.Tag {
	case "!!bool":
		return strings.EqualFold(n.Value, "true")
	case "!!int":
		value, err := strconv.Atoi(n.Value)
		if err != nil {
			return 0
		}
		return value
	case "!!float":
		value, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return 0.0
		}
		return value
	case "!!null":
		return nil
	default:
		return n.Value
	}
}

// Put appends a key/value pair to a mapping node.
func (n *Node) Put(key string, value interface{}) {
	if n.Kind != yaml.MappingNode {
		panic("put target is not a mapping node")
	}
	n.Content = append(n.Content, scalar(key), valueNode(value))
}

// Append adds a value to a sequence or document node.
func (n *Node) Append(value interface{}) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
	default:
		panic("append target is not a sequence node")
	}
	n.Content = append(n.Content, valueNode(value))
}

// NewDocument creates an empty document node.
func NewDocument() *yaml.Node {
	return &yaml.Node{Kind: yaml.DocumentNode}
}

// NewMap creates an empty mapping node.
func NewMap() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// NewSlice creates an empty sequence node.
func NewSlice() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
}

func valueNode(value interface{}) *yaml.Node {
	switch actual := value.(type) {
	case nil:
		return scalar(nil)
	case *Node:
		return (*yaml.Node)(actual)
	case *yaml.Node:
		return actual
	case []string:
		seq := (*Node)(NewSlice())
		for _, item := range actual {
			seq.Append(item)
		}
		return (*yaml.Node)(seq)
	case []interface{}:
		seq := (*Node)(NewSlice())
		for _, item := range actual {
			seq.Append(item)
		}
		return (*yaml.Node)(seq)
	case map[string]interface{}:
		mapping := (*Node)(NewMap())
		for key, item := range actual {
			mapping.Put(key, item)
		}
		return (*yaml.Node)(mapping)
	default:
		return scalar(value)
	}
}

func scalar(value interface{}) *yaml.Node {
	if value == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
	}
	node := &yaml.Node{Kind: yaml.ScalarNode}
	switch actual := value.(type) {
	case string:
		node.Tag = "!!str"
		node.Value = actual
	case bool:
		node.Tag = "!!bool"
		node.Value = strconv.FormatBool(actual)
	case int:
		node.Tag = "!!int"
		node.Value = strconv.Itoa(actual)
	case int64:
		node.Tag = "!!int"
		node.Value = strconv.FormatInt(actual, 10)
	case float64:
		node.Tag = "!!float"
		node.Value = strconv.FormatFloat(actual, 'f', -1, 64)
	case fmt.Stringer:
		node.Tag = "!!str"
		node.Value = actual.String()
	default:
		node.Tag = "!!str"
		node.Value = fmt.Sprintf("%v", actual)
	}
	return node
}
