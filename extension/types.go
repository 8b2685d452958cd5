package extension

import (
	"reflect"
	"strings"

	"github.com/viant/x"
)

// Types holds the Go types behind subject payloads so attribute extraction
// and audit tooling can decode a subject by its registered name.
type Types struct {
	x.Registry
}

// Register adds a payload type to the registry.
func (t *Types) Register(dataType *x.Type) {
	t.Registry.Register(dataType)
}

// Lookup returns a registered payload type by name.  A "[]" or "map[string]"
// prefix wraps the element type accordingly, letting a handler describe
// collection payloads without registering extra entries.
func (t *Types) Lookup(name string) *x.Type {
	modifier := ""
	if idx := strings.LastIndex(name, "]"); idx != -1 {
		modifier = name[:idx+1]
		name = name[idx+1:]
	}
	ret := t.Registry.Lookup(name)
	if ret == nil {
		return nil
	}
	rType := ret.Type
	switch strings.TrimSpace(modifier) {
	case "[]":
		rType = reflect.SliceOf(rType)
	case "map[string]":
		rType = reflect.MapOf(reflect.TypeOf(""), rType)
	}
	if rType != ret.Type {
		return x.NewType(rType)
	}
	return ret
}

// NewTypes creates an empty payload type registry.
func NewTypes(options ...x.RegistryOption) *Types {
	return &Types{Registry: *x.NewRegistry(options...)}
}
