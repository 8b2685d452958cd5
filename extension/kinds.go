package extension

import (
	"context"
	"sync"

	"github.com/viant/x"

	"github.com/gearmill/stagegate/model"
)

// Handler is the contract a business collaborator implements to plug one
// subject kind into the approval engine.  The engine itself only needs the
// kind tag; the optional capability interfaces below refine resolution and
// terminal side effects.
type Handler interface {
	Kind() string
}

// StageResolver overrides approver resolution for stages whose sets cannot
// be derived from the static template, e.g. "manager of the requester's
// team".  It is invoked once per stage at workflow creation and its result
// is frozen into the stage instance.
type StageResolver interface {
	ResolveStage(ctx context.Context, subject model.Ref, template *model.Stage) (userIDs, groupIDs []string, err error)
}

// OutcomeObserver reacts to a terminal workflow outcome, typically to update
// the subject status and fire subject-level side effects.  Observers run
// after the deciding transaction committed; a failing observer never rolls a
// recorded decision back.
type OutcomeObserver interface {
	OnOutcome(ctx context.Context, workflow *model.Workflow, outcome model.Outcome) error
}

// DataTypeIniter lets a handler register its payload types when added to
// the registry.
type DataTypeIniter interface {
	InitTypes(types *Types)
}

// Kinds registers subject-kind handlers together with their payload types.
type Kinds struct {
	types    *Types
	handlers map[string]Handler
	mux      sync.RWMutex
}

func (s *Kinds) Types() *Types {
	return s.types
}

// Lookup returns a handler by subject kind
func (s *Kinds) Lookup(kind string) Handler {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.handlers[kind]
}

// Register registers a subject-kind handler
func (s *Kinds) Register(handler Handler) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if typer, ok := handler.(DataTypeIniter); ok {
		typer.InitTypes(s.types)
	}
	s.handlers[handler.Kind()] = handler
}

// Registered returns the registered kind tags
func (s *Kinds) Registered() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]string, 0, len(s.handlers))
	for kind := range s.handlers {
		out = append(out, kind)
	}
	return out
}

// NewKinds creates a new subject-kind registry
func NewKinds(goTypes ...*x.Type) *Kinds {
	ret := &Kinds{
		types:    NewTypes(),
		handlers: make(map[string]Handler),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}
