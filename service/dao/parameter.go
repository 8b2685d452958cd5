package dao

// Parameter names recognised by the workflow listing implementations.
const (
	ParamState       = "State"
	ParamSubject     = "Subject"
	ParamSubjectKind = "SubjectKind"
)

// Parameter narrows a List call.  Implementations recognise parameters by
// name and ignore the rest, so callers can mix criteria freely.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a parameter; a single value stays scalar, several
// values turn into a set match.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// ByState narrows a listing to workflows in any of the given states.
func ByState(states ...string) *Parameter {
	return NewParameter(ParamState, states...)
}

// BySubjectKind narrows a listing to one subject kind.
func BySubjectKind(kind string) *Parameter {
	return NewParameter(ParamSubjectKind, kind)
}
