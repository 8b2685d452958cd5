package criteria

import (
	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/dao"
)

// FilterByState narrows a listing to workflows in any of the given states.
func FilterByState(state string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter.Name != dao.ParamState {
			continue
		}
		switch actual := parameter.Value.(type) {
		case string:
			return state == actual
		case []string:
			for _, s := range actual {
				if state == s {
					return true
				}
			}
			return false
		}
	}
	return true
}

// FilterBySubject narrows a listing to workflows anchored to one concrete
// subject reference.
func FilterBySubject(subject model.Ref, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter.Name != dao.ParamSubject {
			continue
		}
		switch actual := parameter.Value.(type) {
		case model.Ref:
			return subject == actual
		case *model.Ref:
			return actual == nil || subject == *actual
		}
	}
	return true
}

// FilterBySubjectKind narrows a listing to workflows anchored to a given
// subject kind, e.g. "expense" or "overtime".
func FilterBySubjectKind(kind string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter.Name != dao.ParamSubjectKind {
			continue
		}
		switch actual := parameter.Value.(type) {
		case string:
			return kind == actual
		case []string:
			for _, s := range actual {
				if kind == s {
					return true
				}
			}
			return false
		}
	}
	return true
}
