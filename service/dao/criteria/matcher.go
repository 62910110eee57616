package criteria

import (
	"github.com/viant/kproc/service/dao"
)

const (
	// State filters by lifecycle state name.
	State = "State"
	// ParentPID filters by parent process id.
	ParentPID = "ParentPID"
)

// FilterByState reports whether state satisfies every State parameter.
func FilterByState(state string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != State {
			continue
		}
		switch actual := parameter.Value.(type) {
		case string:
			if state != actual {
				return false
			}
		case []string:
			matched := false
			for _, s := range actual {
				if state == s {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}

// FilterByParent reports whether parent satisfies every ParentPID parameter.
func FilterByParent(parent int, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != ParentPID {
			continue
		}
		if actual, ok := parameter.Value.(int); ok && actual != parent {
			return false
		}
	}
	return true
}
