package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/kproc/service/dao"
)

func TestFilterByState(t *testing.T) {
	testCases := []struct {
		description string
		state       string
		parameters  []*dao.Parameter
		expect      bool
	}{
		{description: "no parameters", state: "alive", expect: true},
		{description: "single match", state: "zombie", parameters: []*dao.Parameter{dao.NewParameter(State, "zombie")}, expect: true},
		{description: "single mismatch", state: "alive", parameters: []*dao.Parameter{dao.NewParameter(State, "zombie")}},
		{description: "any of", state: "alive", parameters: []*dao.Parameter{dao.NewParameter(State, "zombie", "alive")}, expect: true},
		{description: "other names ignored", state: "alive", parameters: []*dao.Parameter{dao.NewIntParameter(ParentPID, 3)}, expect: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, FilterByState(tc.state, tc.parameters))
		})
	}
}

func TestFilterByParent(t *testing.T) {
	assert.True(t, FilterByParent(1, nil))
	assert.True(t, FilterByParent(1, []*dao.Parameter{dao.NewIntParameter(ParentPID, 1)}))
	assert.False(t, FilterByParent(2, []*dao.Parameter{dao.NewIntParameter(ParentPID, 1)}))
}
