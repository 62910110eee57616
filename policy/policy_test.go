package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Permit(t *testing.T) {
	ctx := context.Background()
	var asked []string
	ask := func(ctx context.Context, syscall string, pid, tid int, p *Policy) bool {
		asked = append(asked, syscall)
		return syscall != "exec"
	}
	testCases := []struct {
		description string
		policy      *Policy
		syscall     string
		expect      bool
	}{
		{description: "nil policy", syscall: "fork", expect: true},
		{description: "auto empty lists", policy: &Policy{Mode: ModeAuto}, syscall: "fork", expect: true},
		{description: "blocked", policy: &Policy{BlockList: []string{"FORK"}}, syscall: "fork", expect: false},
		{description: "not in allow list", policy: &Policy{AllowList: []string{"getpid"}}, syscall: "fork", expect: false},
		{description: "allow list", policy: &Policy{AllowList: []string{"getpid"}}, syscall: "GetPid", expect: true},
		{description: "block wins", policy: &Policy{AllowList: []string{"fork"}, BlockList: []string{"fork"}}, syscall: "fork", expect: false},
		{description: "deny", policy: &Policy{Mode: ModeDeny}, syscall: "getpid", expect: false},
		{description: "ask approves", policy: &Policy{Mode: ModeAsk, Ask: ask}, syscall: "fork", expect: true},
		{description: "ask rejects", policy: &Policy{Mode: ModeAsk, Ask: ask}, syscall: "exec", expect: false},
		{description: "ask skipped when blocked", policy: &Policy{Mode: ModeAsk, Ask: ask, BlockList: []string{"kill"}}, syscall: "kill", expect: false},
		{description: "ask without func", policy: &Policy{Mode: ModeAsk}, syscall: "kill", expect: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.policy.Permit(ctx, tc.syscall, 1, 0))
		})
	}
	assert.Equal(t, []string{"fork", "exec"}, asked)
}

func TestConfigRoundTrip(t *testing.T) {
	p := &Policy{Mode: ModeAuto, AllowList: []string{"getpid"}, BlockList: []string{"fork"}}
	restored := FromConfig(ToConfig(p))
	assert.Equal(t, p.Mode, restored.Mode)
	assert.Equal(t, p.AllowList, restored.AllowList)
	assert.Equal(t, p.BlockList, restored.BlockList)
	assert.Nil(t, ToConfig(nil))
	assert.Nil(t, FromConfig(nil))
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	p := &Policy{Mode: ModeDeny}
	assert.Same(t, p, FromContext(WithPolicy(context.Background(), p)))
}
