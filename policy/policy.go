package policy

import (
	"context"
	"strings"
)

// Filtering modes.
const (
	ModeAsk  = "ask"  // consult Ask before every syscall
	ModeAuto = "auto" // apply the lists only (default)
	ModeDeny = "deny" // reject every syscall
)

// AskFunc is invoked when Mode==ask for a syscall that passed the lists.
// Returning false rejects the call.
type AskFunc func(ctx context.Context, syscall string, pid, tid int, p *Policy) bool

// Policy filters syscalls by name, for example "fork" or "mutex_lock".
// A nil *Policy allows everything.
type Policy struct {
	Mode      string
	AllowList []string // empty allows every name not blocked
	BlockList []string
	Ask       AskFunc
}

// Config is the serialisable part of a Policy.
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// ToConfig converts a Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:      p.Mode,
		AllowList: append([]string(nil), p.AllowList...),
		BlockList: append([]string(nil), p.BlockList...),
	}
}

// FromConfig converts a Config back to a Policy without AskFunc.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// IsAllowed matches syscall against BlockList, then AllowList, ignoring case.
func (p *Policy) IsAllowed(syscall string) bool {
	if p == nil {
		return true
	}
	for _, blocked := range p.BlockList {
		if strings.EqualFold(syscall, blocked) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, allowed := range p.AllowList {
		if strings.EqualFold(syscall, allowed) {
			return true
		}
	}
	return false
}

// Permit reports whether syscall may run on behalf of pid/tid.
func (p *Policy) Permit(ctx context.Context, syscall string, pid, tid int) bool {
	if p == nil {
		return true
	}
	switch strings.ToLower(p.Mode) {
	case ModeDeny:
		return false
	case ModeAsk:
		if !p.IsAllowed(syscall) {
			return false
		}
		return p.Ask == nil || p.Ask(ctx, syscall, pid, tid, p)
	}
	return p.IsAllowed(syscall)
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx; it takes precedence over the kernel policy.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy carried by ctx.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
