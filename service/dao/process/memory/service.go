package memory

import (
	"context"
	"sort"

	"github.com/viant/kproc/runtime/execution"
	"github.com/viant/kproc/service/dao"
	"github.com/viant/kproc/service/dao/criteria"
	"github.com/viant/kproc/service/dao/store"
)

// Lifecycle states used with criteria.State.
const (
	StateAlive  = "alive"
	StateZombie = "zombie"
)

// Service is the process table: a thread-safe pid to process map. Entries
// are shared, not copied; the process guards its own state.
type Service struct {
	store *store.MemoryStore[int, execution.Process]
}

var _ dao.Service[int, execution.Process] = (*Service)(nil)

func (s *Service) Save(ctx context.Context, p *execution.Process) error {
	if p == nil {
		return dao.ErrNilEntity
	}
	if p.PID() < 0 {
		return dao.ErrInvalidID
	}
	return s.store.Save(ctx, p)
}

func (s *Service) Load(ctx context.Context, pid int) (*execution.Process, error) {
	if pid < 0 {
		return nil, dao.ErrInvalidID
	}
	p, err := s.store.Load(ctx, pid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, dao.ErrNotFound
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, pid int) error {
	if pid < 0 {
		return dao.ErrInvalidID
	}
	return s.store.Delete(ctx, pid)
}

// List returns processes ordered by pid, filtered by criteria.State
// (StateAlive, StateZombie) and criteria.ParentPID.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Process, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*execution.Process, 0, len(all))
	for _, p := range all {
		if !criteria.FilterByState(stateOf(p), parameters) {
			continue
		}
		if !criteria.FilterByParent(p.ParentPID(), parameters) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID() < out[j].PID() })
	return out, nil
}

// Len returns the number of registered processes.
func (s *Service) Len() int { return s.store.Len() }

func stateOf(p *execution.Process) string {
	if p.IsZombie() {
		return StateZombie
	}
	return StateAlive
}

// New creates an empty process table.
func New() *Service {
	return &Service{store: store.NewMemoryStore[int, execution.Process](func(p *execution.Process) int { return p.PID() })}
}
