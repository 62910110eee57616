// Package kernel exposes the process and thread syscalls of a single-CPU
// cooperative kernel. Every syscall runs on behalf of the task currently on
// the CPU and stores its result in that task's a0 register.
package kernel

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/viant/kproc/internal/idgen"
	"github.com/viant/kproc/policy"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/runtime/execution"
	"github.com/viant/kproc/service/dao"
	"github.com/viant/kproc/service/dao/image"
	procdao "github.com/viant/kproc/service/dao/process/memory"
	"github.com/viant/kproc/service/deadlock"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/fs"
	"github.com/viant/kproc/service/mm"
	"github.com/viant/kproc/service/mm/memory"
	"github.com/viant/kproc/service/scheduler"
)

// Config represents kernel configuration
type Config struct {
	Layout    mm.Layout        `json:"layout" yaml:"layout"`
	Scheduler scheduler.Config `json:"scheduler" yaml:"scheduler"`
	Deadlock  deadlock.Bounds  `json:"deadlock" yaml:"deadlock"`
	// MaxFrames caps simulated physical memory; 0 means unbounded.
	MaxFrames int `json:"maxFrames,omitempty" yaml:"maxFrames,omitempty"`
	// InitProgram is the image started by Boot as pid 0.
	InitProgram string   `json:"initProgram" yaml:"initProgram"`
	InitArgs    []string `json:"initArgs,omitempty" yaml:"initArgs,omitempty"`
	// MaxPathLength bounds strings read from user memory.
	MaxPathLength int    `json:"maxPathLength" yaml:"maxPathLength"`
	KernelToken   uint64 `json:"kernelToken" yaml:"kernelToken"`
	TrapHandler   uint64 `json:"trapHandler" yaml:"trapHandler"`
	TrapReturn    uint64 `json:"trapReturn" yaml:"trapReturn"`
	// Policy filters syscalls by name; nil allows all.
	Policy *policy.Config `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// DefaultConfig returns the default kernel configuration
func DefaultConfig() Config {
	return Config{
		Layout:        mm.DefaultLayout(),
		Scheduler:     scheduler.DefaultConfig(),
		Deadlock:      deadlock.DefaultBounds(),
		InitProgram:   "initproc",
		MaxPathLength: 256,
		KernelToken:   8<<60 | 0x80200,
		TrapHandler:   0x80201000,
		TrapReturn:    0x80202000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Deadlock.Validate(); err != nil {
		return err
	}
	if c.InitProgram == "" {
		return fmt.Errorf("kernel: initProgram was empty")
	}
	if c.MaxPathLength <= 0 {
		return fmt.Errorf("kernel: maxPathLength must be > 0")
	}
	if c.Policy != nil {
		switch c.Policy.Mode {
		case "", policy.ModeAuto, policy.ModeDeny, policy.ModeAsk:
		default:
			return fmt.Errorf("kernel: unsupported policy mode %q", c.Policy.Mode)
		}
	}
	return nil
}

// Service is the kernel: the CPU, the ready queue and the process table.
type Service struct {
	config    Config
	mu        sync.Mutex
	memory    *memory.Memory
	env       *execution.Env
	images    *image.Service
	processes dao.Service[int, execution.Process]
	ready     *scheduler.Service[*execution.Task]
	current   *execution.Task
	initProc  *execution.Process
	halted    bool

	stdin     io.Reader
	stdout    io.Writer
	events    *event.Service
	lifecycle *event.Publisher[event.Lifecycle]
	progress  *progress.Progress
	policy    *policy.Policy
	err       error
}

// New creates a kernel; Boot starts the init process.
func New(opts ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig()}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.err != nil {
		return nil, ret.err
	}
	if err := ret.config.Validate(); err != nil {
		return nil, err
	}
	if ret.policy == nil && ret.config.Policy != nil {
		ret.policy = policy.FromConfig(ret.config.Policy)
	}
	if ret.images == nil {
		ret.images = image.New()
	}
	if ret.progress == nil {
		ret.progress = progress.New(nil)
	}
	if ret.events != nil {
		publisher, err := event.PublisherOf[event.Lifecycle](ret.events)
		if err != nil {
			return nil, err
		}
		ret.lifecycle = publisher
	}
	ret.memory = memory.New(ret.config.Layout.PageSize, ret.config.MaxFrames)
	ret.env = &execution.Env{
		Layout:          ret.config.Layout,
		Memory:          ret.memory,
		Loader:          memory.NewLoader(ret.memory, ret.config.Layout),
		PIDs:            idgen.NewRecycler(),
		KernelStacks:    idgen.NewRecycler(),
		KernelToken:     ret.config.KernelToken,
		TrapHandler:     ret.config.TrapHandler,
		TrapReturn:      ret.config.TrapReturn,
		Bounds:          ret.config.Deadlock,
		DefaultPriority: ret.config.Scheduler.DefaultPriority,
	}
	if ret.processes == nil {
		ret.processes = procdao.New()
	}
	ret.ready = scheduler.New[*execution.Task](ret.config.Scheduler)
	return ret, nil
}

// Config returns the kernel configuration.
func (s *Service) Config() Config { return s.config }

// Memory returns simulated physical memory.
func (s *Service) Memory() *memory.Memory { return s.memory }

// Images returns the image catalog used by exec and spawn.
func (s *Service) Images() *image.Service { return s.images }

// Processes returns the process table.
func (s *Service) Processes() dao.Service[int, execution.Process] { return s.processes }

// Progress returns task counters.
func (s *Service) Progress() progress.Counters { return s.progress.Snapshot() }

// Current returns the task on the CPU, nil when idle.
func (s *Service) Current() *execution.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// InitProcess returns the root process, nil before Boot.
func (s *Service) InitProcess() *execution.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initProc
}

// Halted reports whether the init process has exited.
func (s *Service) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// ReadyLen returns the number of queued tasks.
func (s *Service) ReadyLen() int { return s.ready.Len() }

// Boot creates the init process from Config.InitProgram and dispatches it.
func (s *Service) Boot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initProc != nil {
		return fmt.Errorf("kernel: already booted")
	}
	img, err := s.images.Load(ctx, s.config.InitProgram)
	if err != nil {
		return fmt.Errorf("failed to load init program %v: %w", s.config.InitProgram, err)
	}
	process, task, err := execution.New(s.env, img, s.config.InitArgs, execution.WithFdTable(s.console()))
	if err != nil {
		return fmt.Errorf("failed to create init process: %w", err)
	}
	if err = s.register(ctx, nil, process, task); err != nil {
		return fmt.Errorf("failed to register init process: %w", err)
	}
	s.initProc = process
	s.publish(ctx, event.TypeSpawn, task, event.Lifecycle{PID: process.PID(), ParentPID: execution.NoParent, Program: img.Name})
	s.runNext()
	return nil
}

func (s *Service) console() []fs.File {
	return fs.Console(s.stdin, s.stdout)
}
