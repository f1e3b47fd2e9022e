package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ProbeFunc performs a prepared probe
type ProbeFunc func(ctx context.Context) (*Info, error)

// RunFunc performs a prepared download and returns the engine exit code
type RunFunc func(ctx context.Context) (int, error)

// Driver constructs engine calls. Construction happens while the execution
// context is held; the returned funcs are called after it is released.
type Driver interface {
	NewProbe(url string) ProbeFunc
	NewRun(url string, opts Options) RunFunc
}

// Serialized is the single shared execution context of a Driver. Entry into
// the driver (construction and interrupt) is serialized; blocking work is not.
type Serialized struct {
	driver Driver

	mu          sync.Mutex
	running     map[ExecutionID]context.CancelCauseFunc
	interrupted map[ExecutionID]struct{}
}

// NewSerialized wraps driver in a single execution context
func NewSerialized(driver Driver) *Serialized {
	return &Serialized{
		driver:      driver,
		running:     make(map[ExecutionID]context.CancelCauseFunc),
		interrupted: make(map[ExecutionID]struct{}),
	}
}

// Probe implements Engine
func (s *Serialized) Probe(ctx context.Context, url string) (*Info, error) {
	s.mu.Lock()
	probe := s.driver.NewProbe(url)
	s.mu.Unlock()

	return probe(ctx)
}

// Run implements Engine
func (s *Serialized) Run(ctx context.Context, id ExecutionID, url string, opts Options) (int, error) {
	s.mu.Lock()
	if _, ok := s.interrupted[id]; ok {
		delete(s.interrupted, id)
		s.mu.Unlock()
		return 0, ErrInterrupted
	}
	if _, ok := s.running[id]; ok {
		s.mu.Unlock()
		return 0, fmt.Errorf("execution %s is already running", id)
	}
	run := s.driver.NewRun(url, opts)
	runCtx, cancel := context.WithCancelCause(ctx)
	s.running[id] = cancel
	s.mu.Unlock()

	code, err := run(runCtx)

	s.mu.Lock()
	delete(s.running, id)
	s.mu.Unlock()

	interrupted := errors.Is(context.Cause(runCtx), ErrInterrupted)
	cancel(nil)
	if interrupted {
		if err != nil {
			return code, fmt.Errorf("%w: %v", ErrInterrupted, err)
		}
		return code, ErrInterrupted
	}
	return code, err
}

// Interrupt implements Engine. An interrupt for an id that has not started
// yet is remembered, and the matching Run returns ErrInterrupted at once.
func (s *Serialized) Interrupt(id ExecutionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.running[id]; ok {
		cancel(ErrInterrupted)
		return
	}
	s.interrupted[id] = struct{}{}
}

// Running returns the number of registered executions
func (s *Serialized) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}
