package download

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ytget/yt-converter/internal/engine"
)

// Concurrency limits
const (
	DefaultMaxConcurrency = 2
	MinMaxConcurrency     = 1
)

// JobHandle identifies a submitted job to the manager
type JobHandle string

// Config configures a Manager
type Config struct {
	MaxConcurrency int
	Policy         Policy
	Logger         *zap.Logger
}

// QueueSnapshot is a point-in-time view of the queue
type QueueSnapshot struct {
	MaxConcurrency int
	Active         []string
	Pending        []string // in dispatch order
}

// Manager admits jobs, runs at most MaxConcurrency of them at once, and
// dispatches the rest in submission order
type Manager struct {
	engine engine.Engine
	policy Policy
	logger *zap.Logger
	ctx    context.Context

	mu             sync.Mutex
	idle           *sync.Cond
	maxConcurrency int
	active         map[string]*Job
	pending        []*Job
	unavailable    error
}

// NewManager creates a manager over eng
func NewManager(eng engine.Engine, cfg Config) *Manager {
	if cfg.MaxConcurrency < MinMaxConcurrency {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	m := &Manager{
		engine:         eng,
		policy:         cfg.Policy,
		logger:         cfg.Logger,
		ctx:            context.Background(),
		maxConcurrency: cfg.MaxConcurrency,
		active:         make(map[string]*Job),
	}
	m.idle = sync.NewCond(&m.mu)
	return m
}

// Configure changes the concurrency cap. Raising it dispatches pending jobs
// at once; lowering it lets running jobs finish.
func (m *Manager) Configure(maxConcurrency int) error {
	if maxConcurrency < MinMaxConcurrency {
		return fmt.Errorf("max concurrency must be at least %d, got %d", MinMaxConcurrency, maxConcurrency)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.maxConcurrency = maxConcurrency
	m.logger.Debug("concurrency changed", zap.Int("max", maxConcurrency))
	m.dispatchLocked()
	return nil
}

// SetUnavailable makes every later Submit fail with err. A nil err clears it.
func (m *Manager) SetUnavailable(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = err
}

// Submit enqueues a pending job and dispatches it if a slot is free
func (m *Manager) Submit(job *Job) (JobHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable != nil {
		return "", m.unavailable
	}
	if err := job.markSubmitted(); err != nil {
		return "", err
	}

	m.pending = append(m.pending, job)
	m.logger.Debug("job submitted", zap.String("job", job.ID()), zap.Int("pending", len(m.pending)))
	m.dispatchLocked()
	return JobHandle(job.ID()), nil
}

// Cancel cancels the job behind handle. A pending job leaves the queue; an
// active job gets its engine call interrupted. Unknown or finished handles
// are ignored.
func (m *Manager) Cancel(handle JobHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := string(handle)
	for i, job := range m.pending {
		if job.ID() != id {
			continue
		}
		m.pending = append(m.pending[:i], m.pending[i+1:]...)
		job.cancelPending()
		m.logger.Info("pending job cancelled", zap.String("job", id))
		m.signalIdleLocked()
		return nil
	}

	if job, ok := m.active[id]; ok {
		job.requestCancel(m.engine)
		m.logger.Info("cancel requested", zap.String("job", id))
	}
	return nil
}

// CancelAll cancels every pending and active job
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.pending {
		job.cancelPending()
	}
	m.pending = nil
	for _, job := range m.active {
		job.requestCancel(m.engine)
	}
	m.signalIdleLocked()
}

// Snapshot returns the current queue contents
func (m *Manager) Snapshot() QueueSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := QueueSnapshot{
		MaxConcurrency: m.maxConcurrency,
		Active:         make([]string, 0, len(m.active)),
		Pending:        make([]string, 0, len(m.pending)),
	}
	for id := range m.active {
		snap.Active = append(snap.Active, id)
	}
	for _, job := range m.pending {
		snap.Pending = append(snap.Pending, job.ID())
	}
	return snap
}

// Wait blocks until no job is active or pending
func (m *Manager) Wait() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.active) > 0 || len(m.pending) > 0 {
		m.idle.Wait()
	}
}

// dispatchLocked starts pending jobs while slots are free. m.mu must be held.
func (m *Manager) dispatchLocked() {
	for len(m.active) < m.maxConcurrency && len(m.pending) > 0 {
		job := m.pending[0]
		m.pending[0] = nil
		m.pending = m.pending[1:]

		if !job.claim() {
			continue
		}
		m.active[job.ID()] = job
		go m.runJob(job)
	}
}

func (m *Manager) runJob(job *Job) {
	out := job.execute(m.ctx, m.engine, m.policy, m.logger)
	m.onJobTerminal(job, out)
	job.logOutcome(m.logger, out)
}

// onJobTerminal makes the job terminal, frees its slot and dispatches the
// next pending job in one step, whatever the outcome was
func (m *Manager) onJobTerminal(job *Job, out outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.finish(out)
	delete(m.active, job.ID())
	m.dispatchLocked()
	m.signalIdleLocked()
}

func (m *Manager) signalIdleLocked() {
	if len(m.active) == 0 && len(m.pending) == 0 {
		m.idle.Broadcast()
	}
}
