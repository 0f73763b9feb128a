package jobs

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/danpasecinic/reservable/internal/broker"
	"github.com/danpasecinic/reservable/internal/types"
)

var (
	// ErrJobNotFound is returned when a job is not known to the manager
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists is returned when starting a job whose id is still in use
	ErrJobExists = errors.New("job already exists")
	// ErrNotAttached is returned when the manager has no engine to acquire from
	ErrNotAttached = errors.New("job manager is not attached to an engine")
)

var (
	_ broker.Liveness = (*Manager)(nil)
	_ broker.Reporter = (*Manager)(nil)
)

// Spec describes the resources a job needs.
type Spec struct {
	ID           string
	Requirements []types.Requirement
	Timeout      time.Duration
}

type entry struct {
	job    types.Job
	ledger *broker.Ledger
	cancel context.CancelFunc
	active bool
}

// Manager tracks jobs through acquisition, run and teardown. It is the
// engine's liveness source: a job is active from Start until it is
// finished, aborted or fails.
type Manager struct {
	l              hclog.Logger
	defaultTimeout time.Duration
	engine         *broker.Engine
	acquirer       *broker.Acquirer

	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewManager creates a job manager. defaultTimeout applies to jobs that
// do not set their own.
func NewManager(l hclog.Logger, defaultTimeout time.Duration) *Manager {
	return &Manager{
		l:              l.Named("jobs"),
		defaultTimeout: defaultTimeout,
		jobs:           make(map[string]*entry),
	}
}

// Attach binds the manager to the engine it acquires from. The engine
// should have been created with broker.WithLiveness(m).
func (m *Manager) Attach(e *broker.Engine) {
	m.engine = e
	m.acquirer = broker.NewAcquirer(e, m)
}

// IsActive implements broker.Liveness.
func (m *Manager) IsActive(jobID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[jobID]
	return ok && e.active
}

// Waiting implements broker.Reporter.
func (m *Manager) Waiting(jobID, label string) {
	m.update(
		jobID, func(e *entry) {
			e.job.Description = fmt.Sprintf("Waiting for next available resource from '%s'...", label)
		},
	)
}

// Acquired implements broker.Reporter.
func (m *Manager) Acquired(jobID string, grant types.Grant) {
	m.update(
		jobID, func(e *entry) {
			e.job.Description = fmt.Sprintf("Acquired %s for '%s'", grant.Node.Name, grant.Label)
		},
	)
	m.l.Debug("resource acquired", "job", jobID, "label", grant.Label, "node", grant.Node.Name)
}

// Released implements broker.Reporter.
func (m *Manager) Released(jobID string, grant types.Grant) {
	m.l.Debug("resource released", "job", jobID, "label", grant.Label, "node", grant.Node.Name)
}

func (m *Manager) update(jobID string, fn func(e *entry)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.jobs[jobID]; ok {
		fn(e)
	}
}

// Start acquires every requirement of spec and blocks until the job is
// running or has failed. On failure the returned job carries the status
// and message describing why.
func (m *Manager) Start(ctx context.Context, spec Spec) (types.Job, error) {
	if m.acquirer == nil {
		return types.Job{}, ErrNotAttached
	}

	spec.ID = strings.TrimSpace(spec.ID)
	if spec.ID == "" {
		spec.ID = generateID()
	}
	if spec.Timeout == 0 {
		spec.Timeout = m.defaultTimeout
	}
	if err := broker.ValidateRequirements(spec.ID, spec.Requirements); err != nil {
		return types.Job{}, err
	}
	if spec.Timeout < 0 {
		return types.Job{}, broker.ErrInvalidTimeout
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	// an aborted job keeps its id until its Start has returned
	if existing, ok := m.jobs[spec.ID]; ok && (!existing.job.IsTerminal() || existing.cancel != nil) {
		m.mu.Unlock()
		return types.Job{}, fmt.Errorf("%w: %s", ErrJobExists, spec.ID)
	}
	e := &entry{
		job: types.Job{
			JobID:        spec.ID,
			Requirements: spec.Requirements,
			Timeout:      spec.Timeout,
			Status:       types.JobAcquiring,
			CreatedAt:    time.Now(),
		},
		cancel: cancel,
		active: true,
	}
	m.jobs[spec.ID] = e
	m.mu.Unlock()

	m.l.Info("job acquiring resources", "job", spec.ID, "requirements", len(spec.Requirements))
	ledger, err := m.acquirer.Begin(jobCtx, spec.ID, spec.Requirements, spec.Timeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if err != nil {
		e.active = false
		e.cancel = nil
		e.job.FinishedAt = &now
		e.job.Status, e.job.Error = failureStatus(e.job.Status, err)
		e.job.Description = e.job.Error
		m.l.Warn("job failed to acquire resources", "job", spec.ID, "status", e.job.Status, "error", err)
		return e.job, err
	}

	if !e.active {
		// aborted between the last grant and now
		e.cancel = nil
		m.acquirer.End(ledger)
		e.job.Status = types.JobAborted
		e.job.FinishedAt = &now
		return e.job, broker.ErrCancelled
	}

	e.ledger = ledger
	e.cancel = nil
	e.job.Grants = ledger.Grants()
	e.job.Env = ProjectEnv(e.job.Grants)
	e.job.Status = types.JobRunning
	e.job.StartedAt = &now
	e.job.Description = "Running"
	m.l.Info("job running", "job", spec.ID, "grants", len(e.job.Grants))
	return e.job, nil
}

func failureStatus(current types.JobStatus, err error) (types.JobStatus, string) {
	var timeoutErr *broker.TimeoutError
	var configErr *broker.ConfigError
	switch {
	case errors.As(err, &timeoutErr):
		return types.JobTimedOut, fmt.Sprintf(
			"Reservable resource maximum wait time (%s) reached while waiting for '%s'",
			timeoutErr.Timeout, timeoutErr.Label,
		)
	case errors.As(err, &configErr):
		return types.JobFailed, fmt.Sprintf("There are no reservable nodes with label '%s'", configErr.Label)
	case current == types.JobAborted, errors.Is(err, broker.ErrCancelled), errors.Is(err, broker.ErrAbandoned):
		return types.JobAborted, "Aborted while waiting for resources"
	default:
		return types.JobFailed, err.Error()
	}
}

// Finish ends the job's acquisition and releases everything it holds.
// It is safe to call on every path, including for jobs that failed or
// are still waiting.
func (m *Manager) Finish(jobID string) (types.Job, error) {
	return m.stop(jobID, types.JobFinished)
}

// Abort marks the job inactive so any queued request for it is abandoned,
// then releases whatever it holds.
func (m *Manager) Abort(jobID string) (types.Job, error) {
	return m.stop(jobID, types.JobAborted)
}

func (m *Manager) stop(jobID string, status types.JobStatus) (types.Job, error) {
	m.mu.Lock()
	e, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return types.Job{}, ErrJobNotFound
	}

	if e.job.IsTerminal() {
		job := e.job
		m.mu.Unlock()
		return job, nil
	}

	e.active = false
	if e.job.Status == types.JobAcquiring {
		// Start owns the entry until Begin returns; it records the outcome.
		e.job.Status = types.JobAborted
		if e.cancel != nil {
			e.cancel()
		}
		job := e.job
		m.mu.Unlock()
		m.l.Info("job stopped while acquiring", "job", jobID)
		return job, nil
	}

	ledger := e.ledger
	e.ledger = nil
	now := time.Now()
	e.job.Status = status
	e.job.FinishedAt = &now
	e.job.Description = ""
	job := e.job
	m.mu.Unlock()

	released := m.acquirer.End(ledger)
	if stray := m.engine.ReleaseHeldBy(jobID); stray > 0 {
		m.l.Warn("released nodes held by job outside its ledger", "job", jobID, "count", stray)
		released += stray
	}
	m.l.Info("job resources released", "job", jobID, "status", status, "released", released)
	return job, nil
}

// Get returns a job by id
func (m *Manager) Get(jobID string) (types.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[jobID]
	if !ok {
		return types.Job{}, ErrJobNotFound
	}
	return e.job, nil
}

// List returns all known jobs, oldest first
func (m *Manager) List() []types.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Job, 0, len(m.jobs))
	for _, e := range m.jobs {
		out = append(out, e.job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Prune forgets every job that no longer holds or waits for resources.
func (m *Manager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.jobs {
		if e.job.IsTerminal() && e.cancel == nil {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

func generateID() string {
	return time.Now().Format("20060102150405") + "-" + randString(8)
}

func randString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			panic(err)
		}
		b[i] = letters[idx.Int64()]
	}
	return string(b)
}
