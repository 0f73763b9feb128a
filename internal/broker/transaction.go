package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/danpasecinic/reservable/internal/types"
)

// Reporter receives progress of a job's acquisition. Implementations
// must not block.
type Reporter interface {
	Waiting(jobID, label string)
	Acquired(jobID string, grant types.Grant)
	Released(jobID string, grant types.Grant)
}

type nopReporter struct{}

func (nopReporter) Waiting(string, string)       {}
func (nopReporter) Acquired(string, types.Grant) {}
func (nopReporter) Released(string, types.Grant) {}

// Ledger is the ordered list of grants a job holds. It only grows while
// the job is acquiring and is emptied by ReleaseAll.
type Ledger struct {
	JobID string

	mu     sync.Mutex
	grants []types.Grant
}

// Grants returns a copy of the ledger entries in acquisition order.
func (l *Ledger) Grants() []types.Grant {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.Grant, len(l.grants))
	copy(out, l.grants)
	return out
}

// Len returns the number of grants currently held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.grants)
}

func (l *Ledger) append(g types.Grant) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.grants = append(l.grants, g)
}

func (l *Ledger) drain() []types.Grant {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.grants
	l.grants = nil
	return out
}

// Acquirer acquires all of a job's requirements as one unit.
type Acquirer struct {
	engine   *Engine
	l        hclog.Logger
	reporter Reporter
}

// NewAcquirer creates an acquirer on top of e. reporter may be nil.
func NewAcquirer(e *Engine, reporter Reporter) *Acquirer {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Acquirer{
		engine:   e,
		l:        e.l.Named("acquirer"),
		reporter: reporter,
	}
}

// Begin acquires one node per requirement, in order, each waiting at most
// timeout. If any step fails every node already acquired is released
// before the error is returned, so a failed Begin leaves no reservation
// behind. The returned error matches ErrTimeout, ErrNoSuchLabel,
// ErrCancelled or ErrAbandoned.
func (a *Acquirer) Begin(
	ctx context.Context, jobID string, reqs []types.Requirement, timeout time.Duration,
) (*Ledger, error) {
	if err := ValidateRequirements(jobID, reqs); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	ledger := &Ledger{JobID: jobID}
	for _, req := range reqs {
		a.reporter.Waiting(jobID, req.Label)

		node, err := a.engine.Acquire(ctx, req.Label, jobID, timeout)
		if err != nil {
			released := a.ReleaseAll(ledger)
			a.l.Info(
				"acquisition failed, rolled back", "job", jobID, "label", req.Label,
				"released", released, "error", err,
			)
			return nil, fmt.Errorf("acquire %q: %w", req.Label, err)
		}

		grant := types.Grant{Label: req.Label, VariablePrefix: req.VariablePrefix, Node: node}
		ledger.append(grant)
		a.reporter.Acquired(jobID, grant)
	}

	a.l.Info("all resources acquired", "job", jobID, "count", ledger.Len())
	return ledger, nil
}

// End releases everything the job holds. It is safe to call on any
// path, including after a failed Begin or more than once.
func (a *Acquirer) End(ledger *Ledger) int {
	if ledger == nil {
		return 0
	}
	return a.ReleaseAll(ledger)
}

// ReleaseAll releases the ledger's grants in acquisition order and
// empties it. Nodes that were taken over by another holder in the
// meantime are left alone.
func (a *Acquirer) ReleaseAll(ledger *Ledger) int {
	released := 0
	for _, grant := range ledger.drain() {
		if a.engine.releaseHeld(grant.Node.Name, ledger.JobID) {
			released++
		} else {
			a.l.Warn("node no longer held by job", "job", ledger.JobID, "node", grant.Node.Name)
		}
		a.reporter.Released(ledger.JobID, grant)
	}
	return released
}

// ValidateRequirements checks that a requirement list is usable: a job
// id and at least one requirement, every label and variable prefix
// non-blank, and no prefix used twice.
func ValidateRequirements(jobID string, reqs []types.Requirement) error {
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("%w: job id is required", ErrInvalidRequirement)
	}
	if len(reqs) == 0 {
		return fmt.Errorf("%w: at least one requirement is needed", ErrInvalidRequirement)
	}

	prefixes := make(map[string]struct{}, len(reqs))
	for i, req := range reqs {
		if strings.TrimSpace(req.Label) == "" {
			return fmt.Errorf("%w: requirement %d has no label", ErrInvalidRequirement, i)
		}
		prefix := strings.TrimSpace(req.VariablePrefix)
		if prefix == "" {
			return fmt.Errorf("%w: requirement %d has no variable prefix", ErrInvalidRequirement, i)
		}
		if _, dup := prefixes[prefix]; dup {
			return fmt.Errorf("%w: variable prefix %q used twice", ErrInvalidRequirement, prefix)
		}
		prefixes[prefix] = struct{}{}
	}

	return nil
}
