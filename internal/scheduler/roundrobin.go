package scheduler

import (
	"sync"

	"github.com/danpasecinic/reservable/internal/types"
)

// RoundRobin rotates the starting candidate on every call so that
// consecutive grants are spread across the pool.
// RoundRobin is safe for concurrent use.
type RoundRobin struct {
	mu       sync.Mutex
	lastUsed int
}

// NewRoundRobin creates a new round-robin scheduler.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{
		lastUsed: -1,
	}
}

// Order returns candidates starting one past the previously chosen position.
func (rr *RoundRobin) Order(candidates []types.Node) []types.Node {
	if len(candidates) == 0 {
		return nil
	}

	rr.mu.Lock()
	rr.lastUsed = (rr.lastUsed + 1) % len(candidates)
	start := rr.lastUsed
	rr.mu.Unlock()

	ordered := make([]types.Node, 0, len(candidates))
	ordered = append(ordered, candidates[start:]...)
	ordered = append(ordered, candidates[:start]...)
	return ordered
}
