package scheduler

import (
	"fmt"

	"github.com/danpasecinic/reservable/internal/types"
)

// Scheduler decides the order in which free candidate nodes are tried
// when servicing a queued request. Implementations must be safe for
// concurrent use.
type Scheduler interface {
	// Order returns the candidates in the order reservation should be
	// attempted. The input slice must not be modified.
	Order(candidates []types.Node) []types.Node
}

// New returns the scheduler registered under name.
func New(name string) (Scheduler, error) {
	switch name {
	case "", "random":
		return NewRandom(), nil
	case "roundrobin", "round-robin":
		return NewRoundRobin(), nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q (valid options: random, roundrobin)", name)
	}
}
