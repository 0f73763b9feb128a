package scheduler

import (
	"math/rand"

	"github.com/danpasecinic/reservable/internal/types"
)

// Random tries candidates in a uniformly random order, which spreads
// contention when several labels share the same nodes.
type Random struct{}

// NewRandom creates a new random scheduler.
func NewRandom() *Random {
	return &Random{}
}

// Order returns a random permutation of candidates.
func (r *Random) Order(candidates []types.Node) []types.Node {
	ordered := make([]types.Node, len(candidates))
	for i, j := range rand.Perm(len(candidates)) {
		ordered[i] = candidates[j]
	}
	return ordered
}
