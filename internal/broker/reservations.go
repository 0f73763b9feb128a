package broker

import (
	"sort"
	"sync"

	"github.com/danpasecinic/reservable/internal/types"
)

// Table maps node names to their current holder. A node absent from the
// table is free. All mutations go through a single mutex so dispatchers
// for overlapping labels can race on the same node safely.
type Table struct {
	mu      sync.Mutex
	entries map[string]types.Reservation
}

// NewTable creates an empty reservation table.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]types.Reservation),
	}
}

// TryReserve records res if its node is currently free and reports
// whether it did.
func (t *Table) TryReserve(res types.Reservation) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, held := t.entries[res.Node]; held {
		return false
	}
	t.entries[res.Node] = res
	return true
}

// Release frees node unconditionally. Releasing a free node is a no-op;
// the bool reports whether a reservation was removed.
func (t *Table) Release(node string) (types.Reservation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, held := t.entries[node]
	if held {
		delete(t.entries, node)
	}
	return res, held
}

// ReleaseHeld frees node only while it is still held by holder.
func (t *Table) ReleaseHeld(node, holder string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, held := t.entries[node]
	if !held || res.Holder != holder {
		return false
	}
	delete(t.entries, node)
	return true
}

// IsReserved reports whether node currently has a holder.
func (t *Table) IsReserved(node string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, held := t.entries[node]
	return held
}

// ReservationOf returns the reservation on node, if any.
func (t *Table) ReservationOf(node string) (types.Reservation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, held := t.entries[node]
	return res, held
}

// HeldBy returns every reservation owned by holder, ordered by node name.
func (t *Table) HeldBy(holder string) []types.Reservation {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []types.Reservation
	for _, res := range t.entries {
		if res.Holder == holder {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

// Snapshot returns all reservations ordered by node name.
func (t *Table) Snapshot() []types.Reservation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.Reservation, 0, len(t.entries))
	for _, res := range t.entries {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

// Len returns the number of held nodes.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
