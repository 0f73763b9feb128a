package broker

import (
	"sync"
	"time"

	"github.com/danpasecinic/reservable/internal/types"
)

type requestState int

const (
	stateQueued requestState = iota
	stateInService
	stateAssigned
	stateAbandoned
)

// request is one caller waiting for a node of a label. Its result is
// set exactly once: either a node is assigned or the request is abandoned.
type request struct {
	requester string
	label     string
	createdAt time.Time

	mu    sync.Mutex
	state requestState
	node  types.Node
	done  chan struct{}
}

func newRequest(label, requester string) *request {
	return &request{
		requester: requester,
		label:     label,
		createdAt: time.Now(),
		state:     stateQueued,
		done:      make(chan struct{}),
	}
}

// startService moves a queued request into service. It fails if the
// caller already gave up.
func (r *request) startService() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateQueued {
		return false
	}
	r.state = stateInService
	return true
}

// assign hands node to the request. It fails if the request was abandoned.
func (r *request) assign(node types.Node) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateAssigned || r.state == stateAbandoned {
		return false
	}
	r.state = stateAssigned
	r.node = node
	close(r.done)
	return true
}

// abandon withdraws the request. It returns false when a node was
// already assigned, in which case the caller owns that node.
func (r *request) abandon() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateAssigned:
		return false
	case stateAbandoned:
		return true
	}
	r.state = stateAbandoned
	close(r.done)
	return true
}

// pending reports whether the request is still waiting for a node.
func (r *request) pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state == stateQueued || r.state == stateInService
}

func (r *request) result() (types.Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.node, r.state == stateAssigned
}

func (r *request) snapshot() types.QueuedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	return types.QueuedRequest{
		Requester: r.requester,
		Label:     r.label,
		CreatedAt: r.createdAt,
		InService: r.state == stateInService,
	}
}
