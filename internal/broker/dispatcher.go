package broker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/danpasecinic/reservable/internal/types"
)

// dispatcher serialises matching for one label. A single goroutine takes
// requests from the queue in arrival order and services the head request
// until it is assigned a node or abandoned.
type dispatcher struct {
	label   string
	e       *Engine
	l       hclog.Logger
	queue   *queue
	current atomic.Pointer[request]
	wake    chan struct{}
}

func newDispatcher(e *Engine, label string) *dispatcher {
	return &dispatcher{
		label: label,
		e:     e,
		l:     e.l.Named("dispatcher").With("label", label),
		queue: newQueue(),
		wake:  make(chan struct{}, 1),
	}
}

func (d *dispatcher) enqueue(r *request) {
	d.queue.push(r)
	d.e.metrics.setQueueDepth(d.label, d.queue.len())
}

// withdraw removes r if it has not been picked up yet.
func (d *dispatcher) withdraw(r *request) {
	if d.queue.remove(r) {
		d.e.metrics.setQueueDepth(d.label, d.queue.len())
	}
}

// nudge makes a waiting dispatcher rescan immediately.
func (d *dispatcher) nudge() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run(ctx context.Context) {
	d.l.Debug("dispatcher started")
	defer d.l.Debug("dispatcher stopped")

	for {
		r, err := d.queue.pop(ctx)
		if err != nil {
			return
		}
		d.e.metrics.setQueueDepth(d.label, d.queue.len())

		if !r.startService() {
			continue
		}

		d.current.Store(r)
		d.serve(ctx, r)
		d.current.Store(nil)
	}
}

// serve polls for a free node until r is settled.
func (d *dispatcher) serve(ctx context.Context, r *request) {
	ticker := time.NewTicker(d.e.pollInterval)
	defer ticker.Stop()

	for {
		if !d.e.liveness.IsActive(r.requester) {
			if r.abandon() {
				d.l.Info("requester no longer active, abandoning request", "requester", r.requester)
			}
			return
		}

		if d.match(ctx, r) {
			return
		}

		select {
		case <-ticker.C:
		case <-d.wake:
		case <-r.done:
			return
		case <-ctx.Done():
			r.abandon()
			return
		}
	}
}

// match makes one pass over the free candidates. It reports whether r
// has been settled.
func (d *dispatcher) match(ctx context.Context, r *request) bool {
	nodes, err := d.e.catalog.ListNodes(ctx)
	if err != nil {
		d.l.Warn("failed to list nodes", "error", err)
		return false
	}

	candidates := make([]types.Node, 0, len(nodes))
	for _, node := range nodes {
		if node.IsOnline() && node.Matches(d.label) && !d.e.table.IsReserved(node.Name) {
			candidates = append(candidates, node)
		}
	}

	for _, node := range d.e.scheduler.Order(candidates) {
		res := types.Reservation{
			Node:      node.Name,
			Holder:    r.requester,
			Kind:      types.HolderJob,
			Label:     d.label,
			CreatedAt: time.Now(),
		}
		if !d.e.table.TryReserve(res) {
			// lost the node to another label's dispatcher
			continue
		}

		if online, err := d.e.catalog.IsOnline(ctx, node.Name); err != nil || !online {
			d.e.table.Release(node.Name)
			continue
		}

		// the requester may have gone away while the catalog was scanned
		if !d.e.liveness.IsActive(r.requester) {
			d.e.Release(node.Name)
			if r.abandon() {
				d.l.Info("requester no longer active, abandoning request", "requester", r.requester)
			}
			return true
		}

		if !r.assign(node) {
			d.e.Release(node.Name)
			return true
		}

		d.e.metrics.setReserved(d.e.table.Len())
		d.l.Info("assigned node", "node", node.Name, "requester", r.requester)
		return true
	}

	return false
}

func (d *dispatcher) contents() []types.QueuedRequest {
	var out []types.QueuedRequest
	if r := d.current.Load(); r != nil {
		if r.pending() {
			out = append(out, r.snapshot())
		}
	}
	for _, r := range d.queue.snapshot() {
		if r.pending() {
			out = append(out, r.snapshot())
		}
	}
	return out
}
