// Package broker hands out exclusive ownership of labelled nodes to jobs.
// Each label has one dispatcher that serves its wait queue in arrival
// order; a shared reservation table guarantees a node has at most one
// holder even when labels overlap.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/danpasecinic/reservable/internal/catalog"
	"github.com/danpasecinic/reservable/internal/scheduler"
	"github.com/danpasecinic/reservable/internal/types"
)

// Engine is the allocation engine. Construct one per process with New and
// stop it with Close.
type Engine struct {
	l            hclog.Logger
	catalog      catalog.Catalog
	table        *Table
	liveness     Liveness
	scheduler    scheduler.Scheduler
	metrics      *Metrics
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	dispatchers map[string]*dispatcher
	closed      bool
}

// New creates an engine reading nodes from cat.
func New(cat catalog.Catalog, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		l:            hclog.NewNullLogger(),
		catalog:      cat,
		table:        NewTable(),
		liveness:     alwaysActive{},
		scheduler:    scheduler.NewRandom(),
		pollInterval: DefaultPollInterval,
		ctx:          ctx,
		cancel:       cancel,
		dispatchers:  make(map[string]*dispatcher),
	}

	for _, o := range opts {
		o(e)
	}

	return e
}

// Close stops every dispatcher and waits for them to exit. Callers
// blocked in Acquire receive ErrEngineClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	e.l.Info("engine stopped")
}

func (e *Engine) dispatcherFor(label string) (*dispatcher, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	if d, ok := e.dispatchers[label]; ok {
		return d, nil
	}

	d := newDispatcher(e, label)
	e.dispatchers[label] = d
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		d.run(e.ctx)
	}()

	return d, nil
}

// Acquire blocks until a node carrying label is reserved for requester,
// timeout elapses, or ctx is cancelled. It fails fast with a ConfigError
// when no reservable node carries label at all.
func (e *Engine) Acquire(ctx context.Context, label, requester string, timeout time.Duration) (types.Node, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return types.Node{}, fmt.Errorf("%w: label is required", ErrInvalidRequirement)
	}
	if timeout <= 0 {
		return types.Node{}, ErrInvalidTimeout
	}

	known, err := e.labelExists(ctx, label)
	if err != nil {
		return types.Node{}, fmt.Errorf("list nodes: %w", err)
	}
	if !known {
		e.metrics.observe(label, outcomeConfigError, 0)
		return types.Node{}, &ConfigError{Label: label}
	}

	d, err := e.dispatcherFor(label)
	if err != nil {
		return types.Node{}, err
	}

	r := newRequest(label, requester)
	d.enqueue(r)
	e.l.Debug("request queued", "label", label, "requester", requester, "timeout", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var cause error
	select {
	case <-r.done:
	case <-timer.C:
		cause = &TimeoutError{Label: label, Timeout: timeout}
	case <-ctx.Done():
		cause = fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case <-e.ctx.Done():
		cause = ErrEngineClosed
	}

	if !r.abandon() {
		node, _ := r.result()
		e.metrics.observe(label, outcomeAcquired, time.Since(r.createdAt))
		return node, nil
	}
	d.withdraw(r)

	if cause == nil && e.ctx.Err() != nil {
		cause = ErrEngineClosed
	}

	switch {
	case cause == nil:
		e.metrics.observe(label, outcomeAbandoned, 0)
		return types.Node{}, ErrAbandoned
	case errors.Is(cause, ErrTimeout):
		e.metrics.observe(label, outcomeTimeout, 0)
		e.l.Info("timed out waiting for node", "label", label, "requester", requester, "timeout", timeout)
	default:
		e.metrics.observe(label, outcomeCancelled, 0)
	}
	return types.Node{}, cause
}

func (e *Engine) labelExists(ctx context.Context, label string) (bool, error) {
	nodes, err := e.catalog.ListNodes(ctx)
	if err != nil {
		return false, err
	}
	for _, node := range nodes {
		if node.Matches(label) {
			return true, nil
		}
	}
	return false, nil
}

// ReserveManually reserves name for user, bypassing the queues.
func (e *Engine) ReserveManually(ctx context.Context, name, user string) (types.Reservation, error) {
	node, err := e.catalog.GetNode(ctx, name)
	if err != nil {
		return types.Reservation{}, fmt.Errorf("reserve %s: %w", name, err)
	}
	if !node.Reservable {
		return types.Reservation{}, fmt.Errorf("reserve %s: %w", name, ErrNotReservable)
	}

	res := types.Reservation{
		Node:      node.Name,
		Holder:    user,
		Kind:      types.HolderUser,
		CreatedAt: time.Now(),
	}
	if !e.table.TryReserve(res) {
		return types.Reservation{}, fmt.Errorf("reserve %s: %w", name, ErrAlreadyReserved)
	}

	e.metrics.setReserved(e.table.Len())
	e.l.Info("node reserved manually", "node", name, "user", user)
	return res, nil
}

// Release frees name unconditionally. Releasing a free node is a no-op.
func (e *Engine) Release(name string) (types.Reservation, bool) {
	res, released := e.table.Release(name)
	if !released {
		return res, false
	}

	e.metrics.setReserved(e.table.Len())
	e.l.Info("node released", "node", name, "holder", res.Holder)
	e.nudgeAll()
	return res, true
}

// releaseHeld frees name only while holder still owns it.
func (e *Engine) releaseHeld(name, holder string) bool {
	if !e.table.ReleaseHeld(name, holder) {
		return false
	}

	e.metrics.setReserved(e.table.Len())
	e.l.Info("node released", "node", name, "holder", holder)
	e.nudgeAll()
	return true
}

// ReleaseHeldBy frees every node held by holder and returns how many
// were released.
func (e *Engine) ReleaseHeldBy(holder string) int {
	n := 0
	for _, res := range e.table.HeldBy(holder) {
		if e.releaseHeld(res.Node, holder) {
			n++
		}
	}
	return n
}

func (e *Engine) nudgeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, d := range e.dispatchers {
		d.nudge()
	}
}

// ListReservable returns every managed node with its current reservation.
func (e *Engine) ListReservable(ctx context.Context) ([]types.Resource, error) {
	nodes, err := e.catalog.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	resources := make([]types.Resource, 0, len(nodes))
	for _, node := range nodes {
		if !node.Reservable {
			continue
		}
		resource := types.Resource{Node: node}
		if res, held := e.table.ReservationOf(node.Name); held {
			resource.Reservation = &res
		}
		resources = append(resources, resource)
	}

	sort.Slice(resources, func(i, j int) bool { return resources[i].Node.Name < resources[j].Node.Name })
	return resources, nil
}

// ReservationInfo returns the reservation held on name, if any.
func (e *Engine) ReservationInfo(name string) (types.Reservation, bool) {
	return e.table.ReservationOf(name)
}

// IsHeld reports whether name currently has a holder.
func (e *Engine) IsHeld(name string) bool {
	return e.table.IsReserved(name)
}

// Reservations returns every current reservation ordered by node.
func (e *Engine) Reservations() []types.Reservation {
	return e.table.Snapshot()
}

// QueueContents returns the requests waiting on label, the one in
// service first.
func (e *Engine) QueueContents(label string) []types.QueuedRequest {
	e.mu.Lock()
	d, ok := e.dispatchers[strings.TrimSpace(label)]
	e.mu.Unlock()

	if !ok {
		return nil
	}
	return d.contents()
}

// Queues returns the wait queue of every label that has a dispatcher.
func (e *Engine) Queues() []types.LabelQueue {
	e.mu.Lock()
	labels := make([]string, 0, len(e.dispatchers))
	for label := range e.dispatchers {
		labels = append(labels, label)
	}
	e.mu.Unlock()

	sort.Strings(labels)
	out := make([]types.LabelQueue, 0, len(labels))
	for _, label := range labels {
		out = append(out, types.LabelQueue{Label: label, Requests: e.QueueContents(label)})
	}
	return out
}

// Labels returns the distinct tags carried by managed nodes.
func (e *Engine) Labels(ctx context.Context) ([]string, error) {
	nodes, err := e.catalog.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	seen := make(map[string]struct{})
	for _, node := range nodes {
		if !node.Reservable {
			continue
		}
		for _, tag := range node.LabelSet() {
			seen[tag] = struct{}{}
		}
	}

	labels := make([]string, 0, len(seen))
	for tag := range seen {
		labels = append(labels, tag)
	}
	sort.Strings(labels)
	return labels, nil
}
