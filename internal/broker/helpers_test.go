package broker

import (
	"context"
	"testing"
	"time"

	"github.com/danpasecinic/reservable/internal/catalog"
	"github.com/danpasecinic/reservable/internal/types"
)

func managedNode(name, labels string) types.Node {
	return types.Node{
		Name:          name,
		Labels:        labels,
		Reservable:    true,
		Status:        types.NodeOnline,
		LastHeartbeat: time.Now(),
	}
}

func newTestEngine(t *testing.T, nodes []types.Node, opts ...Option) (*Engine, *catalog.InMemoryStore) {
	t.Helper()

	store := catalog.NewInMemoryStore()
	for _, n := range nodes {
		if _, err := store.RegisterNode(context.Background(), n); err != nil {
			t.Fatalf("failed to register node %s: %v", n.Name, err)
		}
	}

	opts = append([]Option{WithPollInterval(10 * time.Millisecond)}, opts...)
	e := New(store, opts...)
	t.Cleanup(e.Close)

	return e, store
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type acquireResult struct {
	node types.Node
	err  error
}

func acquireAsync(e *Engine, label, requester string, timeout time.Duration) <-chan acquireResult {
	ch := make(chan acquireResult, 1)
	go func() {
		node, err := e.Acquire(context.Background(), label, requester, timeout)
		ch <- acquireResult{node: node, err: err}
	}()
	return ch
}
