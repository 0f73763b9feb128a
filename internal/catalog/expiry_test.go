package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/danpasecinic/reservable/internal/types"
)

func TestExpireStale(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_, _ = store.RegisterNode(ctx, types.Node{Name: "fresh", Status: types.NodeOnline, LastHeartbeat: now})
	_, _ = store.RegisterNode(
		ctx, types.Node{Name: "stale", Status: types.NodeOnline, LastHeartbeat: now.Add(-2 * time.Minute)},
	)
	_, _ = store.RegisterNode(
		ctx, types.Node{Name: "gone", Status: types.NodeOffline, LastHeartbeat: now.Add(-time.Hour)},
	)

	n, err := ExpireStale(ctx, store, 90*time.Second, now)
	if err != nil {
		t.Fatalf("ExpireStale() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ExpireStale() = %d, want 1", n)
	}

	if online, _ := store.IsOnline(ctx, "stale"); online {
		t.Error("Expected stale node to be offline")
	}
	if online, _ := store.IsOnline(ctx, "fresh"); !online {
		t.Error("Expected fresh node to stay online")
	}
}

func TestRunExpiryStopsOnCancel(t *testing.T) {
	store := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	_, _ = store.RegisterNode(
		ctx, types.Node{Name: "stale", Status: types.NodeOnline, LastHeartbeat: time.Now().Add(-time.Hour)},
	)

	done := make(chan struct{})
	go func() {
		RunExpiry(ctx, hclog.NewNullLogger(), store, 10*time.Millisecond, time.Second)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if online, _ := store.IsOnline(context.Background(), "stale"); !online {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if online, _ := store.IsOnline(context.Background(), "stale"); online {
		t.Error("Expected expiry loop to mark stale node offline")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunExpiry did not return after cancel")
	}
}
