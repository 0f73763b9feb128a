package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danpasecinic/reservable/internal/types"
)

func TestRegisterAndGetNode(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	node := types.Node{
		Name:          "db-1",
		Labels:        "db linux",
		Reservable:    true,
		Settings:      []types.Setting{{Key: "PORT", Value: "5432"}},
		Status:        types.NodeOnline,
		LastHeartbeat: time.Now(),
	}

	if _, err := store.RegisterNode(ctx, node); err != nil {
		t.Fatalf("Failed to register node: %v", err)
	}

	retrieved, err := store.GetNode(ctx, "db-1")
	if err != nil {
		t.Fatalf("Failed to get node: %v", err)
	}

	if retrieved.Labels != node.Labels {
		t.Errorf("Expected labels %s, got %s", node.Labels, retrieved.Labels)
	}
	if len(retrieved.Settings) != 1 || retrieved.Settings[0].Value != "5432" {
		t.Errorf("Expected settings to round trip, got %v", retrieved.Settings)
	}

	retrieved.Settings[0].Value = "mutated"
	again, _ := store.GetNode(ctx, "db-1")
	if again.Settings[0].Value != "5432" {
		t.Error("Expected stored settings to be isolated from callers")
	}
}

func TestRegisterNodeReplaces(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, _ = store.RegisterNode(ctx, types.Node{Name: "n1", Labels: "db", Status: types.NodeOffline})
	_, err := store.RegisterNode(ctx, types.Node{Name: "n1", Labels: "cache", Status: types.NodeOnline})
	if err != nil {
		t.Fatalf("Failed to re-register node: %v", err)
	}

	nodes, _ := store.ListNodes(ctx)
	if len(nodes) != 1 {
		t.Fatalf("Expected 1 node, got %d", len(nodes))
	}
	if nodes[0].Labels != "cache" || !nodes[0].IsOnline() {
		t.Errorf("Expected re-registration to replace node, got %+v", nodes[0])
	}
}

func TestRegisterNodeRequiresName(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.RegisterNode(context.Background(), types.Node{Name: "  "})
	if !errors.Is(err, ErrInvalidNode) {
		t.Errorf("Expected ErrInvalidNode, got %v", err)
	}
}

func TestGetNonexistentNode(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.GetNode(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Expected ErrNodeNotFound, got %v", err)
	}

	_, err = store.IsOnline(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Expected ErrNodeNotFound from IsOnline, got %v", err)
	}
}

func TestUpdateNode(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, _ = store.RegisterNode(ctx, types.Node{Name: "n1", Labels: "db", Status: types.NodeOnline})

	heartbeat := time.Now().Add(time.Minute)
	updates := NodeUpdate{
		Status:        ptrTo(types.NodeOffline),
		LastHeartbeat: &heartbeat,
		Labels:        ptrTo("db cache"),
		Reservable:    ptrTo(true),
		Settings:      []types.Setting{{Key: "HOST", Value: "10.0.0.1"}},
	}

	if err := store.UpdateNode(ctx, "n1", updates); err != nil {
		t.Fatalf("Failed to update node: %v", err)
	}

	updated, _ := store.GetNode(ctx, "n1")
	if updated.Status != types.NodeOffline {
		t.Errorf("Expected status offline, got %s", updated.Status)
	}
	if !updated.LastHeartbeat.Equal(heartbeat) {
		t.Errorf("Expected heartbeat %v, got %v", heartbeat, updated.LastHeartbeat)
	}
	if !updated.HasLabel("cache") || !updated.Reservable {
		t.Errorf("Expected labels and reservable flag to be updated, got %+v", updated)
	}
	if len(updated.Settings) != 1 {
		t.Errorf("Expected 1 setting, got %d", len(updated.Settings))
	}

	online, _ := store.IsOnline(ctx, "n1")
	if online {
		t.Error("Expected node to be offline")
	}
}

func TestUpdateNonexistentNode(t *testing.T) {
	store := NewInMemoryStore()

	err := store.UpdateNode(context.Background(), "nonexistent", NodeUpdate{Status: ptrTo(types.NodeOnline)})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Expected ErrNodeNotFound, got %v", err)
	}
}

func TestListNodesSorted(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for _, name := range []string{"c", "a", "b"} {
		_, _ = store.RegisterNode(ctx, types.Node{Name: name})
	}

	nodes, err := store.ListNodes(ctx)
	if err != nil {
		t.Fatalf("Failed to list nodes: %v", err)
	}
	if len(nodes) != 3 || nodes[0].Name != "a" || nodes[2].Name != "c" {
		t.Errorf("Expected nodes sorted by name, got %v", nodes)
	}
}

func TestDeleteNode(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, _ = store.RegisterNode(ctx, types.Node{Name: "n1"})

	if err := store.DeleteNode(ctx, "n1"); err != nil {
		t.Fatalf("Failed to delete node: %v", err)
	}
	if err := store.DeleteNode(ctx, "n1"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Expected ErrNodeNotFound on second delete, got %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("node-%d", id)
			if _, err := store.RegisterNode(ctx, types.Node{Name: name, Status: types.NodeOnline}); err != nil {
				t.Errorf("Unexpected error registering node: %v", err)
			}
			_ = store.UpdateNode(ctx, name, NodeUpdate{Status: ptrTo(types.NodeOffline)})
		}(i)
		go func() {
			defer wg.Done()
			if _, err := store.ListNodes(ctx); err != nil {
				t.Errorf("Error listing nodes: %v", err)
			}
		}()
	}

	wg.Wait()

	nodes, _ := store.ListNodes(ctx)
	if len(nodes) != numGoroutines {
		t.Errorf("Expected %d nodes, got %d", numGoroutines, len(nodes))
	}
}
