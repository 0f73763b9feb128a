package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/danpasecinic/reservable/internal/types"
)

// InMemoryStore is a thread-safe in-memory implementation of Registry.
type InMemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]types.Node
}

// NewInMemoryStore creates a new in-memory node store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nodes: make(map[string]types.Node),
	}
}

// RegisterNode adds or replaces a node in the store
func (s *InMemoryStore) RegisterNode(_ context.Context, node types.Node) (types.Node, error) {
	node.Name = strings.TrimSpace(node.Name)
	if node.Name == "" {
		return types.Node{}, ErrInvalidNode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node.Settings = copySettings(node.Settings)
	s.nodes[node.Name] = node
	return node, nil
}

// GetNode retrieves a node by name
func (s *InMemoryStore) GetNode(_ context.Context, name string) (types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, exists := s.nodes[name]
	if !exists {
		return types.Node{}, ErrNodeNotFound
	}
	node.Settings = copySettings(node.Settings)
	return node, nil
}

// IsOnline reports whether the named node is currently online
func (s *InMemoryStore) IsOnline(ctx context.Context, name string) (bool, error) {
	node, err := s.GetNode(ctx, name)
	if err != nil {
		return false, err
	}
	return node.IsOnline(), nil
}

// UpdateNode updates specific fields of a node
func (s *InMemoryStore) UpdateNode(_ context.Context, name string, updates NodeUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, exists := s.nodes[name]
	if !exists {
		return ErrNodeNotFound
	}

	if updates.Status != nil {
		node.Status = *updates.Status
	}
	if updates.LastHeartbeat != nil {
		node.LastHeartbeat = *updates.LastHeartbeat
	}
	if updates.Labels != nil {
		node.Labels = *updates.Labels
	}
	if updates.Reservable != nil {
		node.Reservable = *updates.Reservable
	}
	if updates.Settings != nil {
		node.Settings = copySettings(updates.Settings)
	}

	s.nodes[name] = node
	return nil
}

// ListNodes returns all nodes ordered by name
func (s *InMemoryStore) ListNodes(_ context.Context) ([]types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]types.Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		node.Settings = copySettings(node.Settings)
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// DeleteNode removes a node from the store
func (s *InMemoryStore) DeleteNode(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[name]; !exists {
		return ErrNodeNotFound
	}

	delete(s.nodes, name)
	return nil
}

func copySettings(in []types.Setting) []types.Setting {
	if in == nil {
		return nil
	}
	out := make([]types.Setting, len(in))
	copy(out, in)
	return out
}
