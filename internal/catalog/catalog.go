package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/danpasecinic/reservable/internal/types"
)

var (
	// ErrNodeNotFound is returned when a node is not known to the catalog
	ErrNodeNotFound = errors.New("node not found")
	// ErrReadOnly is returned by catalogs that discover nodes instead of accepting registrations
	ErrReadOnly = errors.New("catalog is read-only")
	// ErrInvalidNode is returned when a node is registered without a name
	ErrInvalidNode = errors.New("node name is required")
)

// Catalog supplies the set of known nodes and their online state.
// The broker only ever reads from it.
type Catalog interface {
	ListNodes(ctx context.Context) ([]types.Node, error)
	GetNode(ctx context.Context, name string) (types.Node, error)
	IsOnline(ctx context.Context, name string) (bool, error)
}

// Registry is a Catalog that nodes can register with and heartbeat to.
type Registry interface {
	Catalog

	// RegisterNode inserts the node or replaces an existing node of the same name.
	RegisterNode(ctx context.Context, node types.Node) (types.Node, error)
	UpdateNode(ctx context.Context, name string, updates NodeUpdate) error
	DeleteNode(ctx context.Context, name string) error
}

// NodeUpdate contains fields that can be updated for a node
type NodeUpdate struct {
	Status        *types.NodeStatus
	LastHeartbeat *time.Time
	Labels        *string
	Reservable    *bool
	Settings      []types.Setting
}

func ptrTo[T any](v T) *T {
	return &v
}
