package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/danpasecinic/reservable/internal/types"
)

const (
	// LabelsKey is the container label holding the node's space-separated tags.
	// Only containers carrying it are exposed as nodes.
	LabelsKey = "reservable.labels"
	// ReservableKey marks a labelled container as managed. Defaults to true.
	ReservableKey = "reservable.enabled"
	// SettingPrefix prefixes container labels exported as node settings.
	SettingPrefix = "reservable.env."
)

type containerLister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	Close() error
}

// DockerCatalog exposes labelled Docker containers as reservable nodes.
// A node is online while its container is running.
type DockerCatalog struct {
	cli containerLister
}

// NewDockerCatalog creates a catalog backed by the local Docker daemon.
func NewDockerCatalog() (*DockerCatalog, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerCatalog{cli: cli}, nil
}

// Close closes the Docker client connection.
func (d *DockerCatalog) Close() error {
	if d.cli != nil {
		return d.cli.Close()
	}
	return nil
}

// ListNodes returns one node per labelled container, ordered by name.
func (d *DockerCatalog) ListNodes(ctx context.Context) ([]types.Node, error) {
	containers, err := d.cli.ContainerList(
		ctx, container.ListOptions{
			All:     true,
			Filters: filters.NewArgs(filters.Arg("label", LabelsKey)),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	nodes := make([]types.Node, 0, len(containers))
	for _, c := range containers {
		node, ok := nodeFromContainer(c)
		if !ok {
			continue
		}
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// GetNode retrieves a node by container name
func (d *DockerCatalog) GetNode(ctx context.Context, name string) (types.Node, error) {
	nodes, err := d.ListNodes(ctx)
	if err != nil {
		return types.Node{}, err
	}
	for _, node := range nodes {
		if node.Name == name {
			return node, nil
		}
	}
	return types.Node{}, ErrNodeNotFound
}

// IsOnline reports whether the named container is running
func (d *DockerCatalog) IsOnline(ctx context.Context, name string) (bool, error) {
	node, err := d.GetNode(ctx, name)
	if err != nil {
		return false, err
	}
	return node.IsOnline(), nil
}

func nodeFromContainer(c container.Summary) (types.Node, bool) {
	if len(c.Names) == 0 {
		return types.Node{}, false
	}

	labels, ok := c.Labels[LabelsKey]
	if !ok {
		return types.Node{}, false
	}

	node := types.Node{
		Name:          strings.TrimPrefix(c.Names[0], "/"),
		Labels:        strings.Join(strings.Fields(labels), " "),
		Reservable:    c.Labels[ReservableKey] != "false",
		Status:        types.NodeOffline,
		LastHeartbeat: time.Unix(c.Created, 0),
	}
	if string(c.State) == "running" {
		node.Status = types.NodeOnline
		node.LastHeartbeat = time.Now()
	}

	for key, value := range c.Labels {
		if strings.HasPrefix(key, SettingPrefix) {
			node.Settings = append(
				node.Settings, types.Setting{Key: strings.TrimPrefix(key, SettingPrefix), Value: value},
			)
		}
	}
	sort.Slice(node.Settings, func(i, j int) bool { return node.Settings[i].Key < node.Settings[j].Key })

	return node, true
}
