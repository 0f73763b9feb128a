package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/reservable/internal/catalog"
	"github.com/danpasecinic/reservable/internal/types"
)

// RegisterNodeRequest represents a request to register a node.
type RegisterNodeRequest struct {
	Name       string          `json:"name" validate:"required"`
	Labels     string          `json:"labels"`
	Reservable *bool           `json:"reservable,omitempty"` // defaults to true
	Settings   []types.Setting `json:"settings,omitempty"`
}

// UpdateNodeStatusRequest represents a request to change a node's status.
type UpdateNodeStatusRequest struct {
	Status types.NodeStatus `json:"status" validate:"required"`
}

// RegisterNode handles POST /api/v1/nodes/register.
// Registers a node, replacing any previous registration of the same name.
func (s *Server) RegisterNode(c echo.Context) error {
	if s.registry == nil {
		return errorJSON(c, catalog.ErrReadOnly)
	}

	var req RegisterNodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	reservable := true
	if req.Reservable != nil {
		reservable = *req.Reservable
	}

	node := types.Node{
		Name:          req.Name,
		Labels:        strings.Join(strings.Fields(req.Labels), " "),
		Reservable:    reservable,
		Settings:      req.Settings,
		Status:        types.NodeOnline,
		LastHeartbeat: time.Now(),
	}

	node, err := s.registry.RegisterNode(c.Request().Context(), node)
	if err != nil {
		return errorJSON(c, err)
	}

	s.l.Info("node registered", "node", node.Name, "labels", node.Labels)
	return c.JSON(http.StatusCreated, node)
}

// NodeHeartbeat handles POST /api/v1/nodes/:name/heartbeat.
// Updates the last heartbeat time for a node and marks it online.
func (s *Server) NodeHeartbeat(c echo.Context) error {
	if s.registry == nil {
		return errorJSON(c, catalog.ErrReadOnly)
	}

	name := c.Param("name")
	ctx := c.Request().Context()

	now := time.Now()
	update := catalog.NodeUpdate{
		Status:        ptrTo(types.NodeOnline),
		LastHeartbeat: &now,
	}

	if err := s.registry.UpdateNode(ctx, name, update); err != nil {
		return errorJSON(c, err)
	}

	node, _ := s.registry.GetNode(ctx, name)
	return c.JSON(http.StatusOK, node)
}

// UpdateNodeStatus handles PUT /api/v1/nodes/:name/status.
func (s *Server) UpdateNodeStatus(c echo.Context) error {
	if s.registry == nil {
		return errorJSON(c, catalog.ErrReadOnly)
	}

	var req UpdateNodeStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Status != types.NodeOnline && req.Status != types.NodeOffline {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "status must be online or offline"})
	}

	name := c.Param("name")
	if err := s.registry.UpdateNode(c.Request().Context(), name, catalog.NodeUpdate{Status: &req.Status}); err != nil {
		return errorJSON(c, err)
	}

	s.l.Info("node status changed", "node", name, "status", req.Status)
	node, _ := s.registry.GetNode(c.Request().Context(), name)
	return c.JSON(http.StatusOK, node)
}

// ListNodes handles GET /api/v1/nodes.
// Returns all known nodes with status adjusted for stale heartbeats.
func (s *Server) ListNodes(c echo.Context) error {
	nodes, err := s.catalog.ListNodes(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if s.registry != nil && s.heartbeatTimeout > 0 {
		now := time.Now()
		for i := range nodes {
			if nodes[i].LastHeartbeat.Add(s.heartbeatTimeout).Before(now) {
				nodes[i].Status = types.NodeOffline
			}
		}
	}

	if nodes == nil {
		nodes = []types.Node{}
	}
	return c.JSON(http.StatusOK, nodes)
}

// GetNode handles GET /api/v1/nodes/:name.
func (s *Server) GetNode(c echo.Context) error {
	node, err := s.catalog.GetNode(c.Request().Context(), c.Param("name"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, node)
}

// DeleteNode handles DELETE /api/v1/nodes/:name.
// Any reservation on the node is dropped with it.
func (s *Server) DeleteNode(c echo.Context) error {
	if s.registry == nil {
		return errorJSON(c, catalog.ErrReadOnly)
	}

	name := c.Param("name")
	if err := s.registry.DeleteNode(c.Request().Context(), name); err != nil {
		return errorJSON(c, err)
	}
	s.engine.Release(name)

	return c.NoContent(http.StatusNoContent)
}
