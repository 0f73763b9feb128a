package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/reservable/internal/types"
)

// Prune handles POST /api/v1/prune
// Removes finished jobs and offline nodes. With all=true every node that
// is not currently held is removed.
func (s *Server) Prune(c echo.Context) error {
	all := c.QueryParam("all") == "true"

	result := &types.PruneResult{
		JobsRemoved: s.jobs.Prune(),
	}

	if s.registry != nil {
		ctx := c.Request().Context()
		nodes, err := s.registry.ListNodes(ctx)
		if err != nil {
			s.l.Error("prune failed to list nodes", "error", err)
			return errorJSON(c, err)
		}
		for _, node := range nodes {
			if s.engine.IsHeld(node.Name) {
				continue
			}
			if !all && node.Status != types.NodeOffline {
				continue
			}
			if err := s.registry.DeleteNode(ctx, node.Name); err != nil {
				s.l.Warn("prune failed to delete node", "node", node.Name, "error", err)
				continue
			}
			result.NodesRemoved++
		}
	}

	s.l.Info("prune completed", "jobs", result.JobsRemoved, "nodes", result.NodesRemoved, "all", all)

	return c.JSON(http.StatusOK, result)
}
