package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/reservable/internal/catalog"
	"github.com/danpasecinic/reservable/internal/types"
)

// ReserveRequest represents a manual reservation by a user.
type ReserveRequest struct {
	User string `json:"user" validate:"required"`
}

// ListResources handles GET /api/v1/resources.
// Returns every reservable node with its current reservation.
func (s *Server) ListResources(c echo.Context) error {
	resources, err := s.engine.ListReservable(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resources)
}

// GetResource handles GET /api/v1/resources/:name.
func (s *Server) GetResource(c echo.Context) error {
	name := c.Param("name")

	node, err := s.catalog.GetNode(c.Request().Context(), name)
	if err != nil {
		return errorJSON(c, err)
	}
	if !node.Reservable {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "node is not a reservable resource"})
	}

	resource := types.Resource{Node: node}
	if res, held := s.engine.ReservationInfo(name); held {
		resource.Reservation = &res
	}
	return c.JSON(http.StatusOK, resource)
}

// ReserveResource handles POST /api/v1/resources/:name/reserve.
// Reserves a node for a user, bypassing the wait queues.
func (s *Server) ReserveResource(c echo.Context) error {
	var req ReserveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if strings.TrimSpace(req.User) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user is required"})
	}

	res, err := s.engine.ReserveManually(c.Request().Context(), c.Param("name"), req.User)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ReleaseResource handles POST /api/v1/resources/:name/release.
// Releasing a free node succeeds and reports released=false.
func (s *Server) ReleaseResource(c echo.Context) error {
	name := c.Param("name")

	if _, err := s.catalog.GetNode(c.Request().Context(), name); err != nil && !s.engine.IsHeld(name) {
		return errorJSON(c, catalog.ErrNodeNotFound)
	}

	res, released := s.engine.Release(name)
	resp := map[string]interface{}{"node": name, "released": released}
	if released {
		resp["holder"] = res.Holder
	}
	return c.JSON(http.StatusOK, resp)
}

// ListReservations handles GET /api/v1/reservations.
// Returns every current reservation ordered by node.
func (s *Server) ListReservations(c echo.Context) error {
	reservations := s.engine.Reservations()
	if reservations == nil {
		reservations = []types.Reservation{}
	}
	return c.JSON(http.StatusOK, reservations)
}

// ListLabels handles GET /api/v1/labels.
func (s *Server) ListLabels(c echo.Context) error {
	labels, err := s.engine.Labels(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, labels)
}

// ListQueues handles GET /api/v1/queues.
func (s *Server) ListQueues(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Queues())
}

// GetQueue handles GET /api/v1/queues/:label.
func (s *Server) GetQueue(c echo.Context) error {
	label := c.Param("label")
	requests := s.engine.QueueContents(label)
	if requests == nil {
		requests = []types.QueuedRequest{}
	}
	return c.JSON(http.StatusOK, types.LabelQueue{Label: label, Requests: requests})
}
