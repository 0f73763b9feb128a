package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/reservable/internal/jobs"
	"github.com/danpasecinic/reservable/internal/types"
)

// CreateJobRequest represents a request to acquire resources for a job.
type CreateJobRequest struct {
	JobID        string              `json:"jobId"`
	Requirements []types.Requirement `json:"requirements" validate:"required"`
	Timeout      string              `json:"timeout"` // e.g., "30m", defaults to the broker setting
}

// CreateJob handles POST /api/v1/jobs.
// Blocks until every requirement is held or acquisition fails. A client
// that disconnects while waiting aborts the acquisition.
func (s *Server) CreateJob(c echo.Context) error {
	var req CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	var timeout time.Duration
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			return c.JSON(
				http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid timeout: %q", req.Timeout)},
			)
		}
		timeout = d
	}

	job, err := s.jobs.Start(
		c.Request().Context(), jobs.Spec{
			ID:           req.JobID,
			Requirements: req.Requirements,
			Timeout:      timeout,
		},
	)
	if err != nil {
		if job.JobID == "" {
			return errorJSON(c, err)
		}
		return c.JSON(statusFor(err), job)
	}

	return c.JSON(http.StatusCreated, job)
}

// ListJobs handles GET /api/v1/jobs.
func (s *Server) ListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, s.jobs.List())
}

// GetJob handles GET /api/v1/jobs/:id.
func (s *Server) GetJob(c echo.Context) error {
	job, err := s.jobs.Get(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// EndJob handles DELETE /api/v1/jobs/:id.
// Releases everything the job holds.
func (s *Server) EndJob(c echo.Context) error {
	job, err := s.jobs.Finish(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// AbortJob handles POST /api/v1/jobs/:id/abort.
func (s *Server) AbortJob(c echo.Context) error {
	job, err := s.jobs.Abort(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, job)
}
