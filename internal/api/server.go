package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danpasecinic/reservable/internal/broker"
	"github.com/danpasecinic/reservable/internal/catalog"
	"github.com/danpasecinic/reservable/internal/jobs"
)

// Server handles HTTP requests for the broker API.
type Server struct {
	l                hclog.Logger
	catalog          catalog.Catalog
	registry         catalog.Registry
	engine           *broker.Engine
	jobs             *jobs.Manager
	heartbeatTimeout time.Duration
}

// NewServer creates a new API server. Node registration endpoints are
// only served when cat is also a catalog.Registry.
func NewServer(
	l hclog.Logger, cat catalog.Catalog, engine *broker.Engine, jobManager *jobs.Manager,
	heartbeatTimeout time.Duration,
) *Server {
	s := &Server{
		l:                l.Named("api"),
		catalog:          cat,
		engine:           engine,
		jobs:             jobManager,
		heartbeatTimeout: heartbeatTimeout,
	}
	if registry, ok := cat.(catalog.Registry); ok {
		s.registry = registry
	}
	return s
}

// RegisterRoutes registers all API endpoints with the Echo router.
// Routes are grouped under /api/v1 for versioning.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	v1 := e.Group("/api/v1")

	// Node routes
	v1.POST("/nodes/register", s.RegisterNode)
	v1.POST("/nodes/:name/heartbeat", s.NodeHeartbeat)
	v1.PUT("/nodes/:name/status", s.UpdateNodeStatus)
	v1.GET("/nodes", s.ListNodes)
	v1.GET("/nodes/:name", s.GetNode)
	v1.DELETE("/nodes/:name", s.DeleteNode)

	// Resource routes
	v1.GET("/resources", s.ListResources)
	v1.GET("/resources/:name", s.GetResource)
	v1.POST("/resources/:name/reserve", s.ReserveResource)
	v1.POST("/resources/:name/release", s.ReleaseResource)
	v1.GET("/labels", s.ListLabels)
	v1.GET("/reservations", s.ListReservations)

	// Queue routes
	v1.GET("/queues", s.ListQueues)
	v1.GET("/queues/:label", s.GetQueue)

	// Job routes
	v1.POST("/jobs", s.CreateJob)
	v1.GET("/jobs", s.ListJobs)
	v1.GET("/jobs/:id", s.GetJob)
	v1.DELETE("/jobs/:id", s.EndJob)
	v1.POST("/jobs/:id/abort", s.AbortJob)

	v1.POST("/prune", s.Prune)
}

// RegisterMetrics serves the metrics gathered by g on /metrics.
func RegisterMetrics(e *echo.Echo, g prometheus.Gatherer) {
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, broker.ErrInvalidRequirement), errors.Is(err, broker.ErrInvalidTimeout),
		errors.Is(err, catalog.ErrInvalidNode):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNodeNotFound), errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, broker.ErrAlreadyReserved), errors.Is(err, jobs.ErrJobExists),
		errors.Is(err, broker.ErrCancelled), errors.Is(err, broker.ErrAbandoned):
		return http.StatusConflict
	case errors.Is(err, broker.ErrNotReservable), errors.Is(err, broker.ErrNoSuchLabel):
		return http.StatusUnprocessableEntity
	case errors.Is(err, broker.ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, catalog.ErrReadOnly):
		return http.StatusNotImplemented
	case errors.Is(err, broker.ErrEngineClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(statusFor(err), map[string]string{"error": err.Error()})
}

func ptrTo[T any](v T) *T {
	return &v
}
