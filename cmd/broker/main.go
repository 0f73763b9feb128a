package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/danpasecinic/reservable/internal/api"
	"github.com/danpasecinic/reservable/internal/broker"
	"github.com/danpasecinic/reservable/internal/catalog"
	"github.com/danpasecinic/reservable/internal/config"
	"github.com/danpasecinic/reservable/internal/jobs"
	"github.com/danpasecinic/reservable/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		hclog.Default().Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	appLogger := hclog.New(
		&hclog.LoggerOptions{
			Name:  "reservable",
			Level: hclog.LevelFromString(cfg.LogLevel),
		},
	)

	cat, closer, err := initCatalog(appLogger, cfg)
	if err != nil {
		appLogger.Error("failed to initialise catalog", "type", cfg.CatalogType, "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer func() {
			if err := closer(); err != nil {
				appLogger.Warn("error closing catalog", "error", err)
			}
		}()
	}

	sched, err := scheduler.New(cfg.Scheduler)
	if err != nil {
		appLogger.Error("invalid scheduler", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if registry, ok := cat.(catalog.Registry); ok {
		go catalog.RunExpiry(ctx, appLogger, registry, cfg.ExpirationInterval, cfg.HeartbeatTimeout)
	}

	jobManager := jobs.NewManager(appLogger, cfg.DefaultTimeout)
	engine := broker.New(
		cat,
		broker.WithLogger(appLogger),
		broker.WithPollInterval(cfg.PollInterval),
		broker.WithScheduler(sched),
		broker.WithLiveness(jobManager),
		broker.WithMetrics(broker.NewMetrics(prometheus.DefaultRegisterer)),
	)
	jobManager.Attach(engine)

	server := api.NewServer(appLogger, cat, engine, jobManager, cfg.HeartbeatTimeout)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET(
		"/health", func(c echo.Context) error {
			return c.JSON(
				http.StatusOK, map[string]string{
					"status":  "ok",
					"service": "reservable-broker",
					"catalog": cfg.CatalogType,
				},
			)
		},
	)

	server.RegisterRoutes(e)
	api.RegisterMetrics(e, prometheus.DefaultGatherer)

	go func() {
		appLogger.Info("broker starting", "addr", cfg.ListenAddr, "catalog", cfg.CatalogType, "scheduler", cfg.Scheduler)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	appLogger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Waiting acquisitions fail with ErrEngineClosed so their handlers
	// return before the server drains.
	engine.Close()

	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("error during server shutdown", "error", err)
	}

	appLogger.Info("server stopped")
}

// initCatalog initializes the node catalog based on configuration.
// Returns the catalog and an optional closer function.
func initCatalog(l hclog.Logger, cfg config.Config) (catalog.Catalog, func() error, error) {
	switch cfg.CatalogType {
	case config.CatalogPostgres:
		l.Info("initializing PostgreSQL catalog", "dsn", "***masked***")
		store, err := catalog.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.CatalogDocker:
		l.Info("using Docker catalog, containers labelled " + catalog.LabelsKey + " are nodes")
		dc, err := catalog.NewDockerCatalog()
		if err != nil {
			return nil, nil, err
		}
		return dc, dc.Close, nil

	default:
		l.Info("using in-memory catalog (nodes will not persist)")
		return catalog.NewInMemoryStore(), nil, nil
	}
}
