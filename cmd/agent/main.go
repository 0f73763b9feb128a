package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	"github.com/danpasecinic/reservable/internal/agent"
	"github.com/danpasecinic/reservable/internal/types"
)

// settingsFlag collects repeated -setting KEY=VALUE flags in order.
type settingsFlag []types.Setting

func (s *settingsFlag) String() string {
	parts := make([]string, 0, len(*s))
	for _, setting := range *s {
		parts = append(parts, setting.Key+"="+setting.Value)
	}
	return strings.Join(parts, ",")
}

func (s *settingsFlag) Set(v string) error {
	key, value, _ := strings.Cut(v, "=")
	*s = append(*s, types.Setting{Key: strings.TrimSpace(key), Value: value})
	return nil
}

func main() {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var settings settingsFlag

	name := flag.String("name", os.Getenv("RESERVABLE_NODE_NAME"), "Node name (required)")
	labels := flag.String("labels", os.Getenv("RESERVABLE_NODE_LABELS"), "Space separated node labels")
	reservable := flag.Bool("reservable", true, "Whether jobs may reserve this node")
	brokerURL := flag.String("broker-url", "http://localhost:8080", "Broker API URL")
	heartbeatInterval := flag.Duration("heartbeat-interval", 30*time.Second, "Heartbeat interval")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Var(&settings, "setting", "Node setting KEY=VALUE, exported to jobs (repeatable)")

	flag.Parse()

	appLogger := hclog.New(
		&hclog.LoggerOptions{
			Name:  "reservable-agent",
			Level: hclog.LevelFromString(*logLevel),
		},
	)

	if *name == "" {
		appLogger.Error("name is required")
		os.Exit(1)
	}

	nodeAgent := agent.NewAgent(
		appLogger, agent.Config{
			Name:       *name,
			Labels:     *labels,
			Reservable: *reservable,
			Settings:   settings,
		}, *brokerURL,
	)

	appLogger.Info("registering node with broker", "broker", *brokerURL)
	if err := nodeAgent.Register(); err != nil {
		appLogger.Error("failed to register with broker", "error", err)
		os.Exit(1)
	}

	nodeAgent.Start(*heartbeatInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()

	if err := nodeAgent.Shutdown(ctx); err != nil {
		appLogger.Warn("agent shutdown error", "error", err)
	}

	appLogger.Info("agent stopped")
}
