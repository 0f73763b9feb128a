package broker

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/danpasecinic/reservable/internal/scheduler"
)

// DefaultPollInterval is how often a dispatcher rescans for free nodes
// while its head request is waiting.
const DefaultPollInterval = time.Second

// Option configures an Engine.
type Option func(*Engine)

// Liveness tells the engine whether the requester behind a queued
// request still exists. Dispatchers abandon requests whose requester is
// no longer active.
type Liveness interface {
	IsActive(requester string) bool
}

// LivenessFunc adapts a function to Liveness.
type LivenessFunc func(requester string) bool

// IsActive calls f(requester).
func (f LivenessFunc) IsActive(requester string) bool {
	return f(requester)
}

type alwaysActive struct{}

func (alwaysActive) IsActive(string) bool { return true }

// WithLogger sets up the logging instance for the engine.
func WithLogger(l hclog.Logger) Option {
	return func(e *Engine) {
		e.l = l.Named("broker")
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithLiveness installs the requester liveness check.
func WithLiveness(l Liveness) Option {
	return func(e *Engine) {
		if l != nil {
			e.liveness = l
		}
	}
}

// WithScheduler sets the order in which free candidates are tried.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.scheduler = s
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}
