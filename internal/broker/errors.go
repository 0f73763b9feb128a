package broker

import (
	"errors"
	"fmt"
	"time"

	"github.com/danpasecinic/reservable/internal/catalog"
)

var (
	// ErrNoSuchLabel is matched by ConfigError: no reservable node carries the label
	ErrNoSuchLabel = errors.New("no reservable nodes carry label")
	// ErrTimeout is matched by TimeoutError: no node became free before the deadline
	ErrTimeout = errors.New("timed out waiting for resource")
	// ErrAlreadyReserved is returned when manually reserving a node that is already held
	ErrAlreadyReserved = errors.New("node already reserved")
	// ErrNodeNotFound is returned when the catalog does not know the node
	ErrNodeNotFound = catalog.ErrNodeNotFound
	// ErrNotReservable is returned when the node exists but is not a managed resource
	ErrNotReservable = errors.New("node is not a reservable resource")
	// ErrCancelled is returned when the caller's context ends before a node is assigned
	ErrCancelled = errors.New("acquisition cancelled")
	// ErrAbandoned is returned when the requester stopped being active while queued
	ErrAbandoned = errors.New("acquisition abandoned: requester is no longer active")
	// ErrInvalidTimeout is returned for non-positive timeouts
	ErrInvalidTimeout = errors.New("timeout must be positive")
	// ErrInvalidRequirement is returned for malformed requirement lists
	ErrInvalidRequirement = errors.New("invalid requirement")
	// ErrEngineClosed is returned once the engine has been shut down
	ErrEngineClosed = errors.New("engine closed")
)

// ConfigError reports a label that no managed node carries at all.
// It is a setup failure and is never retried.
type ConfigError struct {
	Label string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("there are no reservable nodes with label '%s'", e.Label)
}

// Is lets errors.Is(err, ErrNoSuchLabel) match.
func (e *ConfigError) Is(target error) bool {
	return target == ErrNoSuchLabel
}

// TimeoutError reports that no node was assigned within Timeout.
type TimeoutError struct {
	Label   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("maximum wait time (%s) reached while waiting for '%s'", e.Timeout, e.Label)
}

// Is lets errors.Is(err, ErrTimeout) match.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
