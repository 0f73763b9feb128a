package catalog

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/danpasecinic/reservable/internal/types"
)

// RunExpiry periodically marks nodes offline when their last heartbeat is
// older than timeout. It returns when ctx is cancelled.
func RunExpiry(ctx context.Context, l hclog.Logger, registry Registry, interval, timeout time.Duration) {
	l = l.Named("expiry")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.Info("node expiration checker started", "interval", interval, "timeout", timeout)

	for {
		select {
		case <-ticker.C:
			if n, err := ExpireStale(ctx, registry, timeout, time.Now()); err != nil {
				l.Warn("failed to list nodes for expiration check", "error", err)
			} else if n > 0 {
				l.Info("marked nodes offline due to heartbeat timeout", "count", n)
			}
		case <-ctx.Done():
			l.Info("node expiration checker stopped")
			return
		}
	}
}

// ExpireStale marks every online node whose heartbeat is older than timeout
// as offline and returns how many nodes were changed.
func ExpireStale(ctx context.Context, registry Registry, timeout time.Duration, now time.Time) (int, error) {
	nodes, err := registry.ListNodes(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, node := range nodes {
		if node.Status != types.NodeOnline || !node.LastHeartbeat.Add(timeout).Before(now) {
			continue
		}
		update := NodeUpdate{Status: ptrTo(types.NodeOffline)}
		if err := registry.UpdateNode(ctx, node.Name, update); err == nil {
			expired++
		}
	}

	return expired, nil
}
