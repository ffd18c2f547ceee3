package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// EventPruner is the slice of the repository the cleaner consumes
type EventPruner interface {
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner periodically prunes telemetry events past their retention window.
// Sessions expire on their own via Redis TTLs and need no sweeping.
type Cleaner struct {
	pruner    EventPruner
	interval  time.Duration
	retention time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(pruner EventPruner, interval, retention time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	return &Cleaner{
		pruner:    pruner,
		interval:  interval,
		retention: retention,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "retention", c.retention)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-c.retention)

	deleted, err := c.pruner.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("failed to prune telemetry events", "error", err)
		return
	}

	if deleted > 0 {
		slog.Info("pruned telemetry events", "count", deleted, "cutoff", cutoff)
	} else {
		slog.Debug("no telemetry events past retention")
	}
}
