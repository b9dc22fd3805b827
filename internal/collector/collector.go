// Package collector ties a capture source to the snapshot store.
//
// One Collect call is one poll tick: read the current cumulative counters for
// every tracked file and append them as one batch of snapshot rows. The
// collector never computes deltas; reconstruction happens at report time from
// whatever history accumulated.
package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/xtxerr/filestall/internal/capture"
	"github.com/xtxerr/filestall/internal/errors"
	"github.com/xtxerr/filestall/internal/iostats"
	"github.com/xtxerr/filestall/internal/logging"
)

// Appender is the store-side surface the collector needs.
type Appender interface {
	Append(ctx context.Context, snapshots []iostats.Snapshot) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options configures a Collector.
type Options struct {
	// Retention prunes snapshots older than now-Retention after each tick.
	// Zero disables pruning.
	Retention time.Duration
}

// Collector polls a capture source and persists the results.
type Collector struct {
	source capture.Source
	store  Appender
	opts   Options
	log    *slog.Logger

	now func() time.Time
}

// New creates a Collector.
func New(source capture.Source, store Appender, opts Options) *Collector {
	return &Collector{
		source: source,
		store:  store,
		opts:   opts,
		log:    logging.Component("collector"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Collect runs one poll tick: capture current counters, append them to the
// store, prune expired history. A tick either persists the full capture or
// nothing; a failing capture source or store propagates as a collaborator
// error.
func (c *Collector) Collect(ctx context.Context) (iostats.CaptureReceipt, error) {
	snapshots, err := c.source.Current(ctx)
	if err != nil {
		if errors.IsCollaboratorError(err) {
			return iostats.CaptureReceipt{}, err
		}
		return iostats.CaptureReceipt{}, errors.CaptureFailure(err, "read file stats")
	}

	receipt := iostats.CaptureReceipt{Files: len(snapshots)}
	if len(snapshots) > 0 {
		receipt.CapturedAt = snapshots[0].CapturedAt
		databases := make(map[int64]struct{})
		for _, s := range snapshots {
			databases[s.DatabaseID] = struct{}{}
		}
		receipt.Databases = len(databases)

		if err := c.store.Append(ctx, snapshots); err != nil {
			return iostats.CaptureReceipt{}, errors.StoreFailure(err, "append snapshots")
		}
	}

	if c.opts.Retention > 0 {
		cutoff := c.now().Add(-c.opts.Retention)
		deleted, err := c.store.DeleteBefore(ctx, cutoff)
		if err != nil {
			// Pruning failure does not invalidate the capture already
			// persisted this tick.
			c.log.Warn("retention prune failed", "error", err)
		} else if deleted > 0 {
			c.log.Debug("pruned expired snapshots", "deleted", deleted, "cutoff", cutoff)
		}
	}

	c.log.Info("collected file stats",
		"files", receipt.Files,
		"databases", receipt.Databases,
		"captured_at", receipt.CapturedAt)

	return receipt, nil
}

// Run collects immediately and then on every interval tick until ctx is
// cancelled. Individual tick failures are logged and the loop continues; only
// cancellation stops it.
func (c *Collector) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.NewInvalidValue("interval", interval, "must be positive")
	}

	if _, err := c.Collect(ctx); err != nil {
		c.log.Error("collect tick failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.Collect(ctx); err != nil {
				c.log.Error("collect tick failed", "error", err)
			}
		}
	}
}
