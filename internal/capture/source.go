// Package capture reads live cumulative file-I/O counters from the engine.
//
// The capture side is an external collaborator of the report core: the core
// only consumes the snapshots a Source produces. Two implementations exist,
// the SQL Server client and a synthetic source for tests and load runs.
package capture

import (
	"context"

	"github.com/xtxerr/filestall/internal/iostats"
)

// Source supplies a single current-state counter read: one Snapshot per
// currently tracked file, all stamped with the same capture time.
type Source interface {
	// Current reads the engine's cumulative per-file I/O counters.
	Current(ctx context.Context) ([]iostats.Snapshot, error)

	// Close releases the underlying connection.
	Close() error
}
