// Package report reconstructs interval I/O statistics from snapshot history.
//
// The pipeline runs per request: snapshot deltas (delta.go) are aggregated
// into (interval end, database, role) cells (aggregate.go) and merged into
// the dense time/dimension matrix (matrix.go) by the dispatcher (report.go).
// Every invocation is a self-contained, synchronous computation over the
// materialized window; concurrent reports share no mutable state.
package report

import (
	"sort"

	"github.com/xtxerr/filestall/internal/iostats"
)

// ComputeDeltas pairs every in-window snapshot with its immediate
// predecessor for the same (database, file) and returns the non-negative
// counter deltas.
//
// The predecessor of a snapshot is the snapshot with the greatest capture
// time strictly less than its own, regardless of whether that predecessor
// falls inside the window - callers pass the newest pre-window snapshot per
// file so the first in-window sample still yields a delta. A snapshot with
// no predecessor yields nothing. A pair where any counter decreases is a
// counter reset and is dropped whole, never clamped and never partially
// kept: a partial pair would report internally inconsistent stall-to-count
// ratios. Both cases are normal, silently skipped, and surface only as
// zero-filled cells.
func ComputeDeltas(window, predecessors []iostats.Snapshot) []iostats.Delta {
	if len(window) == 0 {
		return nil
	}

	last := make(map[iostats.FileKey]iostats.Snapshot, len(predecessors))
	for _, p := range predecessors {
		key := p.Key()
		if prev, ok := last[key]; !ok || p.CapturedAt.After(prev.CapturedAt) {
			last[key] = p
		}
	}

	ordered := make([]iostats.Snapshot, len(window))
	copy(ordered, window)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := &ordered[i], &ordered[j]
		if a.DatabaseID != b.DatabaseID {
			return a.DatabaseID < b.DatabaseID
		}
		if a.FileID != b.FileID {
			return a.FileID < b.FileID
		}
		return a.CapturedAt.Before(b.CapturedAt)
	})

	deltas := make([]iostats.Delta, 0, len(ordered))

	for i := range ordered {
		cur := &ordered[i]
		key := cur.Key()

		prev, ok := last[key]
		// The current snapshot becomes the predecessor for the next one
		// even when this pair is dropped: after a reset the new counter
		// baseline is the reset value itself.
		last[key] = *cur

		if !ok || !prev.CapturedAt.Before(cur.CapturedAt) {
			continue
		}

		d, ok := subtract(cur, &prev)
		if !ok {
			continue
		}
		deltas = append(deltas, d)
	}

	return deltas
}

// subtract computes later-minus-earlier counter deltas. The second return is
// false when any counter decreased (counter reset).
func subtract(later, earlier *iostats.Snapshot) (iostats.Delta, bool) {
	d := iostats.Delta{
		IntervalEnd:  later.CapturedAt,
		DatabaseName: later.DatabaseName,
		Role:         later.Role,

		Reads:        later.Reads - earlier.Reads,
		Writes:       later.Writes - earlier.Writes,
		ReadStallMs:  later.ReadStallMs - earlier.ReadStallMs,
		WriteStallMs: later.WriteStallMs - earlier.WriteStallMs,
		TotalStallMs: later.TotalStallMs - earlier.TotalStallMs,
		BytesRead:    later.BytesRead - earlier.BytesRead,
		BytesWritten: later.BytesWritten - earlier.BytesWritten,
	}

	if d.Reads < 0 || d.Writes < 0 ||
		d.ReadStallMs < 0 || d.WriteStallMs < 0 || d.TotalStallMs < 0 ||
		d.BytesRead < 0 || d.BytesWritten < 0 {
		return iostats.Delta{}, false
	}

	return d, true
}
