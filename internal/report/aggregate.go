package report

import (
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/filestall/internal/iostats"
)

// AggregateOptions configures metric derivation.
type AggregateOptions struct {
	// PageSizeBytes converts byte counters to page counts. Zero means the
	// default 8 KiB engine page size.
	PageSizeBytes int64

	// Percentiles enables per-file latency percentile tracking (DDSketch).
	Percentiles bool
}

func (o AggregateOptions) pageSize() int64 {
	if o.PageSizeBytes > 0 {
		return o.PageSizeBytes
	}
	return iostats.DefaultPageSizeBytes
}

// cell identifies one aggregation group. Cumulative-scope groups use a zero
// timestamp.
type cell struct {
	atNano int64
	dim    iostats.DimensionKey
}

// accumulator holds the running sums for one cell.
type accumulator struct {
	at  time.Time
	dim iostats.DimensionKey

	reads, writes             int64
	readStallMs, writeStallMs int64
	totalStallMs              int64
	bytesRead, bytesWritten   int64
	fileCount                 int64

	readSketch  *ddsketch.DDSketch
	writeSketch *ddsketch.DDSketch
}

// sketchAccuracy is the DDSketch relative accuracy for latency percentiles.
const sketchAccuracy = 0.01

func newAccumulator(at time.Time, dim iostats.DimensionKey, percentiles bool) *accumulator {
	acc := &accumulator{at: at, dim: dim}
	if percentiles {
		// ddsketch only errors on an out-of-range accuracy
		if sk, err := ddsketch.NewDefaultDDSketch(sketchAccuracy); err == nil {
			acc.readSketch = sk
		}
		if sk, err := ddsketch.NewDefaultDDSketch(sketchAccuracy); err == nil {
			acc.writeSketch = sk
		}
	}
	return acc
}

// add folds one file's interval counters into the cell.
func (a *accumulator) add(reads, writes, readStallMs, writeStallMs, totalStallMs, bytesRead, bytesWritten int64) {
	a.reads += reads
	a.writes += writes
	a.readStallMs += readStallMs
	a.writeStallMs += writeStallMs
	a.totalStallMs += totalStallMs
	a.bytesRead += bytesRead
	a.bytesWritten += bytesWritten
	a.fileCount++

	if a.readSketch != nil && reads > 0 {
		a.readSketch.Add(float64(readStallMs) / float64(reads))
	}
	if a.writeSketch != nil && writes > 0 {
		a.writeSketch.Add(float64(writeStallMs) / float64(writes))
	}
}

// metric derives the final report cell from the running sums.
//
// Latency averages divide stall sums by operation counts and are exactly 0
// for zero operations, never NaN. The total average weights by volume: it is
// combined stall over combined operations, not the mean of the two separate
// averages.
func (a *accumulator) metric(scope iostats.Scope, pageSize int64) iostats.Metric {
	m := iostats.Metric{
		IntervalEnd: a.at,
		Database:    a.dim.Database,
		Role:        a.dim.Role,
		Scope:       scope,

		TotalReads:  a.reads,
		TotalWrites: a.writes,

		TotalReadKB:  a.bytesRead / 1024,
		TotalWriteKB: a.bytesWritten / 1024,

		TotalReadPages:  a.bytesRead / pageSize,
		TotalWritePages: a.bytesWritten / pageSize,

		FileCount: a.fileCount,
	}

	if a.reads > 0 {
		m.AvgReadLatencyMs = float64(a.readStallMs) / float64(a.reads)
	}
	if a.writes > 0 {
		m.AvgWriteLatencyMs = float64(a.writeStallMs) / float64(a.writes)
	}
	if ops := a.reads + a.writes; ops > 0 {
		m.AvgTotalLatencyMs = float64(a.totalStallMs) / float64(ops)
	}

	if a.readSketch != nil && a.readSketch.GetCount() > 0 {
		if p95, err := a.readSketch.GetValueAtQuantile(0.95); err == nil {
			m.P95ReadLatencyMs = &p95
		}
	}
	if a.writeSketch != nil && a.writeSketch.GetCount() > 0 {
		if p95, err := a.writeSketch.GetValueAtQuantile(0.95); err == nil {
			m.P95WriteLatencyMs = &p95
		}
	}

	return m
}

// AggregateDeltas groups interval deltas by (interval end, database, role)
// and derives one interval-scope Metric per group.
func AggregateDeltas(deltas []iostats.Delta, opts AggregateOptions) []iostats.Metric {
	groups := make(map[cell]*accumulator)

	for i := range deltas {
		d := &deltas[i]
		c := cell{atNano: d.IntervalEnd.UnixNano(), dim: d.Dimension()}

		acc, ok := groups[c]
		if !ok {
			acc = newAccumulator(d.IntervalEnd, d.Dimension(), opts.Percentiles)
			groups[c] = acc
		}
		acc.add(d.Reads, d.Writes, d.ReadStallMs, d.WriteStallMs, d.TotalStallMs,
			d.BytesRead, d.BytesWritten)
	}

	metrics := make([]iostats.Metric, 0, len(groups))
	for _, acc := range groups {
		metrics = append(metrics, acc.metric(iostats.ScopeInterval, opts.pageSize()))
	}
	return metrics
}

// AggregateCurrent groups raw cumulative snapshots by (database, role) with
// an implicit single "now" interval and derives one cumulative-scope Metric
// per group. The counters cover all time since engine start, so the latency
// figures are lifetime averages - deliberately labeled cumulative, never
// conflated with interval metrics.
func AggregateCurrent(snapshots []iostats.Snapshot, opts AggregateOptions) []iostats.Metric {
	groups := make(map[iostats.DimensionKey]*accumulator)

	for i := range snapshots {
		s := &snapshots[i]
		dim := s.Dimension()

		acc, ok := groups[dim]
		if !ok {
			acc = newAccumulator(time.Time{}, dim, opts.Percentiles)
			groups[dim] = acc
		}
		acc.add(s.Reads, s.Writes, s.ReadStallMs, s.WriteStallMs, s.TotalStallMs,
			s.BytesRead, s.BytesWritten)
	}

	metrics := make([]iostats.Metric, 0, len(groups))
	for _, acc := range groups {
		metrics = append(metrics, acc.metric(iostats.ScopeCumulative, opts.pageSize()))
	}
	return metrics
}
