package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xtxerr/filestall/internal/capture"
	"github.com/xtxerr/filestall/internal/errors"
	"github.com/xtxerr/filestall/internal/iostats"
	"github.com/xtxerr/filestall/internal/logging"
	"github.com/xtxerr/filestall/internal/validation"
)

// Mode selects the analysis mode of a report.
type Mode int

const (
	// ModeHistorical reconstructs per-interval metrics from stored snapshot
	// deltas over a lookback window.
	ModeHistorical Mode = iota
	// ModeCurrent reads live cumulative counters with no time dimension.
	ModeCurrent
)

// String returns a human-readable representation of the Mode.
func (m Mode) String() string {
	switch m {
	case ModeHistorical:
		return "historical"
	case ModeCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// ParseMode parses a report mode string.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "historical", "":
		return ModeHistorical, nil
	case "current":
		return ModeCurrent, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected historical or current)", errors.ErrInvalidMode, s)
	}
}

// DefaultLookback is the historical window when Options.Lookback is zero.
const DefaultLookback = 24 * time.Hour

// Options parameterizes one report request. All validation happens before
// any computation; an invalid option yields a request error and no partial
// result.
type Options struct {
	// Mode selects historical or current analysis.
	Mode Mode

	// Lookback is the historical window size. Zero means DefaultLookback.
	// Ignored in current mode.
	Lookback time.Duration

	// Database restricts the report to one database name (exact match).
	// Empty means no filter. A name absent from the store yields an empty
	// result, not an error.
	Database string

	// Role restricts the report to one file role: "data", "log", "all" or
	// empty. Any other value is a request error.
	Role string

	// Percentiles enables per-file latency percentile columns.
	Percentiles bool
}

// HistorySource supplies stored snapshots for historical reports. The store
// implements it; the core requires only read access.
type HistorySource interface {
	// Window returns snapshots captured within [from, to].
	Window(ctx context.Context, from, to time.Time) ([]iostats.Snapshot, error)

	// Predecessors returns the newest snapshot per file captured strictly
	// before the given time.
	Predecessors(ctx context.Context, before time.Time) ([]iostats.Snapshot, error)
}

// Service is the report entry point shared by the CLI and the shell.
//
// Service holds no mutable state across requests; concurrent reports are
// independent, read-only computations.
type Service struct {
	history  HistorySource
	live     capture.Source
	pageSize int64
	log      *slog.Logger

	// now is the clock; overridable in tests.
	now func() time.Time
}

// Config configures a report Service.
type Config struct {
	// History is the snapshot store. Required for historical mode.
	History HistorySource

	// Live is the capture source. Required for current mode.
	Live capture.Source

	// PageSizeBytes overrides the engine page size assumption.
	PageSizeBytes int64
}

// New creates a report Service.
func New(cfg Config) *Service {
	return &Service{
		history:  cfg.History,
		live:     cfg.Live,
		pageSize: cfg.PageSizeBytes,
		log:      logging.Component("report"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Report runs one report request and returns the ordered metric rows.
//
// Historical mode returns the dense matrix: exactly one row per observed
// (timestamp, database, role) cell, zero-filled where no delta exists,
// sorted by (time, database, role). Current mode returns one cumulative row
// per (database, role), sorted by (database, role). The request either
// yields the full result or fails outright; there are no partial successes.
func (s *Service) Report(ctx context.Context, opts Options) ([]iostats.Metric, error) {
	roleFilter, err := validation.ParseRoleFilter(opts.Role)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateDatabaseName(opts.Database); err != nil {
		return nil, err
	}

	switch opts.Mode {
	case ModeHistorical:
		return s.historical(ctx, opts, roleFilter)
	case ModeCurrent:
		return s.current(ctx, opts, roleFilter)
	default:
		return nil, fmt.Errorf("%w: %d", errors.ErrInvalidMode, opts.Mode)
	}
}

// historical runs the delta -> aggregate -> matrix-merge pipeline over
// [now-lookback, now].
func (s *Service) historical(ctx context.Context, opts Options, roleFilter validation.RoleFilter) ([]iostats.Metric, error) {
	lookback := opts.Lookback
	if lookback == 0 {
		lookback = DefaultLookback
	}
	if err := validation.ValidateLookback(lookback); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, errors.NewMissingField("history source")
	}

	to := s.now()
	from := to.Add(-lookback)

	window, err := s.history.Window(ctx, from, to)
	if err != nil {
		return nil, errors.StoreFailure(err, "load window")
	}
	predecessors, err := s.history.Predecessors(ctx, from)
	if err != nil {
		return nil, errors.StoreFailure(err, "load predecessors")
	}

	deltas := ComputeDeltas(window, predecessors)
	matrix := BuildMatrix(window)
	aggregated := AggregateDeltas(deltas, s.aggregateOptions(opts))

	rows := mergeIntoMatrix(matrix, aggregated)
	rows = filterRows(rows, opts.Database, roleFilter)
	sortHistorical(rows)

	s.log.Debug("historical report",
		"window_snapshots", len(window),
		"deltas", len(deltas),
		"cells", matrix.Cells(),
		"rows", len(rows))

	return rows, nil
}

// current reads live cumulative counters; no deltas, no matrix, no store.
func (s *Service) current(ctx context.Context, opts Options, roleFilter validation.RoleFilter) ([]iostats.Metric, error) {
	if s.live == nil {
		return nil, errors.NewMissingField("capture source")
	}

	snapshots, err := s.live.Current(ctx)
	if err != nil {
		if errors.IsCollaboratorError(err) {
			return nil, err
		}
		return nil, errors.CaptureFailure(err, "read current counters")
	}

	rows := AggregateCurrent(snapshots, s.aggregateOptions(opts))
	rows = filterRows(rows, opts.Database, roleFilter)
	sortCurrent(rows)

	s.log.Debug("current report", "files", len(snapshots), "rows", len(rows))
	return rows, nil
}

func (s *Service) aggregateOptions(opts Options) AggregateOptions {
	return AggregateOptions{
		PageSizeBytes: s.pageSize,
		Percentiles:   opts.Percentiles,
	}
}

// mergeIntoMatrix left-merges aggregated cells into the dense matrix. Cells
// without a delta default to zeros in every numeric field - present, never
// null.
func mergeIntoMatrix(matrix Matrix, aggregated []iostats.Metric) []iostats.Metric {
	index := make(map[cell]iostats.Metric, len(aggregated))
	for _, m := range aggregated {
		index[cell{atNano: m.IntervalEnd.UnixNano(), dim: m.Dimension()}] = m
	}

	rows := make([]iostats.Metric, 0, matrix.Cells())
	for _, at := range matrix.Times {
		for _, dim := range matrix.Keys {
			if m, ok := index[cell{atNano: at.UnixNano(), dim: dim}]; ok {
				rows = append(rows, m)
				continue
			}
			rows = append(rows, iostats.Metric{
				IntervalEnd: at,
				Database:    dim.Database,
				Role:        dim.Role,
				Scope:       iostats.ScopeInterval,
			})
		}
	}
	return rows
}

// filterRows applies the optional dimensional filters.
func filterRows(rows []iostats.Metric, database string, roleFilter validation.RoleFilter) []iostats.Metric {
	if database == "" && roleFilter == validation.RoleFilterAll {
		return rows
	}

	filtered := rows[:0]
	for _, m := range rows {
		if database != "" && m.Database != database {
			continue
		}
		if !roleFilter.Matches(m.Role) {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}

func sortHistorical(rows []iostats.Metric) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if !a.IntervalEnd.Equal(b.IntervalEnd) {
			return a.IntervalEnd.Before(b.IntervalEnd)
		}
		if a.Database != b.Database {
			return a.Database < b.Database
		}
		return a.Role < b.Role
	})
}

func sortCurrent(rows []iostats.Metric) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if a.Database != b.Database {
			return a.Database < b.Database
		}
		return a.Role < b.Role
	})
}
