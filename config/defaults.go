// Package config provides configuration defaults and utilities
// for the filestall application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or environment variables.
package config

import "time"

// =============================================================================
// Capture Defaults
// =============================================================================

const (
	// DefaultQueryTimeout bounds a single capture query against the engine.
	// Override via config: sqlserver.query_timeout_sec
	DefaultQueryTimeout = 30 * time.Second

	// DefaultCollectInterval is the suggested spacing between collection
	// ticks when an external scheduler drives `filestall collect`. The
	// report core itself never schedules anything.
	// Override via config: collect.interval_sec
	DefaultCollectInterval = 5 * time.Minute
)

// =============================================================================
// Store Defaults
// =============================================================================

const (
	// DefaultStorePath is the DuckDB file holding snapshot history.
	// Override via config: store.path
	DefaultStorePath = "filestall.db"

	// DefaultRetention is how long snapshots stay in the live table before
	// archival. Deltas only need the window plus one predecessor per file,
	// so retention bounds report memory as well.
	// Override via config: store.retention_days
	DefaultRetention = 30 * 24 * time.Hour

	// DefaultArchiveDir is where aged snapshots are exported as Parquet.
	// Override via config: store.archive.dir
	DefaultArchiveDir = "archive"

	// DefaultArchiveCompression is the Parquet compression codec.
	// Override via config: store.archive.compression
	DefaultArchiveCompression = "zstd"
)

// =============================================================================
// Report Defaults
// =============================================================================

const (
	// DefaultLookback is the historical report window when none is given.
	// Override via config: report.lookback_hours
	DefaultLookback = 24 * time.Hour

	// DefaultPageSizeBytes converts byte counters to page counts. SQL Server
	// uses fixed 8 KiB pages; engines with a different page size override it.
	// Override via config: report.page_size_bytes
	DefaultPageSizeBytes = 8192
)

// =============================================================================
// Bench Defaults
// =============================================================================

const (
	// DefaultBenchWorkers is the number of concurrent load workers.
	// Override via config: bench.workers
	DefaultBenchWorkers = 4

	// DefaultBenchDuration is how long the load generator runs.
	// Override via config: bench.duration_sec
	DefaultBenchDuration = 2 * time.Minute

	// DefaultBenchBatchRows is the number of rows per INSERT batch.
	// Override via config: bench.batch_rows
	DefaultBenchBatchRows = 500

	// DefaultBenchTable is the scratch table the load generator creates
	// and drops. It never touches monitored data.
	// Override via config: bench.table
	DefaultBenchTable = "filestall_bench"
)
