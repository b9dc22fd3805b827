// Package iostats defines the file-I/O statistics data model.
//
// A Snapshot is a point-in-time capture of the engine's cumulative per-file
// I/O counters. A Delta is the difference between two chronologically
// adjacent snapshots of the same file, representing interval activity.
// Metrics are aggregated per (interval end, database, file role) cell.
package iostats

import "time"

// FileRole classifies a database file for reporting purposes.
type FileRole int

const (
	// RoleData is a data file (SQL Server type_desc ROWS).
	RoleData FileRole = iota
	// RoleLog is a transaction log file.
	RoleLog
	// RoleOther covers filestream, full-text and other file types.
	RoleOther
)

// String returns a human-readable representation of the FileRole.
func (r FileRole) String() string {
	switch r {
	case RoleData:
		return "data"
	case RoleLog:
		return "log"
	case RoleOther:
		return "other"
	default:
		return "unknown"
	}
}

// RoleFromTypeDesc maps an engine file type description to a FileRole.
func RoleFromTypeDesc(typeDesc string) FileRole {
	switch typeDesc {
	case "ROWS":
		return RoleData
	case "LOG":
		return RoleLog
	default:
		return RoleOther
	}
}

// FileKey identifies a single database file across snapshots.
type FileKey struct {
	DatabaseID int64
	FileID     int64
}

// Snapshot is one capture of cumulative I/O counters for one file.
//
// All counters are cumulative since engine start and non-decreasing for a
// fixed (DatabaseID, FileID) between consecutive captures, unless the engine
// restarted or the file was detached and reattached. Such a reset is a
// data-quality event, not an error.
type Snapshot struct {
	CapturedAt   time.Time
	DatabaseID   int64
	DatabaseName string
	FileID       int64
	Drive        string
	Role         FileRole
	PhysicalPath string

	// FileHandle is an opaque engine handle used for identity continuity
	// across file renames.
	FileHandle string

	Reads        int64
	Writes       int64
	ReadStallMs  int64
	WriteStallMs int64
	TotalStallMs int64
	BytesRead    int64
	BytesWritten int64
}

// Key returns the file identity of this snapshot.
func (s *Snapshot) Key() FileKey {
	return FileKey{DatabaseID: s.DatabaseID, FileID: s.FileID}
}

// Dimension returns the reporting dimension of this snapshot.
func (s *Snapshot) Dimension() DimensionKey {
	return DimensionKey{Database: s.DatabaseName, Role: s.Role}
}

// Delta is the counter difference between two chronologically adjacent
// snapshots of the same file. Every field is >= 0; a pair that would produce
// any negative field is discarded whole (counter reset).
type Delta struct {
	// IntervalEnd is the later snapshot's capture time.
	IntervalEnd  time.Time
	DatabaseName string
	Role         FileRole

	Reads        int64
	Writes       int64
	ReadStallMs  int64
	WriteStallMs int64
	TotalStallMs int64
	BytesRead    int64
	BytesWritten int64
}

// Dimension returns the reporting dimension of this delta.
func (d *Delta) Dimension() DimensionKey {
	return DimensionKey{Database: d.DatabaseName, Role: d.Role}
}

// DimensionKey identifies a reporting column group.
type DimensionKey struct {
	Database string
	Role     FileRole
}

// Scope distinguishes interval metrics (snapshot deltas) from cumulative
// metrics (counters since engine start). The two are not comparable numbers,
// so every Metric carries its scope.
type Scope int

const (
	// ScopeInterval means counters cover one sampling interval.
	ScopeInterval Scope = iota
	// ScopeCumulative means counters cover the time since engine start.
	ScopeCumulative
)

// String returns a human-readable representation of the Scope.
func (s Scope) String() string {
	if s == ScopeCumulative {
		return "cumulative"
	}
	return "interval"
}

// DefaultPageSizeBytes is the assumed engine page size for byte-to-page
// conversions. SQL Server uses fixed 8 KiB pages; the value is configurable
// for engines with a different page size.
const DefaultPageSizeBytes = 8192

// Metric is one aggregated report cell.
//
// A cell that is present in the dense matrix but had no delta carries zeros
// in every numeric field, never nulls: "no activity" is distinct from
// "not sampled" (which is simply absent).
type Metric struct {
	// IntervalEnd is the cell's timestamp. Zero for cumulative scope.
	IntervalEnd time.Time
	Database    string
	Role        FileRole
	Scope       Scope

	AvgReadLatencyMs  float64
	AvgWriteLatencyMs float64
	AvgTotalLatencyMs float64

	TotalReads  int64
	TotalWrites int64

	TotalReadKB  int64
	TotalWriteKB int64

	TotalReadPages  int64
	TotalWritePages int64

	// FileCount is the number of underlying files contributing to the cell.
	FileCount int64

	// P95ReadLatencyMs / P95WriteLatencyMs are per-file latency percentiles
	// across contributing files. Nil unless percentile tracking is enabled
	// and at least one file contributed operations.
	P95ReadLatencyMs  *float64
	P95WriteLatencyMs *float64
}

// Dimension returns the reporting dimension of this metric.
func (m *Metric) Dimension() DimensionKey {
	return DimensionKey{Database: m.Database, Role: m.Role}
}

// CaptureReceipt summarizes one collection tick.
type CaptureReceipt struct {
	CapturedAt time.Time
	Files      int
	Databases  int
}
