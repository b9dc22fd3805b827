package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/filestall/internal/iostats"
)

// ArchiveOptions configures snapshot archival.
type ArchiveOptions struct {
	// Dir is the directory receiving Parquet files.
	Dir string

	// Compression algorithm: zstd, snappy, lz4, gzip or none.
	Compression string
}

// DefaultArchiveOptions returns default archive options.
func DefaultArchiveOptions(dir string) ArchiveOptions {
	return ArchiveOptions{
		Dir:         dir,
		Compression: "zstd",
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(name string) compress.Codec {
	switch name {
	case "snappy":
		return &parquet.Snappy
	case "zstd":
		return &parquet.Zstd
	case "lz4":
		return &parquet.Lz4Raw
	case "gzip":
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// SnapshotRow represents a snapshot in Parquet format.
type SnapshotRow struct {
	CapturedAtMs int64  `parquet:"captured_at_ms"`
	DatabaseID   int64  `parquet:"database_id"`
	DatabaseName string `parquet:"database_name,zstd"`
	FileID       int64  `parquet:"file_id"`
	Drive        string `parquet:"drive,optional,zstd"`
	FileRole     int32  `parquet:"file_role"`
	PhysicalPath string `parquet:"physical_path,optional,zstd"`
	FileHandle   string `parquet:"file_handle,optional,zstd"`
	Reads        int64  `parquet:"reads"`
	Writes       int64  `parquet:"writes"`
	ReadStallMs  int64  `parquet:"read_stall_ms"`
	WriteStallMs int64  `parquet:"write_stall_ms"`
	TotalStallMs int64  `parquet:"total_stall_ms"`
	BytesRead    int64  `parquet:"bytes_read"`
	BytesWritten int64  `parquet:"bytes_written"`
}

// SnapshotToRow converts a Snapshot to a SnapshotRow.
func SnapshotToRow(s *iostats.Snapshot) SnapshotRow {
	return SnapshotRow{
		CapturedAtMs: s.CapturedAt.UnixMilli(),
		DatabaseID:   s.DatabaseID,
		DatabaseName: s.DatabaseName,
		FileID:       s.FileID,
		Drive:        s.Drive,
		FileRole:     int32(s.Role),
		PhysicalPath: s.PhysicalPath,
		FileHandle:   s.FileHandle,
		Reads:        s.Reads,
		Writes:       s.Writes,
		ReadStallMs:  s.ReadStallMs,
		WriteStallMs: s.WriteStallMs,
		TotalStallMs: s.TotalStallMs,
		BytesRead:    s.BytesRead,
		BytesWritten: s.BytesWritten,
	}
}

// RowToSnapshot converts a SnapshotRow to a Snapshot.
func RowToSnapshot(r *SnapshotRow) iostats.Snapshot {
	return iostats.Snapshot{
		CapturedAt:   time.UnixMilli(r.CapturedAtMs).UTC(),
		DatabaseID:   r.DatabaseID,
		DatabaseName: r.DatabaseName,
		FileID:       r.FileID,
		Drive:        r.Drive,
		Role:         iostats.FileRole(r.FileRole),
		PhysicalPath: r.PhysicalPath,
		FileHandle:   r.FileHandle,
		Reads:        r.Reads,
		Writes:       r.Writes,
		ReadStallMs:  r.ReadStallMs,
		WriteStallMs: r.WriteStallMs,
		TotalStallMs: r.TotalStallMs,
		BytesRead:    r.BytesRead,
		BytesWritten: r.BytesWritten,
	}
}

// ArchiveResult summarizes one archival run.
type ArchiveResult struct {
	Path     string
	Archived int64
	Deleted  int64
}

// ArchiveBefore exports all snapshots captured before the cutoff to a Parquet
// file and deletes them from the live table. Returns a zero-row result when
// nothing is old enough. The export happens before the delete, so a failure
// between the two leaves rows both archived and live - duplicates on that
// path are acceptable, data loss is not.
func (s *Store) ArchiveBefore(ctx context.Context, cutoff time.Time, opts ArchiveOptions) (*ArchiveResult, error) {
	snapshots, err := s.snapshotsBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return &ArchiveResult{}, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	first := snapshots[0].CapturedAt
	last := snapshots[len(snapshots)-1].CapturedAt
	path := filepath.Join(opts.Dir, fmt.Sprintf("file_stats_%d_%d.parquet",
		first.UnixMilli(), last.UnixMilli()))

	if err := writeParquet(path, snapshots, opts); err != nil {
		return nil, err
	}

	deleted, err := s.DeleteBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete archived snapshots: %w", err)
	}

	return &ArchiveResult{
		Path:     path,
		Archived: int64(len(snapshots)),
		Deleted:  deleted,
	}, nil
}

// snapshotsBefore returns all snapshots captured before the cutoff, ordered
// by capture time.
func (s *Store) snapshotsBefore(ctx context.Context, cutoff time.Time) ([]iostats.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM file_stats_history
		WHERE captured_at < ?
		ORDER BY captured_at, database_id, file_id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query archive candidates: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func writeParquet(path string, snapshots []iostats.Snapshot, opts ArchiveOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}

	writer := parquet.NewGenericWriter[SnapshotRow](f,
		parquet.Compression(getCompression(opts.Compression)))

	rows := make([]SnapshotRow, len(snapshots))
	for i := range snapshots {
		rows[i] = SnapshotToRow(&snapshots[i])
	}

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("close writer: %w", err)
	}

	return f.Close()
}

// ReadArchive loads snapshots back from an archived Parquet file.
func ReadArchive(path string) ([]iostats.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[SnapshotRow](f)
	defer reader.Close()

	rows := make([]SnapshotRow, 0, reader.NumRows())
	buf := make([]SnapshotRow, 128)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if err != nil {
			break
		}
	}

	snapshots := make([]iostats.Snapshot, len(rows))
	for i := range rows {
		snapshots[i] = RowToSnapshot(&rows[i])
	}
	return snapshots, nil
}
