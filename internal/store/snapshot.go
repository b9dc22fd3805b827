package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/xtxerr/filestall/internal/iostats"
)

// maxSnapshotsPerInsert bounds parameters per INSERT statement.
// 15 columns * 100 rows = 1500 parameters per statement.
const maxSnapshotsPerInsert = 100

const snapshotColumns = `captured_at, database_id, database_name, file_id, drive,
	file_role, physical_path, file_handle, reads, writes,
	read_stall_ms, write_stall_ms, total_stall_ms, bytes_read, bytes_written`

// Append inserts a batch of snapshots using multi-row INSERT, chunked inside
// a transaction for large batches. Snapshots are immutable once stored.
func (s *Store) Append(ctx context.Context, snapshots []iostats.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	if len(snapshots) <= maxSnapshotsPerInsert {
		query, args := buildMultiRowInsert(snapshots)
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	}

	return s.TransactionContext(ctx, func(tx *sql.Tx) error {
		for i := 0; i < len(snapshots); i += maxSnapshotsPerInsert {
			end := i + maxSnapshotsPerInsert
			if end > len(snapshots) {
				end = len(snapshots)
			}
			query, args := buildMultiRowInsert(snapshots[i:end])
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

// buildMultiRowInsert builds the multi-row INSERT statement.
func buildMultiRowInsert(snapshots []iostats.Snapshot) (string, []interface{}) {
	const columnsPerRow = 15

	args := make([]interface{}, 0, len(snapshots)*columnsPerRow)

	var query strings.Builder
	query.Grow(300 + len(snapshots)*40)
	query.WriteString(`INSERT INTO file_stats_history (` + snapshotColumns + `) VALUES `)

	for i, snap := range snapshots {
		if i > 0 {
			query.WriteByte(',')
		}
		query.WriteString("(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)")

		args = append(args,
			snap.CapturedAt,
			snap.DatabaseID,
			snap.DatabaseName,
			snap.FileID,
			snap.Drive,
			int16(snap.Role),
			snap.PhysicalPath,
			snap.FileHandle,
			snap.Reads,
			snap.Writes,
			snap.ReadStallMs,
			snap.WriteStallMs,
			snap.TotalStallMs,
			snap.BytesRead,
			snap.BytesWritten,
		)
	}

	return query.String(), args
}

// Window returns snapshots captured within [from, to], ordered by
// (database_id, file_id, captured_at) so callers can run a single pairwise
// scan per file.
func (s *Store) Window(ctx context.Context, from, to time.Time) ([]iostats.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM file_stats_history
		WHERE captured_at >= ? AND captured_at <= ?
		ORDER BY database_id, file_id, captured_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// Predecessors returns, for each (database_id, file_id), the newest snapshot
// captured strictly before the given time. This lets the first in-window
// sample still yield a valid delta against state just before the window.
// Implemented with a window function, not a per-row correlated lookup.
func (s *Store) Predecessors(ctx context.Context, before time.Time) ([]iostats.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM file_stats_history
		WHERE captured_at < ?
		QUALIFY row_number() OVER (
			PARTITION BY database_id, file_id
			ORDER BY captured_at DESC
		) = 1
		ORDER BY database_id, file_id
	`, before)
	if err != nil {
		return nil, fmt.Errorf("query predecessors: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// scanSnapshots scans rows into a Snapshot slice.
func scanSnapshots(rows *sql.Rows) ([]iostats.Snapshot, error) {
	snapshots := make([]iostats.Snapshot, 0, 256)

	for rows.Next() {
		var snap iostats.Snapshot
		var drive, path, handle sql.NullString
		var role int16

		if err := rows.Scan(
			&snap.CapturedAt, &snap.DatabaseID, &snap.DatabaseName, &snap.FileID,
			&drive, &role, &path, &handle,
			&snap.Reads, &snap.Writes,
			&snap.ReadStallMs, &snap.WriteStallMs, &snap.TotalStallMs,
			&snap.BytesRead, &snap.BytesWritten,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		snap.Role = iostats.FileRole(role)
		if drive.Valid {
			snap.Drive = drive.String
		}
		if path.Valid {
			snap.PhysicalPath = path.String
		}
		if handle.Valid {
			snap.FileHandle = handle.String
		}

		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// Count returns the number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_stats_history`).Scan(&count)
	return count, err
}

// TimeRange returns the capture time range of stored snapshots.
func (s *Store) TimeRange(ctx context.Context) (oldest, newest time.Time, err error) {
	var oldestNull, newestNull sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT MIN(captured_at), MAX(captured_at) FROM file_stats_history
	`).Scan(&oldestNull, &newestNull)
	if err == sql.ErrNoRows {
		return time.Time{}, time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if oldestNull.Valid {
		oldest = oldestNull.Time
	}
	if newestNull.Valid {
		newest = newestNull.Time
	}
	return oldest, newest, nil
}

// Databases returns the distinct database names present in the store,
// sorted. Used for filter completion.
func (s *Store) Databases(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT database_name FROM file_stats_history ORDER BY database_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteBefore removes snapshots captured before the cutoff and returns the
// number of rows deleted. Archive first if the rows should be kept.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM file_stats_history WHERE captured_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
