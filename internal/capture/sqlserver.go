package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/xtxerr/filestall/internal/errors"
	"github.com/xtxerr/filestall/internal/iostats"
	"github.com/xtxerr/filestall/internal/logging"
)

// fileStatsRow is the scan target for fileStatsQuery.
type fileStatsRow struct {
	DatabaseID   int64   `db:"database_id"`
	DatabaseName *string `db:"database_name"`
	FileID       int64   `db:"file_id"`
	Drive        *string `db:"drive"`
	TypeDesc     string  `db:"type_desc"`
	PhysicalPath *string `db:"physical_path"`
	FileHandle   *string `db:"file_handle"`
	Reads        int64   `db:"reads"`
	Writes       int64   `db:"writes"`
	ReadStallMs  int64   `db:"read_stall_ms"`
	WriteStallMs int64   `db:"write_stall_ms"`
	TotalStallMs int64   `db:"total_stall_ms"`
	BytesRead    int64   `db:"bytes_read"`
	BytesWritten int64   `db:"bytes_written"`
}

// SQLServerSource reads live counters from a SQL Server instance.
type SQLServerSource struct {
	db           *sqlx.DB
	queryTimeout time.Duration
	log          *slog.Logger
}

// SQLServerConfig configures the SQL Server capture client.
type SQLServerConfig struct {
	// DSN is the go-mssqldb connection string.
	DSN string

	// QueryTimeout bounds a single capture query.
	QueryTimeout time.Duration
}

// NewSQLServerSource connects to the engine and verifies the connection.
func NewSQLServerSource(cfg SQLServerConfig) (*SQLServerSource, error) {
	db, err := sqlx.Connect("mssql", cfg.DSN)
	if err != nil {
		return nil, errors.CaptureFailure(err, "connect")
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SQLServerSource{
		db:           db,
		queryTimeout: timeout,
		log:          logging.Component("capture"),
	}, nil
}

// Current reads the engine's cumulative per-file I/O counters. All returned
// snapshots share one client-side capture timestamp.
func (s *SQLServerSource) Current(ctx context.Context) ([]iostats.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var rows []fileStatsRow
	if err := s.db.SelectContext(ctx, &rows, fileStatsQuery); err != nil {
		return nil, errors.CaptureFailure(err, "query file stats")
	}

	capturedAt := time.Now().UTC()
	snapshots := make([]iostats.Snapshot, 0, len(rows))

	for _, row := range rows {
		snap := iostats.Snapshot{
			CapturedAt:   capturedAt,
			DatabaseID:   row.DatabaseID,
			FileID:       row.FileID,
			Role:         iostats.RoleFromTypeDesc(row.TypeDesc),
			Reads:        row.Reads,
			Writes:       row.Writes,
			ReadStallMs:  row.ReadStallMs,
			WriteStallMs: row.WriteStallMs,
			TotalStallMs: row.TotalStallMs,
			BytesRead:    row.BytesRead,
			BytesWritten: row.BytesWritten,
		}
		if row.DatabaseName != nil {
			snap.DatabaseName = *row.DatabaseName
		}
		if row.Drive != nil {
			snap.Drive = *row.Drive
		}
		if row.PhysicalPath != nil {
			snap.PhysicalPath = *row.PhysicalPath
		}
		if row.FileHandle != nil {
			snap.FileHandle = *row.FileHandle
		}
		snapshots = append(snapshots, snap)
	}

	s.log.Debug("captured file stats", "files", len(snapshots))
	return snapshots, nil
}

// Ping tests the connection to the engine.
func (s *SQLServerSource) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.CaptureFailure(err, "ping")
	}
	return nil
}

// Close closes the database connection.
func (s *SQLServerSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
