package store

import (
	"context"
	"fmt"
)

// The snapshot schema is defined once and never migrated. Counters are
// BIGINT: SQL Server reports them as bigint and DuckDB stores them natively.
// file_role is the iostats.FileRole ordinal.
var schemaStatements = []struct {
	name string
	sql  string
}{
	{
		name: "file_stats_history",
		sql: `CREATE TABLE IF NOT EXISTS file_stats_history (
			captured_at    TIMESTAMP NOT NULL,
			database_id    BIGINT    NOT NULL,
			database_name  VARCHAR   NOT NULL,
			file_id        BIGINT    NOT NULL,
			drive          VARCHAR,
			file_role      SMALLINT  NOT NULL,
			physical_path  VARCHAR,
			file_handle    VARCHAR,
			reads          BIGINT NOT NULL,
			writes         BIGINT NOT NULL,
			read_stall_ms  BIGINT NOT NULL,
			write_stall_ms BIGINT NOT NULL,
			total_stall_ms BIGINT NOT NULL,
			bytes_read     BIGINT NOT NULL,
			bytes_written  BIGINT NOT NULL
		)`,
	},
	{
		name: "idx_history_time",
		sql: `CREATE INDEX IF NOT EXISTS idx_history_time
			ON file_stats_history (captured_at)`,
	},
	{
		name: "idx_history_file_time",
		sql: `CREATE INDEX IF NOT EXISTS idx_history_file_time
			ON file_stats_history (database_id, file_id, captured_at)`,
	},
}

// initSchema creates the snapshot table and its range-scan indexes.
func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt.sql); err != nil {
			return fmt.Errorf("create %s: %w", stmt.name, err)
		}
	}
	return nil
}
