package capture

// fileStatsQuery reads cumulative per-file I/O counters from
// sys.dm_io_virtual_file_stats joined to sys.master_files for the descriptive
// attributes. The counters are cumulative since engine start; the capture
// time is stamped client-side so every row of one tick shares it.
//
// Identifiers are fixed; nothing in this query is composed at runtime.
const fileStatsQuery = `
SELECT
    vfs.database_id                              AS database_id,
    DB_NAME(vfs.database_id)                     AS database_name,
    vfs.file_id                                  AS file_id,
    UPPER(LEFT(mf.physical_name, 1))             AS drive,
    mf.type_desc                                 AS type_desc,
    mf.physical_name                             AS physical_path,
    CONVERT(VARCHAR(64), vfs.file_handle, 1)     AS file_handle,
    vfs.num_of_reads                             AS reads,
    vfs.num_of_writes                            AS writes,
    vfs.io_stall_read_ms                         AS read_stall_ms,
    vfs.io_stall_write_ms                        AS write_stall_ms,
    vfs.io_stall                                 AS total_stall_ms,
    vfs.num_of_bytes_read                        AS bytes_read,
    vfs.num_of_bytes_written                     AS bytes_written
FROM sys.dm_io_virtual_file_stats(NULL, NULL) vfs
JOIN sys.master_files mf
    ON mf.database_id = vfs.database_id
   AND mf.file_id = vfs.file_id
ORDER BY vfs.database_id, vfs.file_id
`
