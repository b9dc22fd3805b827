// Package bench generates synthetic I/O load against the monitored server.
//
// The harness creates its own scratch table, hammers it with batched INSERTs
// and range SELECTs from concurrent workers for a fixed duration, and drops
// the table afterwards. It exists so that collected snapshots show real stall
// movement on an otherwise idle test instance; it never touches monitored
// data.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/filestall/config"
	"github.com/xtxerr/filestall/internal/errors"
	"github.com/xtxerr/filestall/internal/logging"
	"github.com/xtxerr/filestall/internal/validation"
)

// Options configures one bench run.
type Options struct {
	// Workers is the number of concurrent load workers.
	Workers int

	// Duration is how long the load runs.
	Duration time.Duration

	// BatchRows is the row count per INSERT batch.
	BatchRows int

	// Table is the scratch table name. Created on start, dropped on finish.
	Table string
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = config.DefaultBenchWorkers
	}
	if o.Duration <= 0 {
		o.Duration = config.DefaultBenchDuration
	}
	if o.BatchRows <= 0 {
		o.BatchRows = config.DefaultBenchBatchRows
	}
	if o.Table == "" {
		o.Table = config.DefaultBenchTable
	}
}

// Result summarizes one bench run.
type Result struct {
	Workers      int
	Duration     time.Duration
	RowsInserted int64
	Batches      int64
	Selects      int64
}

// Runner drives synthetic load against one server.
type Runner struct {
	db  *sqlx.DB
	log *slog.Logger
}

// New creates a Runner on an open connection.
func New(db *sqlx.DB) *Runner {
	return &Runner{db: db, log: logging.Component("bench")}
}

// Run executes one bench run and returns its totals. The scratch table is
// dropped even when the run is cancelled mid-flight.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	opts.applyDefaults()
	if err := validation.ValidateIdentifier(opts.Table); err != nil {
		return nil, err
	}

	if err := r.createScratch(ctx, opts.Table); err != nil {
		return nil, errors.Wrap(err, "create scratch table")
	}
	defer r.dropScratch(opts.Table)

	r.log.Info("bench starting",
		"workers", opts.Workers,
		"duration", opts.Duration,
		"batch_rows", opts.BatchRows,
		"table", opts.Table)

	runCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	counters := make([]workerCounters, opts.Workers)
	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < opts.Workers; i++ {
		w := &counters[i]
		seed := int64(i)
		g.Go(func() error {
			return r.worker(gctx, opts, w, seed)
		})
	}

	if err := g.Wait(); err != nil && !isDeadline(err) {
		return nil, errors.Wrap(err, "bench worker")
	}

	result := &Result{Workers: opts.Workers, Duration: opts.Duration}
	for i := range counters {
		result.RowsInserted += counters[i].rows
		result.Batches += counters[i].batches
		result.Selects += counters[i].selects
	}

	r.log.Info("bench finished",
		"rows_inserted", result.RowsInserted,
		"batches", result.Batches,
		"selects", result.Selects)

	return result, nil
}

type workerCounters struct {
	rows    int64
	batches int64
	selects int64
}

// worker alternates INSERT batches with range SELECTs until the run context
// expires. Counters are per-worker; no shared state during the run.
func (r *Runner) worker(ctx context.Context, opts Options, w *workerCounters, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	insert := buildInsert(opts.Table, opts.BatchRows)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		args := make([]interface{}, 0, opts.BatchRows*2)
		for i := 0; i < opts.BatchRows; i++ {
			args = append(args, rng.Int63(), payload(rng))
		}
		if _, err := r.db.ExecContext(ctx, insert, args...); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		w.rows += int64(opts.BatchRows)
		w.batches++

		// Every few batches, a range scan to generate read stalls as well.
		if w.batches%4 == 0 {
			lo := rng.Int63()
			query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE k BETWEEN @p1 AND @p2", opts.Table)
			var n int64
			if err := r.db.GetContext(ctx, &n, query, lo, lo+1<<40); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			w.selects++
		}
	}
}

func (r *Runner) createScratch(ctx context.Context, table string) error {
	ddl := fmt.Sprintf(
		"IF OBJECT_ID('%s', 'U') IS NOT NULL DROP TABLE %s; "+
			"CREATE TABLE %s (id BIGINT IDENTITY PRIMARY KEY, k BIGINT NOT NULL, payload VARCHAR(400) NOT NULL); "+
			"CREATE INDEX ix_%s_k ON %s (k)",
		table, table, table, table, table)
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// dropScratch uses a fresh context so cleanup survives run cancellation.
func (r *Runner) dropScratch(table string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		r.log.Warn("drop scratch table failed", "table", table, "error", err)
	}
}

// buildInsert builds a multi-row INSERT with @pN placeholders, two per row.
func buildInsert(table string, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (k, payload) VALUES ", table)
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "(@p%d, @p%d)", i*2+1, i*2+2)
	}
	return b.String()
}

func payload(rng *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, 200)
	for i := range buf {
		buf[i] = letters[rng.Intn(len(letters))]
	}
	return string(buf)
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
