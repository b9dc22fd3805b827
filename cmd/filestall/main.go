// filestall monitors SQL Server file-level I/O stall latency.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xtxerr/filestall/internal/bench"
	"github.com/xtxerr/filestall/internal/capture"
	"github.com/xtxerr/filestall/internal/collector"
	"github.com/xtxerr/filestall/internal/loader"
	"github.com/xtxerr/filestall/internal/logging"
	"github.com/xtxerr/filestall/internal/render"
	"github.com/xtxerr/filestall/internal/report"
	"github.com/xtxerr/filestall/internal/shell"
	"github.com/xtxerr/filestall/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, `filestall %s - SQL Server file I/O stall monitor

usage: filestall <command> [flags]

commands:
  collect   capture current file I/O counters into the snapshot store
  report    reconstruct per-interval latency metrics from stored snapshots
  bench     generate synthetic I/O load against the monitored server
  archive   export aged snapshots to Parquet and prune the live table
  status    show snapshot store contents
  shell     interactive report prompt
  version   print the version

run "filestall <command> -h" for command flags
`, Version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "collect":
		cmdCollect(args)
	case "report":
		cmdReport(args)
	case "bench":
		cmdBench(args)
	case "archive":
		cmdArchive(args)
	case "status":
		cmdStatus(args)
	case "shell":
		cmdShell(args)
	case "version":
		fmt.Println(Version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
}

// loadConfig loads the config file, falling back to defaults when the default
// path does not exist.
func loadConfig(path string) *loader.Config {
	cfg, err := loader.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == "config.yaml" {
			return loader.DefaultConfig()
		}
		log.Fatalf("Load config: %v", err)
	}
	return cfg
}

func initLogging(cfg *loader.Config) {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logging.Init(level, cfg.Log.JSON)
}

func openStore(cfg *loader.Config) *store.Store {
	sc := store.DefaultConfig()
	sc.DSN = cfg.Store.Path
	sc.QueryTimeout = cfg.SQLServer.QueryTimeout()
	st, err := store.New(sc)
	if err != nil {
		log.Fatalf("Open snapshot store: %v", err)
	}
	return st
}

func openCapture(cfg *loader.Config) *capture.SQLServerSource {
	if cfg.SQLServer.DSN == "" {
		log.Fatal("sqlserver.dsn required (config file or FILESTALL env expansion)")
	}
	src, err := capture.NewSQLServerSource(capture.SQLServerConfig{
		DSN:          cfg.SQLServer.DSN,
		QueryTimeout: cfg.SQLServer.QueryTimeout(),
	})
	if err != nil {
		log.Fatalf("Connect to SQL Server: %v", err)
	}
	return src
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func cmdCollect(args []string) {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "config file path")
	once := fs.Bool("once", false, "run one collection tick and exit")
	interval := fs.Duration("interval", 0, "collection interval (overrides config)")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	initLogging(cfg)

	src := openCapture(cfg)
	defer src.Close()
	st := openStore(cfg)
	defer st.Close()

	c := collector.New(src, st, collector.Options{Retention: cfg.Store.Retention()})

	ctx, cancel := signalContext()
	defer cancel()

	if *once {
		receipt, err := c.Collect(ctx)
		if err != nil {
			log.Fatalf("Collect: %v", err)
		}
		render.Receipt(os.Stdout, receipt)
		return
	}

	every := cfg.Collect.Interval()
	if *interval > 0 {
		every = *interval
	}
	if err := c.Run(ctx, every); err != nil && ctx.Err() == nil {
		log.Fatalf("Collect loop: %v", err)
	}
}

func cmdReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "config file path")
	mode := fs.String("mode", "historical", "report mode: historical or current")
	lookback := fs.Duration("lookback", 0, "historical window (default from config)")
	database := fs.String("db", "", "filter to one database name")
	role := fs.String("role", "all", "filter to one file role: data, log or all")
	percentiles := fs.Bool("percentiles", false, "add P95 latency columns")
	table := fs.Bool("table", false, "force table output even when piped")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	initLogging(cfg)

	m, err := report.ParseMode(*mode)
	if err != nil {
		log.Fatalf("Report: %v", err)
	}

	rcfg := report.Config{PageSizeBytes: cfg.Report.PageSizeBytes}
	if m == report.ModeCurrent {
		src := openCapture(cfg)
		defer src.Close()
		rcfg.Live = src
	} else {
		st := openStore(cfg)
		defer st.Close()
		rcfg.History = st
	}

	window := *lookback
	if window == 0 {
		window = cfg.Report.Lookback()
	}

	ctx, cancel := signalContext()
	defer cancel()

	rows, err := report.New(rcfg).Report(ctx, report.Options{
		Mode:        m,
		Lookback:    window,
		Database:    *database,
		Role:        *role,
		Percentiles: *percentiles || cfg.Report.Percentiles,
	})
	if err != nil {
		log.Fatalf("Report: %v", err)
	}

	render.Metrics(os.Stdout, rows, render.Options{
		Table:       *table,
		Percentiles: *percentiles || cfg.Report.Percentiles,
	})
}

func cmdBench(args []string) {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "config file path")
	workers := fs.Int("workers", 0, "concurrent load workers (overrides config)")
	duration := fs.Duration("duration", 0, "load duration (overrides config)")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	initLogging(cfg)

	if cfg.SQLServer.DSN == "" {
		log.Fatal("sqlserver.dsn required")
	}
	db, err := sqlx.Connect("mssql", cfg.SQLServer.DSN)
	if err != nil {
		log.Fatalf("Connect to SQL Server: %v", err)
	}
	defer db.Close()

	opts := bench.Options{
		Workers:   cfg.Bench.Workers,
		Duration:  cfg.Bench.Duration(),
		BatchRows: cfg.Bench.BatchRows,
		Table:     cfg.Bench.Table,
	}
	if *workers > 0 {
		opts.Workers = *workers
	}
	if *duration > 0 {
		opts.Duration = *duration
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := bench.New(db).Run(ctx, opts)
	if err != nil {
		log.Fatalf("Bench: %v", err)
	}
	fmt.Printf("inserted %d rows in %d batches, %d range selects, %d workers over %s\n",
		result.RowsInserted, result.Batches, result.Selects, result.Workers, result.Duration)
}

func cmdArchive(args []string) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "config file path")
	olderThan := fs.Duration("older-than", 0, "archive snapshots older than this (default: store retention)")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	initLogging(cfg)

	st := openStore(cfg)
	defer st.Close()

	age := *olderThan
	if age == 0 {
		age = cfg.Store.Retention()
	}
	cutoff := time.Now().UTC().Add(-age)

	ctx, cancel := signalContext()
	defer cancel()

	result, err := st.ArchiveBefore(ctx, cutoff, store.ArchiveOptions{
		Dir:         cfg.Store.Archive.Dir,
		Compression: cfg.Store.Archive.Compression,
	})
	if err != nil {
		log.Fatalf("Archive: %v", err)
	}
	if result.Archived == 0 {
		fmt.Println("nothing old enough to archive")
		return
	}
	fmt.Printf("archived %d snapshots to %s\n", result.Archived, result.Path)
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "config file path")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	initLogging(cfg)

	st := openStore(cfg)
	defer st.Close()

	ctx, cancel := signalContext()
	defer cancel()

	count, err := st.Count(ctx)
	if err != nil {
		log.Fatalf("Status: %v", err)
	}
	fmt.Printf("store: %s\n", cfg.Store.Path)
	fmt.Printf("snapshots: %d\n", count)
	if count == 0 {
		return
	}

	oldest, newest, err := st.TimeRange(ctx)
	if err != nil {
		log.Fatalf("Status: %v", err)
	}
	fmt.Printf("oldest: %s\n", oldest.UTC().Format(time.RFC3339))
	fmt.Printf("newest: %s\n", newest.UTC().Format(time.RFC3339))

	databases, err := st.Databases(ctx)
	if err != nil {
		log.Fatalf("Status: %v", err)
	}
	fmt.Printf("databases: %d\n", len(databases))
	for _, name := range databases {
		fmt.Printf("  %s\n", name)
	}
}

func cmdShell(args []string) {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "config file path")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	initLogging(cfg)

	st := openStore(cfg)
	defer st.Close()

	rcfg := report.Config{History: st, PageSizeBytes: cfg.Report.PageSizeBytes}
	if cfg.SQLServer.DSN != "" {
		src, err := capture.NewSQLServerSource(capture.SQLServerConfig{
			DSN:          cfg.SQLServer.DSN,
			QueryTimeout: cfg.SQLServer.QueryTimeout(),
		})
		if err != nil {
			log.Printf("SQL Server unreachable, current mode disabled: %v", err)
		} else {
			defer src.Close()
			rcfg.Live = src
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	databases, err := st.Databases(ctx)
	cancel()
	if err != nil {
		log.Printf("Database completion unavailable: %v", err)
	}

	shell.New(report.New(rcfg), os.Stdout, databases).Run()
}
