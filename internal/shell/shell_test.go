package shell

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/filestall/internal/iostats"
	"github.com/xtxerr/filestall/internal/report"
)

type fakeReporter struct {
	lastOpts report.Options
	rows     []iostats.Metric
	err      error
	calls    int
}

func (f *fakeReporter) Report(ctx context.Context, opts report.Options) ([]iostats.Metric, error) {
	f.calls++
	f.lastOpts = opts
	return f.rows, f.err
}

func TestExecuteReportUsesSessionFilters(t *testing.T) {
	svc := &fakeReporter{rows: []iostats.Metric{{Database: "SalesDB"}}}
	var out bytes.Buffer
	sh := New(svc, &out, nil)
	ctx := context.Background()

	for _, line := range []string{
		"lookback 48h",
		"db SalesDB",
		"role log",
		"percentiles on",
		"report",
	} {
		if err := sh.Execute(ctx, line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}

	opts := svc.lastOpts
	if opts.Lookback != 48*time.Hour {
		t.Errorf("lookback %s, want 48h", opts.Lookback)
	}
	if opts.Database != "SalesDB" || opts.Role != "log" || !opts.Percentiles {
		t.Errorf("filters not carried: %+v", opts)
	}
	if opts.Mode != report.ModeHistorical {
		t.Errorf("mode %s, want historical default", opts.Mode)
	}
	if !strings.Contains(out.String(), "SalesDB") {
		t.Error("report output not rendered")
	}
}

func TestExecuteReportModeOverride(t *testing.T) {
	svc := &fakeReporter{}
	sh := New(svc, &bytes.Buffer{}, nil)
	ctx := context.Background()

	if err := sh.Execute(ctx, "report current"); err != nil {
		t.Fatal(err)
	}
	if svc.lastOpts.Mode != report.ModeCurrent {
		t.Errorf("mode %s, want current", svc.lastOpts.Mode)
	}

	// One-shot override does not change the session default.
	if err := sh.Execute(ctx, "report"); err != nil {
		t.Fatal(err)
	}
	if svc.lastOpts.Mode != report.ModeHistorical {
		t.Errorf("session mode changed by one-shot override")
	}
}

func TestExecuteBareDBClearsFilter(t *testing.T) {
	svc := &fakeReporter{}
	sh := New(svc, &bytes.Buffer{}, nil)
	ctx := context.Background()

	sh.Execute(ctx, "db SalesDB")
	sh.Execute(ctx, "db")
	sh.Execute(ctx, "report")

	if svc.lastOpts.Database != "" {
		t.Errorf("database filter not cleared: %q", svc.lastOpts.Database)
	}
}

func TestExecuteErrors(t *testing.T) {
	sh := New(&fakeReporter{}, &bytes.Buffer{}, nil)
	ctx := context.Background()

	for _, line := range []string{
		"frobnicate",
		"mode sideways",
		"lookback soon",
		"percentiles maybe",
	} {
		if err := sh.Execute(ctx, line); err == nil {
			t.Errorf("%q should fail", line)
		}
	}

	// Empty line is a no-op.
	if err := sh.Execute(ctx, "   "); err != nil {
		t.Errorf("blank line: %v", err)
	}
}

func TestExecuteExit(t *testing.T) {
	sh := New(&fakeReporter{}, &bytes.Buffer{}, nil)
	if err := sh.Execute(context.Background(), "exit"); err != nil {
		t.Fatal(err)
	}
	if !sh.quit {
		t.Error("exit must set the quit flag")
	}
}

func TestExecuteNoData(t *testing.T) {
	var out bytes.Buffer
	sh := New(&fakeReporter{}, &out, nil)
	if err := sh.Execute(context.Background(), "report"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "no data") {
		t.Errorf("empty result output: %s", out.String())
	}
}

func TestShowSettings(t *testing.T) {
	var out bytes.Buffer
	sh := New(&fakeReporter{}, &out, nil)
	ctx := context.Background()

	sh.Execute(ctx, "db Staging")
	sh.Execute(ctx, "show")

	got := out.String()
	if !strings.Contains(got, "Staging") || !strings.Contains(got, "historical") {
		t.Errorf("show output: %s", got)
	}
}
