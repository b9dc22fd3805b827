// Package render formats report output for humans and for pipes.
//
// Interactive terminals get an aligned table; everything else gets TSV so the
// output composes with cut, awk and friends.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/xtxerr/filestall/internal/iostats"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Options controls metric rendering.
type Options struct {
	// Table forces table output regardless of terminal detection.
	Table bool

	// Percentiles adds the P95 latency columns.
	Percentiles bool
}

// Metrics writes report rows to w, as a table when w is a terminal (or
// opts.Table is set) and as TSV otherwise.
func Metrics(w io.Writer, rows []iostats.Metric, opts Options) {
	if opts.Table || IsTerminal(w) {
		metricsTable(w, rows, opts)
		return
	}
	metricsTSV(w, rows, opts)
}

func metricHeader(opts Options) []string {
	h := []string{
		"TIME", "DATABASE", "ROLE", "SCOPE",
		"READ MS", "WRITE MS", "TOTAL MS",
		"READS", "WRITES",
		"READ KB", "WRITE KB",
		"READ PG", "WRITE PG",
		"FILES",
	}
	if opts.Percentiles {
		h = append(h, "P95 READ MS", "P95 WRITE MS")
	}
	return h
}

func metricRow(m *iostats.Metric, opts Options) []string {
	at := ""
	if !m.IntervalEnd.IsZero() {
		at = m.IntervalEnd.UTC().Format(time.RFC3339)
	}
	row := []string{
		at, m.Database, m.Role.String(), m.Scope.String(),
		formatMs(m.AvgReadLatencyMs),
		formatMs(m.AvgWriteLatencyMs),
		formatMs(m.AvgTotalLatencyMs),
		strconv.FormatInt(m.TotalReads, 10),
		strconv.FormatInt(m.TotalWrites, 10),
		strconv.FormatInt(m.TotalReadKB, 10),
		strconv.FormatInt(m.TotalWriteKB, 10),
		strconv.FormatInt(m.TotalReadPages, 10),
		strconv.FormatInt(m.TotalWritePages, 10),
		strconv.FormatInt(m.FileCount, 10),
	}
	if opts.Percentiles {
		row = append(row, formatOptMs(m.P95ReadLatencyMs), formatOptMs(m.P95WriteLatencyMs))
	}
	return row
}

func metricsTable(w io.Writer, rows []iostats.Metric, opts Options) {
	t := tablewriter.NewWriter(w)
	t.SetHeader(metricHeader(opts))
	t.SetAutoFormatHeaders(false)
	t.SetBorder(false)
	t.SetColumnSeparator(" ")
	t.SetHeaderLine(false)
	t.SetAutoWrapText(false)
	for i := range rows {
		t.Append(metricRow(&rows[i], opts))
	}
	t.Render()
}

func metricsTSV(w io.Writer, rows []iostats.Metric, opts Options) {
	fmt.Fprintln(w, strings.Join(metricHeader(opts), "\t"))
	for i := range rows {
		fmt.Fprintln(w, strings.Join(metricRow(&rows[i], opts), "\t"))
	}
}

// formatMs keeps latency readable: two decimals, no trailing noise for
// zero-filled cells.
func formatMs(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptMs(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatMs(*v)
}

// Receipt writes one collection receipt.
func Receipt(w io.Writer, r iostats.CaptureReceipt) {
	fmt.Fprintf(w, "captured %d files across %d databases at %s\n",
		r.Files, r.Databases, r.CapturedAt.UTC().Format(time.RFC3339))
}
