package report

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/xtxerr/filestall/internal/errors"
	"github.com/xtxerr/filestall/internal/iostats"
)

// fakeHistory is an in-memory HistorySource.
type fakeHistory struct {
	snapshots []iostats.Snapshot
	err       error
}

func (f *fakeHistory) Window(ctx context.Context, from, to time.Time) ([]iostats.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []iostats.Snapshot
	for _, s := range f.snapshots {
		if !s.CapturedAt.Before(from) && !s.CapturedAt.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeHistory) Predecessors(ctx context.Context, before time.Time) ([]iostats.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	newest := make(map[iostats.FileKey]iostats.Snapshot)
	for _, s := range f.snapshots {
		if !s.CapturedAt.Before(before) {
			continue
		}
		if prev, ok := newest[s.Key()]; !ok || s.CapturedAt.After(prev.CapturedAt) {
			newest[s.Key()] = s
		}
	}
	out := make([]iostats.Snapshot, 0, len(newest))
	for _, s := range newest {
		out = append(out, s)
	}
	return out, nil
}

// fakeLive is an in-memory capture source.
type fakeLive struct {
	snapshots []iostats.Snapshot
	err       error
}

func (f *fakeLive) Current(ctx context.Context) ([]iostats.Snapshot, error) {
	return f.snapshots, f.err
}

func (f *fakeLive) Close() error { return nil }

func newTestService(history HistorySource, live *fakeLive, now time.Time) *Service {
	s := New(Config{History: history, Live: live})
	s.now = func() time.Time { return now }
	return s
}

func findRow(t *testing.T, rows []iostats.Metric, at time.Time, db string, role iostats.FileRole) iostats.Metric {
	t.Helper()
	for _, r := range rows {
		if r.IntervalEnd.Equal(at) && r.Database == db && r.Role == role {
			return r
		}
	}
	t.Fatalf("no row for (%s, %s, %s)", at, db, role)
	return iostats.Metric{}
}

// TestHistoricalWorkedExample replays the canonical scenario: two snapshots
// an hour apart with growing counters, then a reset, while a second file
// keeps producing valid deltas.
func TestHistoricalWorkedExample(t *testing.T) {
	t0 := baseTime
	t1 := t0.Add(time.Hour)
	t2 := t0.Add(2 * time.Hour)

	dataFile := func(at time.Time, reads, stall int64) iostats.Snapshot {
		return iostats.Snapshot{
			CapturedAt: at, DatabaseID: 5, FileID: 1,
			DatabaseName: "SalesDB", Role: iostats.RoleData,
			Reads: reads, ReadStallMs: stall, TotalStallMs: stall,
		}
	}
	logFile := func(at time.Time, writes, stall int64) iostats.Snapshot {
		return iostats.Snapshot{
			CapturedAt: at, DatabaseID: 5, FileID: 2,
			DatabaseName: "SalesDB", Role: iostats.RoleLog,
			Writes: writes, WriteStallMs: stall, TotalStallMs: stall,
		}
	}

	history := &fakeHistory{snapshots: []iostats.Snapshot{
		dataFile(t0, 100, 500),
		dataFile(t1, 180, 900),
		dataFile(t2, 50, 10), // counter reset
		logFile(t0, 1000, 2000),
		logFile(t1, 1200, 2600),
		logFile(t2, 1500, 3500),
	}}

	svc := newTestService(history, nil, t2)
	rows, err := svc.Report(context.Background(), Options{Mode: ModeHistorical, Lookback: 3 * time.Hour})
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	// Dense matrix: 3 timestamps x 2 dimensions.
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}

	// T1 data row: delta reads 80, avg latency (900-500)/80 = 5.
	r := findRow(t, rows, t1, "SalesDB", iostats.RoleData)
	if r.TotalReads != 80 {
		t.Errorf("T1 total reads %d, want 80", r.TotalReads)
	}
	if r.AvgReadLatencyMs != 5.0 {
		t.Errorf("T1 avg read latency %f, want 5", r.AvgReadLatencyMs)
	}
	if r.FileCount != 1 {
		t.Errorf("T1 file count %d, want 1", r.FileCount)
	}

	// T2 data row: reset pair dropped, zero-filled.
	r = findRow(t, rows, t2, "SalesDB", iostats.RoleData)
	if r.TotalReads != 0 || r.AvgReadLatencyMs != 0 || r.FileCount != 0 {
		t.Errorf("T2 data row must be zero-filled, got %+v", r)
	}

	// T2 log row: the other file's contemporaneous valid delta survives.
	r = findRow(t, rows, t2, "SalesDB", iostats.RoleLog)
	if r.TotalWrites != 300 {
		t.Errorf("T2 log writes %d, want 300", r.TotalWrites)
	}
	if r.AvgWriteLatencyMs != 3.0 {
		t.Errorf("T2 log avg write latency %f, want 3 (900ms/300ops)", r.AvgWriteLatencyMs)
	}

	// T0 rows: no predecessor inside or before the window, zero-filled but
	// present.
	r = findRow(t, rows, t0, "SalesDB", iostats.RoleData)
	if r.TotalReads != 0 {
		t.Errorf("T0 data row should be zero-filled, got reads=%d", r.TotalReads)
	}
}

func TestHistoricalZeroFillTotality(t *testing.T) {
	t0 := baseTime
	t1 := t0.Add(time.Hour)

	history := &fakeHistory{snapshots: []iostats.Snapshot{
		snap(t0, 5, 1, "SalesDB", iostats.RoleData, 10, 5),
		snap(t1, 5, 1, "SalesDB", iostats.RoleData, 20, 9),
		snap(t0, 7, 1, "Staging", iostats.RoleLog, 5, 100),
		snap(t1, 7, 1, "Staging", iostats.RoleLog, 6, 150),
	}}

	svc := newTestService(history, nil, t1)
	rows, err := svc.Report(context.Background(), Options{Mode: ModeHistorical, Lookback: 2 * time.Hour})
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	// 2 timestamps x 2 keys, exactly one row per cell.
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	seen := make(map[string]int)
	for _, r := range rows {
		seen[r.IntervalEnd.String()+"/"+r.Database+"/"+r.Role.String()]++
	}
	for cellName, n := range seen {
		if n != 1 {
			t.Errorf("cell %s appears %d times, want exactly 1", cellName, n)
		}
	}
}

func TestHistoricalSortOrder(t *testing.T) {
	t0 := baseTime
	t1 := t0.Add(time.Hour)

	history := &fakeHistory{snapshots: []iostats.Snapshot{
		snap(t1, 7, 1, "Staging", iostats.RoleData, 1, 1),
		snap(t0, 7, 1, "Staging", iostats.RoleData, 1, 1),
		snap(t1, 5, 2, "SalesDB", iostats.RoleLog, 1, 1),
		snap(t0, 5, 2, "SalesDB", iostats.RoleLog, 1, 1),
		snap(t1, 5, 1, "SalesDB", iostats.RoleData, 1, 1),
		snap(t0, 5, 1, "SalesDB", iostats.RoleData, 1, 1),
	}}

	svc := newTestService(history, nil, t1)
	rows, err := svc.Report(context.Background(), Options{Mode: ModeHistorical, Lookback: 2 * time.Hour})
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	for i := 1; i < len(rows); i++ {
		a, b := rows[i-1], rows[i]
		if a.IntervalEnd.After(b.IntervalEnd) {
			t.Fatal("rows not sorted by time first")
		}
		if a.IntervalEnd.Equal(b.IntervalEnd) {
			if a.Database > b.Database {
				t.Fatal("rows not sorted by database within a timestamp")
			}
			if a.Database == b.Database && a.Role > b.Role {
				t.Fatal("rows not sorted by role within a database")
			}
		}
	}
}

func TestHistoricalIdempotence(t *testing.T) {
	t0 := baseTime
	t1 := t0.Add(time.Hour)

	history := &fakeHistory{snapshots: []iostats.Snapshot{
		snap(t0, 5, 1, "SalesDB", iostats.RoleData, 100, 50),
		snap(t1, 5, 1, "SalesDB", iostats.RoleData, 180, 90),
	}}

	svc := newTestService(history, nil, t1)
	opts := Options{Mode: ModeHistorical, Lookback: 2 * time.Hour}

	first, err := svc.Report(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Report(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("identical requests against an unchanged store must yield identical output")
	}
}

func TestFilters(t *testing.T) {
	t0 := baseTime
	t1 := t0.Add(time.Hour)

	history := &fakeHistory{snapshots: []iostats.Snapshot{
		snap(t0, 5, 1, "SalesDB", iostats.RoleData, 10, 5),
		snap(t1, 5, 1, "SalesDB", iostats.RoleData, 20, 9),
		snap(t0, 5, 2, "SalesDB", iostats.RoleLog, 10, 5),
		snap(t1, 5, 2, "SalesDB", iostats.RoleLog, 20, 9),
		snap(t0, 7, 1, "Staging", iostats.RoleData, 10, 5),
		snap(t1, 7, 1, "Staging", iostats.RoleData, 20, 9),
	}}

	svc := newTestService(history, nil, t1)
	ctx := context.Background()

	// Role filter: only data rows.
	rows, err := svc.Report(ctx, Options{Mode: ModeHistorical, Lookback: 2 * time.Hour, Role: "data"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) == 0 {
		t.Fatal("expected data rows")
	}
	for _, r := range rows {
		if r.Role != iostats.RoleData {
			t.Errorf("role filter leaked role %s", r.Role)
		}
	}

	// Database filter.
	rows, err = svc.Report(ctx, Options{Mode: ModeHistorical, Lookback: 2 * time.Hour, Database: "Staging"})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.Database != "Staging" {
			t.Errorf("database filter leaked %s", r.Database)
		}
	}

	// Absent database: empty result, not an error.
	rows, err = svc.Report(ctx, Options{Mode: ModeHistorical, Lookback: 2 * time.Hour, Database: "NoSuchDB"})
	if err != nil {
		t.Fatalf("absent database must not error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty result, got %d rows", len(rows))
	}
}

func TestRequestValidation(t *testing.T) {
	svc := newTestService(&fakeHistory{}, &fakeLive{}, baseTime)
	ctx := context.Background()

	_, err := svc.Report(ctx, Options{Mode: ModeHistorical, Role: "tempdb"})
	if err == nil {
		t.Fatal("unknown role filter must be rejected")
	}
	if !errors.Is(err, errors.ErrInvalidRoleFilter) || !errors.IsRequestError(err) {
		t.Errorf("expected role filter request error, got %v", err)
	}

	_, err = svc.Report(ctx, Options{Mode: ModeHistorical, Lookback: -time.Hour})
	if err == nil {
		t.Fatal("negative lookback must be rejected")
	}
	if !errors.Is(err, errors.ErrInvalidLookback) {
		t.Errorf("expected lookback error, got %v", err)
	}

	_, err = svc.Report(ctx, Options{Mode: Mode(99)})
	if err == nil || !errors.Is(err, errors.ErrInvalidMode) {
		t.Errorf("expected mode error, got %v", err)
	}
}

func TestDefaultLookback(t *testing.T) {
	t1 := baseTime
	t0 := t1.Add(-23 * time.Hour) // inside the default 24h window

	history := &fakeHistory{snapshots: []iostats.Snapshot{
		snap(t0, 5, 1, "SalesDB", iostats.RoleData, 100, 50),
		snap(t1, 5, 1, "SalesDB", iostats.RoleData, 180, 90),
	}}

	svc := newTestService(history, nil, t1)
	rows, err := svc.Report(context.Background(), Options{Mode: ModeHistorical})
	if err != nil {
		t.Fatal(err)
	}

	r := findRow(t, rows, t1, "SalesDB", iostats.RoleData)
	if r.TotalReads != 80 {
		t.Errorf("default lookback should cover both snapshots, got reads=%d", r.TotalReads)
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	history := &fakeHistory{err: context.DeadlineExceeded}
	svc := newTestService(history, nil, baseTime)

	_, err := svc.Report(context.Background(), Options{Mode: ModeHistorical, Lookback: time.Hour})
	if err == nil {
		t.Fatal("store failure must propagate")
	}
	if !errors.Is(err, errors.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if !errors.IsCollaboratorError(err) {
		t.Errorf("store failure should be a collaborator error: %v", err)
	}
}

func TestCurrentMode(t *testing.T) {
	live := &fakeLive{snapshots: []iostats.Snapshot{
		snap(baseTime, 5, 1, "SalesDB", iostats.RoleData, 1000, 500),
		snap(baseTime, 5, 2, "SalesDB", iostats.RoleLog, 10, 2000),
		snap(baseTime, 7, 1, "Staging", iostats.RoleData, 0, 0),
	}}

	svc := newTestService(nil, live, baseTime)
	rows, err := svc.Report(context.Background(), Options{Mode: ModeCurrent})
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	// Sorted by (database, role); cumulative scope; no time dimension.
	if rows[0].Database != "SalesDB" || rows[0].Role != iostats.RoleData {
		t.Errorf("first row %+v, want SalesDB/data", rows[0])
	}
	if rows[2].Database != "Staging" {
		t.Errorf("last row %+v, want Staging", rows[2])
	}
	for _, r := range rows {
		if r.Scope != iostats.ScopeCumulative {
			t.Errorf("row scope %s, want cumulative", r.Scope)
		}
		if !r.IntervalEnd.IsZero() {
			t.Errorf("current-mode row must carry no timestamp")
		}
	}

	// A file with zero lifetime activity: zero latency, no fault.
	idle := findCurrentRow(t, rows, "Staging", iostats.RoleData)
	if idle.AvgReadLatencyMs != 0 || idle.AvgTotalLatencyMs != 0 {
		t.Errorf("idle file latencies must be 0, got %+v", idle)
	}

	// Current mode ignores lookback entirely.
	if _, err := svc.Report(context.Background(), Options{Mode: ModeCurrent, Lookback: -time.Hour}); err != nil {
		t.Errorf("lookback must be ignored in current mode: %v", err)
	}
}

func findCurrentRow(t *testing.T, rows []iostats.Metric, db string, role iostats.FileRole) iostats.Metric {
	t.Helper()
	for _, r := range rows {
		if r.Database == db && r.Role == role {
			return r
		}
	}
	t.Fatalf("no row for (%s, %s)", db, role)
	return iostats.Metric{}
}

func TestCurrentModeCaptureFailure(t *testing.T) {
	live := &fakeLive{err: context.DeadlineExceeded}
	svc := newTestService(nil, live, baseTime)

	_, err := svc.Report(context.Background(), Options{Mode: ModeCurrent})
	if err == nil {
		t.Fatal("capture failure must propagate")
	}
	if !errors.Is(err, errors.ErrCaptureUnavailable) {
		t.Errorf("expected ErrCaptureUnavailable, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"historical", ModeHistorical, false},
		{"", ModeHistorical, false},
		{"current", ModeCurrent, false},
		{"live", 0, true},
		{"CURRENT", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
