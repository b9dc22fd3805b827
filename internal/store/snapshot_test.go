package store

import (
	"context"
	"testing"
	"time"

	"github.com/xtxerr/filestall/internal/iostats"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot(at time.Time, dbID, fileID int64, reads int64) iostats.Snapshot {
	return iostats.Snapshot{
		CapturedAt:   at,
		DatabaseID:   dbID,
		DatabaseName: "SalesDB",
		FileID:       fileID,
		Drive:        "D",
		Role:         iostats.RoleData,
		PhysicalPath: `D:\data\sales.mdf`,
		FileHandle:   "0xDEAD",
		Reads:        reads,
		Writes:       reads / 2,
		ReadStallMs:  reads * 5,
		WriteStallMs: reads * 2,
		TotalStallMs: reads * 7,
		BytesRead:    reads * 8192,
		BytesWritten: reads * 4096,
	}
}

func TestAppendAndWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t0 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	snaps := []iostats.Snapshot{
		testSnapshot(t0, 5, 1, 100),
		testSnapshot(t0.Add(time.Hour), 5, 1, 180),
		testSnapshot(t0.Add(2*time.Hour), 5, 1, 260),
	}

	if err := s.Append(ctx, snaps); err != nil {
		t.Fatalf("append: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 snapshots, got %d", count)
	}

	// Window [t0+1h, t0+2h] must exclude t0.
	got, err := s.Window(ctx, t0.Add(time.Hour), t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 in-window snapshots, got %d", len(got))
	}
	if got[0].Reads != 180 || got[1].Reads != 260 {
		t.Errorf("window rows out of order or wrong: %+v", got)
	}
	if got[0].Role != iostats.RoleData {
		t.Errorf("expected role data, got %s", got[0].Role)
	}
	if got[0].DatabaseName != "SalesDB" {
		t.Errorf("expected SalesDB, got %s", got[0].DatabaseName)
	}
}

func TestAppendLargeBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t0 := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	snaps := make([]iostats.Snapshot, 0, 350)
	for i := 0; i < 350; i++ {
		snaps = append(snaps, testSnapshot(t0.Add(time.Duration(i)*time.Minute), 5, 1, int64(i)))
	}

	if err := s.Append(ctx, snaps); err != nil {
		t.Fatalf("append: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 350 {
		t.Errorf("expected 350 snapshots, got %d", count)
	}
}

func TestAppendEmpty(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append(context.Background(), nil); err != nil {
		t.Errorf("appending nothing should be a no-op: %v", err)
	}
}

func TestPredecessors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t0 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	snaps := []iostats.Snapshot{
		// file (5,1): two rows before the cutoff, newest must win
		testSnapshot(t0, 5, 1, 100),
		testSnapshot(t0.Add(30*time.Minute), 5, 1, 150),
		// file (5,2): one row before the cutoff
		testSnapshot(t0, 5, 2, 40),
		// file (7,1): only at the cutoff itself - strictly-before excludes it
		testSnapshot(t0.Add(time.Hour), 7, 1, 10),
	}
	if err := s.Append(ctx, snaps); err != nil {
		t.Fatalf("append: %v", err)
	}

	preds, err := s.Predecessors(ctx, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("predecessors: %v", err)
	}

	if len(preds) != 2 {
		t.Fatalf("expected 2 predecessors, got %d", len(preds))
	}

	byKey := make(map[iostats.FileKey]iostats.Snapshot)
	for _, p := range preds {
		byKey[p.Key()] = p
	}

	p51, ok := byKey[iostats.FileKey{DatabaseID: 5, FileID: 1}]
	if !ok {
		t.Fatal("missing predecessor for (5,1)")
	}
	if p51.Reads != 150 {
		t.Errorf("expected newest predecessor (reads=150), got reads=%d", p51.Reads)
	}

	if _, ok := byKey[iostats.FileKey{DatabaseID: 7, FileID: 1}]; ok {
		t.Error("snapshot at the cutoff must not be a predecessor (strictly before)")
	}
}

func TestDeleteBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t0 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	snaps := []iostats.Snapshot{
		testSnapshot(t0, 5, 1, 100),
		testSnapshot(t0.Add(time.Hour), 5, 1, 180),
		testSnapshot(t0.Add(2*time.Hour), 5, 1, 260),
	}
	if err := s.Append(ctx, snaps); err != nil {
		t.Fatalf("append: %v", err)
	}

	deleted, err := s.DeleteBefore(ctx, t0.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	oldest, newest, err := s.TimeRange(ctx)
	if err != nil {
		t.Fatalf("time range: %v", err)
	}
	if !oldest.Equal(t0.Add(2 * time.Hour)) || !newest.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("unexpected range after delete: %s .. %s", oldest, newest)
	}
}
