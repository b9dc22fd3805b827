package capture

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/xtxerr/filestall/internal/iostats"
)

// SyntheticFile describes one file the synthetic source tracks.
type SyntheticFile struct {
	DatabaseID   int64
	DatabaseName string
	FileID       int64
	Role         iostats.FileRole
	Drive        string
	PhysicalPath string
}

// SyntheticSource produces monotonic random-walk counters for a fixed set of
// files. Each Current call advances every file's counters and stamps all
// rows with one capture time. Resets can be injected to exercise the
// counter-reset handling of the delta calculator.
//
// SyntheticSource is safe for concurrent use.
type SyntheticSource struct {
	mu    sync.Mutex
	files []SyntheticFile
	state map[iostats.FileKey]*counterState
	rng   *rand.Rand

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

type counterState struct {
	reads, writes             int64
	readStallMs, writeStallMs int64
	bytesRead, bytesWritten   int64
	pendingReset              bool
}

// NewSyntheticSource creates a synthetic source with a deterministic seed.
func NewSyntheticSource(files []SyntheticFile, seed int64) *SyntheticSource {
	state := make(map[iostats.FileKey]*counterState, len(files))
	for _, f := range files {
		state[iostats.FileKey{DatabaseID: f.DatabaseID, FileID: f.FileID}] = &counterState{}
	}
	return &SyntheticSource{
		files: files,
		state: state,
		rng:   rand.New(rand.NewSource(seed)),
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// InjectReset zeroes the file's counters on its next advance, simulating an
// engine restart or a detach/reattach.
func (s *SyntheticSource) InjectReset(key iostats.FileKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.state[key]; ok {
		st.pendingReset = true
	}
}

// Current advances all counters and returns one snapshot per file.
func (s *SyntheticSource) Current(ctx context.Context) ([]iostats.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	capturedAt := s.Now()
	snapshots := make([]iostats.Snapshot, 0, len(s.files))

	for _, f := range s.files {
		key := iostats.FileKey{DatabaseID: f.DatabaseID, FileID: f.FileID}
		st := s.state[key]
		s.advance(st)

		snapshots = append(snapshots, iostats.Snapshot{
			CapturedAt:   capturedAt,
			DatabaseID:   f.DatabaseID,
			DatabaseName: f.DatabaseName,
			FileID:       f.FileID,
			Drive:        f.Drive,
			Role:         f.Role,
			PhysicalPath: f.PhysicalPath,
			Reads:        st.reads,
			Writes:       st.writes,
			ReadStallMs:  st.readStallMs,
			WriteStallMs: st.writeStallMs,
			TotalStallMs: st.readStallMs + st.writeStallMs,
			BytesRead:    st.bytesRead,
			BytesWritten: st.bytesWritten,
		})
	}

	return snapshots, nil
}

// advance moves one file's counters forward, or zeroes them when a reset is
// pending.
func (s *SyntheticSource) advance(st *counterState) {
	if st.pendingReset {
		*st = counterState{}
		return
	}

	reads := int64(s.rng.Intn(200))
	writes := int64(s.rng.Intn(120))

	st.reads += reads
	st.writes += writes
	// 1-8ms average stall per operation
	st.readStallMs += reads * int64(1+s.rng.Intn(8))
	st.writeStallMs += writes * int64(1+s.rng.Intn(8))
	st.bytesRead += reads * iostats.DefaultPageSizeBytes
	st.bytesWritten += writes * iostats.DefaultPageSizeBytes
}

// Close implements Source.
func (s *SyntheticSource) Close() error { return nil }
