package report

import (
	"sort"
	"time"

	"github.com/xtxerr/filestall/internal/iostats"
)

// Matrix is the dense cross product of the distinct snapshot timestamps and
// the distinct (database, role) dimensions observed in a window. The final
// report carries one row per cell even where no delta exists, so a period of
// file inactivity shows as a flat zero line instead of a misleading gap:
// "no activity" (zeros) stays distinguishable from "not sampled" (absent).
type Matrix struct {
	Times []time.Time
	Keys  []iostats.DimensionKey
}

// BuildMatrix enumerates the distinct capture timestamps and dimension keys
// of the in-window snapshots. Pre-window predecessors never contribute: a
// predecessor's timestamp is not a sampled instant of the window.
//
// Both sets stay small - bounded by window length times distinct files - so
// the product is cheap to materialize.
func BuildMatrix(window []iostats.Snapshot) Matrix {
	timeSet := make(map[int64]time.Time)
	keySet := make(map[iostats.DimensionKey]struct{})

	for i := range window {
		s := &window[i]
		timeSet[s.CapturedAt.UnixNano()] = s.CapturedAt
		keySet[s.Dimension()] = struct{}{}
	}

	m := Matrix{
		Times: make([]time.Time, 0, len(timeSet)),
		Keys:  make([]iostats.DimensionKey, 0, len(keySet)),
	}

	for _, t := range timeSet {
		m.Times = append(m.Times, t)
	}
	sort.Slice(m.Times, func(i, j int) bool { return m.Times[i].Before(m.Times[j]) })

	for k := range keySet {
		m.Keys = append(m.Keys, k)
	}
	sort.Slice(m.Keys, func(i, j int) bool {
		if m.Keys[i].Database != m.Keys[j].Database {
			return m.Keys[i].Database < m.Keys[j].Database
		}
		return m.Keys[i].Role < m.Keys[j].Role
	})

	return m
}

// Cells returns the number of (timestamp, dimension) combinations.
func (m *Matrix) Cells() int {
	return len(m.Times) * len(m.Keys)
}
