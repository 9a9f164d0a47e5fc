// Package fallback keeps the coarse, session-wide "last hint" location fed by
// the legacy hint path. It is best-effort telemetry: one global slot, no
// timestamp, no per-actor scoping, consulted only when nothing better exists.
package fallback

import (
	"sync/atomic"

	"github.com/aimloc/server/internal/geom"
)

// Hint is a remembered cell. Region may be empty when the producer did not know it.
type Hint struct {
	Region geom.RegionID
	Cell   geom.Int3
}

// Memory is a single atomically swapped slot.
type Memory struct {
	slot atomic.Pointer[Hint]
}

func New() *Memory {
	return &Memory{}
}

// Remember overwrites the slot.
func (m *Memory) Remember(h Hint) {
	m.slot.Store(&h)
}

func (m *Memory) Get() (Hint, bool) {
	h := m.slot.Load()
	if h == nil {
		return Hint{}, false
	}
	return *h, true
}
