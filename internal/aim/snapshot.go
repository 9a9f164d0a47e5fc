package aim

import (
	"time"

	"github.com/aimloc/server/internal/geom"
)

// Snapshot is what an actor was aiming at, and when. Snapshots are immutable
// once stored.
type Snapshot struct {
	Region     geom.RegionID
	RawHit     geom.Int3 // cell struck by the ray
	Base       geom.Int3 // anchor cell of the struck structure
	CellType   string    // "" when unknown
	CapturedAt int64     // monotonic nanoseconds, see Clock
}

// Location returns the snapshot's anchor cell as a location.
func (s Snapshot) Location() geom.Location {
	return geom.LocationAt(s.Region, s.Base)
}

// Clock reports monotonic time in nanoseconds since an arbitrary origin.
type Clock interface {
	Now() int64
}

// MonoClock reads Go's monotonic clock relative to its creation.
type MonoClock struct {
	epoch time.Time
}

func NewMonoClock() *MonoClock {
	return &MonoClock{epoch: time.Now()}
}

// defaultClock stands in for a nil Clock. Snapshot timestamps are only
// comparable under one epoch, so every constructor falls back to this
// same instance.
var defaultClock = NewMonoClock()

func (c *MonoClock) Now() int64 {
	return int64(time.Since(c.epoch))
}
