package aim

import (
	"sync"
	"time"
)

// DefaultFreshness is how long a snapshot stays trustworthy.
const DefaultFreshness = 250 * time.Millisecond

// Cache maps actor ids to their latest aim snapshot. One writer (the sampler
// on the game loop) and any number of readers may use it concurrently.
type Cache struct {
	entries sync.Map // actor id → *Snapshot
	window  int64
	clock   Clock
}

// NewCache creates a cache. clock must be the one its sampler stamps
// snapshots with; nil selects the package default shared with NewSampler.
func NewCache(window time.Duration, clock Clock) *Cache {
	if window <= 0 {
		window = DefaultFreshness
	}
	if clock == nil {
		clock = defaultClock
	}
	return &Cache{window: int64(window), clock: clock}
}

// Put replaces the actor's snapshot.
func (c *Cache) Put(actorID string, s Snapshot) {
	c.entries.Store(actorID, &s)
}

// Get returns the actor's snapshot if it is still fresh. Stale entries are
// kept until overwritten but never returned.
func (c *Cache) Get(actorID string) (Snapshot, bool) {
	v, ok := c.entries.Load(actorID)
	if !ok {
		return Snapshot{}, false
	}
	s := v.(*Snapshot)
	if c.clock.Now()-s.CapturedAt > c.window {
		return Snapshot{}, false
	}
	return *s, true
}

// Delete drops the actor's entry when its session ends.
func (c *Cache) Delete(actorID string) {
	c.entries.Delete(actorID)
}

func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *Cache) Window() time.Duration { return time.Duration(c.window) }
