package aim

import (
	"sync/atomic"
	"time"
)

// SliceGate lets at most one caller through per fixed time slice, however many
// times it is asked within that slice.
type SliceGate struct {
	interval int64
	clock    Clock
	last     atomic.Int64 // slice index + 1 of the last admitted call; 0 = never
}

func NewSliceGate(interval time.Duration, clock Clock) *SliceGate {
	if interval <= 0 {
		interval = time.Second
	}
	if clock == nil {
		clock = defaultClock
	}
	return &SliceGate{interval: int64(interval), clock: clock}
}

// Allow reports whether the caller is the first in the current slice.
func (g *SliceGate) Allow() bool {
	cur := g.clock.Now()/g.interval + 1
	for {
		prev := g.last.Load()
		if prev >= cur {
			return false
		}
		if g.last.CompareAndSwap(prev, cur) {
			return true
		}
	}
}

// Do runs fn if the gate admits the caller.
func (g *SliceGate) Do(fn func()) bool {
	if !g.Allow() {
		return false
	}
	fn()
	return true
}
