package locate

import (
	"sync"
	"sync/atomic"
)

// ShapeSet records node shapes that have already been described. Entries are
// never removed. Safe for concurrent use.
type ShapeSet struct {
	seen sync.Map
	n    atomic.Int64
}

func NewShapeSet() *ShapeSet {
	return &ShapeSet{}
}

// FirstSeen marks shape as seen and reports whether this call was the first.
func (s *ShapeSet) FirstSeen(shape string) bool {
	if _, loaded := s.seen.LoadOrStore(shape, struct{}{}); loaded {
		return false
	}
	s.n.Add(1)
	return true
}

func (s *ShapeSet) Has(shape string) bool {
	_, ok := s.seen.Load(shape)
	return ok
}

func (s *ShapeSet) Len() int { return int(s.n.Load()) }
