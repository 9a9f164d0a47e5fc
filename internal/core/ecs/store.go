package ecs

// Removable is implemented by every component store so World can strip a
// destroyed entity from all of them.
type Removable interface {
	Remove(id EntityID)
}

// Store is a dense component store. Iteration follows insertion order,
// except that Remove moves the last element into the freed slot.
type Store[T any] struct {
	index map[EntityID]int
	ids   []EntityID
	data  []*T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{index: make(map[EntityID]int, 64)}
}

func (s *Store[T]) Set(id EntityID, c *T) {
	if i, ok := s.index[id]; ok {
		s.data[i] = c
		return
	}
	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
	s.data = append(s.data, c)
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.data[i], true
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *Store[T]) Remove(id EntityID) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	last := len(s.ids) - 1
	if i != last {
		s.ids[i], s.data[i] = s.ids[last], s.data[last]
		s.index[s.ids[i]] = i
	}
	s.ids[last], s.data[last] = 0, nil
	s.ids, s.data = s.ids[:last], s.data[:last]
	delete(s.index, id)
}

func (s *Store[T]) Len() int { return len(s.ids) }

func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for i, id := range s.ids {
		fn(id, s.data[i])
	}
}

// Each2 visits entities present in both stores, in sa's order.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	for i, id := range sa.ids {
		if b, ok := sb.Get(id); ok {
			fn(id, sa.data[i], b)
		}
	}
}
