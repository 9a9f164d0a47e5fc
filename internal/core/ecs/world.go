package ecs

// World owns the entity pool, the component stores registered with it and a
// deferred destroy queue flushed once per tick by the cleanup system.
type World struct {
	pool      *EntityPool
	stores    []Removable
	queue     []EntityID
	onDestroy []func(EntityID)
}

func NewWorld() *World {
	return &World{
		pool:   NewEntityPool(),
		stores: make([]Removable, 0, 8),
		queue:  make([]EntityID, 0, 16),
	}
}

// Register adds a store that destroyed entities are removed from.
func (w *World) Register(s Removable) {
	w.stores = append(w.stores, s)
}

// OnDestroy adds a hook run for each entity before its components are removed.
func (w *World) OnDestroy(fn func(EntityID)) {
	w.onDestroy = append(w.onDestroy, fn)
}

func (w *World) CreateEntity() EntityID { return w.pool.Create() }
func (w *World) Alive(id EntityID) bool { return w.pool.Alive(id) }
func (w *World) Live() int              { return w.pool.Live() }
func (w *World) Pending() int           { return len(w.queue) }

// MarkForDestruction queues an entity for end-of-tick removal.
func (w *World) MarkForDestruction(id EntityID) {
	w.queue = append(w.queue, id)
}

// FlushDestroyQueue destroys queued entities. Duplicates and stale IDs are
// skipped. It returns how many entities were destroyed.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.queue {
		if !w.pool.Alive(id) {
			continue
		}
		for _, fn := range w.onDestroy {
			fn(id)
		}
		for _, s := range w.stores {
			s.Remove(id)
		}
		w.pool.Destroy(id)
		n++
	}
	w.queue = w.queue[:0]
	return n
}
