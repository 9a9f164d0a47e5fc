package ecs

// EntityID packs a 32-bit slot index (low bits) and a 32-bit generation
// (high bits). Generations start at 1, so the zero ID never names an entity.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// EntityPool hands out generational IDs and recycles destroyed slots.
type EntityPool struct {
	generations []uint32
	free        []uint32
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 256),
		free:        make([]uint32, 0, 64),
	}
}

func (p *EntityPool) Create() EntityID {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return NewEntityID(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 1)
	return NewEntityID(idx, 1)
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	return int(idx) < len(p.generations) && p.generations[idx] == id.Generation()
}

// Destroy invalidates id. Stale or unknown IDs are ignored.
func (p *EntityPool) Destroy(id EntityID) bool {
	if !p.Alive(id) {
		return false
	}
	idx := id.Index()
	p.generations[idx]++
	if p.generations[idx] == 0 {
		p.generations[idx] = 1
	}
	p.free = append(p.free, idx)
	return true
}

// Live reports the number of live entities.
func (p *EntityPool) Live() int {
	return len(p.generations) - len(p.free)
}
