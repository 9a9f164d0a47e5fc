package world

import (
	"github.com/aimloc/server/internal/component"
	"github.com/aimloc/server/internal/core/ecs"
	"github.com/aimloc/server/internal/geom"
)

// KeepResident loads the columns within radius of every aiming actor's eye
// and unloads columns that neither an actor nor the preload area needs. It
// returns how many columns were loaded and unloaded.
func (s *State) KeepResident(radius int) (loaded, unloaded int) {
	want := make(map[geom.RegionID]map[ChunkPos]bool, len(s.regions))
	for id, r := range s.regions {
		w := make(map[ChunkPos]bool)
		for _, pos := range r.preloadArea() {
			w[pos] = true
		}
		want[id] = w
	}

	s.aims.Each(func(_ ecs.EntityID, a *component.Aim) {
		w, ok := want[a.Region]
		if !ok || !a.Set {
			return
		}
		eye, ok := a.Eye.CellOK()
		if !ok {
			return
		}
		center := ChunkOf(eye)
		for x := -radius; x <= radius; x++ {
			for z := -radius; z <= radius; z++ {
				w[ChunkPos{X: center.X + x, Z: center.Z + z}] = true
			}
		}
	})

	for id, r := range s.regions {
		for pos := range r.chunks {
			if !want[id][pos] && s.UnloadChunk(id, pos) {
				unloaded++
			}
		}
		for pos := range want[id] {
			if ok, _ := s.LoadChunk(id, pos); ok {
				loaded++
			}
		}
	}
	return loaded, unloaded
}
