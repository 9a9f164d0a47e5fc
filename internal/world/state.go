package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aimloc/server/internal/component"
	"github.com/aimloc/server/internal/core/ecs"
	"github.com/aimloc/server/internal/data"
	"github.com/aimloc/server/internal/geom"
	"go.uber.org/zap"
)

var (
	ErrUnknownRegion   = errors.New("unknown region")
	ErrUnknownCellType = errors.New("unknown cell type")
	ErrNotResident     = errors.New("chunk not resident")
	ErrOutOfBounds     = errors.New("cell outside region height")
)

type region struct {
	info   *data.RegionInfo
	chunks map[ChunkPos]*chunk

	// configured structures by every column they occupy
	structures map[ChunkPos][]data.Structure
}

// State is the in-memory world: resident chunk columns per region plus the
// actor entities. Accessed only from the game loop goroutine; no locks.
type State struct {
	cells   *data.CellTypeTable
	regions map[geom.RegionID]*region
	log     *zap.Logger

	ecs       *ecs.World
	ids       *ecs.Store[component.Identity]
	aims      *ecs.Store[component.Aim]
	sessions  *ecs.Store[component.SessionRef]
	bySession map[uint64]ecs.EntityID
}

func NewState(cells *data.CellTypeTable, regions *data.RegionTable, log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	s := &State{
		cells:   cells,
		regions: make(map[geom.RegionID]*region, regions.Count()),
		log:     log,
	}
	for _, name := range regions.Names() {
		r := &region{
			info:       regions.Get(name),
			chunks:     make(map[ChunkPos]*chunk),
			structures: make(map[ChunkPos][]data.Structure),
		}
		for _, st := range r.info.Structures {
			for _, pos := range s.structureColumns(st) {
				r.structures[pos] = append(r.structures[pos], st)
			}
		}
		s.regions[geom.RegionID(name)] = r
	}
	s.initActors()
	return s
}

// Preload makes every region's configured spawn area resident and returns
// the number of chunks loaded.
func (s *State) Preload() int {
	n, placed := 0, 0
	for id, r := range s.regions {
		for _, pos := range r.preloadArea() {
			p, loaded, _ := s.loadChunk(id, pos)
			if loaded {
				n++
				placed += p
			}
		}
	}
	s.log.Info("world preloaded",
		zap.Int("regions", len(s.regions)),
		zap.Int("chunks", n),
		zap.Int("structures", placed),
	)
	return n
}

func (r *region) preloadArea() []ChunkPos {
	rad := r.info.PreloadRadius
	out := make([]ChunkPos, 0, (2*rad+1)*(2*rad+1))
	for x := -rad; x <= rad; x++ {
		for z := -rad; z <= rad; z++ {
			out = append(out, ChunkPos{X: x, Z: z})
		}
	}
	return out
}

// LoadChunk generates a column from the region's layers and places the
// configured structures that are now fully resident. It reports false when
// the column was already resident.
func (s *State) LoadChunk(id geom.RegionID, pos ChunkPos) (bool, error) {
	_, loaded, err := s.loadChunk(id, pos)
	return loaded, err
}

func (s *State) loadChunk(id geom.RegionID, pos ChunkPos) (placed int, loaded bool, err error) {
	r, ok := s.regions[id]
	if !ok {
		return 0, false, fmt.Errorf("load chunk %v in %s: %w", pos, id, ErrUnknownRegion)
	}
	if _, ok := r.chunks[pos]; ok {
		return 0, false, nil
	}
	ch := newChunk(r.info.MinY, r.info.Height())
	y := r.info.MinY
	for _, l := range r.info.Layers {
		cell := s.cells.Get(l.Cell).ID
		for i := 0; i < l.Thickness; i++ {
			for z := 0; z < ChunkSize; z++ {
				for x := 0; x < ChunkSize; x++ {
					ch.set(geom.Int3{X: x, Y: y, Z: z}, cell, 0)
				}
			}
			y++
		}
	}
	r.chunks[pos] = ch
	return s.placeStructures(id, r, pos), true, nil
}

// placeStructures writes the structures touching pos whose columns are all
// resident. A structure spanning columns is placed when its last one loads.
func (s *State) placeStructures(id geom.RegionID, r *region, pos ChunkPos) int {
	n := 0
	for _, st := range r.structures[pos] {
		ready := true
		for _, c := range s.structureColumns(st) {
			if _, ok := r.chunks[c]; !ok {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		if err := s.PlaceStructure(id, st.At, st.Cell); err != nil {
			s.log.Warn("structure not placed", zap.String("region", string(id)), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// structureColumns lists the distinct columns a structure occupies.
func (s *State) structureColumns(st data.Structure) []ChunkPos {
	cols := []ChunkPos{ChunkOf(st.At)}
	ct := s.cells.Get(st.Cell)
	if ct == nil {
		return cols
	}
	for _, off := range ct.Parts {
		pos := ChunkOf(st.At.Add(off))
		if !slices.Contains(cols, pos) {
			cols = append(cols, pos)
		}
	}
	return cols
}

// UnloadChunk drops a column. Its contents are regenerated on the next load.
func (s *State) UnloadChunk(id geom.RegionID, pos ChunkPos) bool {
	r, ok := s.regions[id]
	if !ok {
		return false
	}
	if _, ok := r.chunks[pos]; !ok {
		return false
	}
	delete(r.chunks, pos)
	return true
}

func (s *State) chunkAt(id geom.RegionID, c geom.Int3) (*chunk, error) {
	r, ok := s.regions[id]
	if !ok {
		return nil, ErrUnknownRegion
	}
	ch, ok := r.chunks[ChunkOf(c)]
	if !ok {
		return nil, ErrNotResident
	}
	if ch.index(c) < 0 {
		return nil, ErrOutOfBounds
	}
	return ch, nil
}

// PlaceStructure writes a cell type at anchor together with its parts. Every
// occupied cell must be resident; nothing is written otherwise.
func (s *State) PlaceStructure(id geom.RegionID, anchor geom.Int3, typeName string) error {
	ct := s.cells.Get(typeName)
	if ct == nil {
		return fmt.Errorf("place structure: %q: %w", typeName, ErrUnknownCellType)
	}
	targets := make([]*chunk, 0, len(ct.Parts)+1)
	for _, off := range append([]geom.Int3{{}}, ct.Parts...) {
		ch, err := s.chunkAt(id, anchor.Add(off))
		if err != nil {
			return fmt.Errorf("place %s at %s in %s: %w", typeName, anchor.Add(off), id, err)
		}
		targets = append(targets, ch)
	}
	targets[0].set(anchor, ct.ID, 0)
	for i, off := range ct.Parts {
		targets[i+1].set(anchor.Add(off), ct.ID, geom.PackOffset(off))
	}
	return nil
}

// Cell returns the cell type name at c, "air" for empty cells.
func (s *State) Cell(id geom.RegionID, c geom.Int3) (string, error) {
	ch, err := s.chunkAt(id, c)
	if err != nil {
		return "", fmt.Errorf("cell %s in %s: %w", c, id, err)
	}
	if ct := s.cells.ByID(ch.get(c)); ct != nil {
		return ct.Name, nil
	}
	return "air", nil
}

// HasRegion reports whether the region is configured.
func (s *State) HasRegion(id geom.RegionID) bool {
	_, ok := s.regions[id]
	return ok
}

// ResidentChunks counts loaded columns across all regions.
func (s *State) ResidentChunks() int {
	n := 0
	for _, r := range s.regions {
		n += len(r.chunks)
	}
	return n
}

// Resident reports whether the column holding c is loaded. It never loads.
func (s *State) Resident(id geom.RegionID, c geom.Int3) bool {
	r, ok := s.regions[id]
	if !ok {
		return false
	}
	_, ok = r.chunks[ChunkOf(c)]
	return ok
}

func (s *State) Solid(id geom.RegionID, c geom.Int3) bool {
	ch, err := s.chunkAt(id, c)
	if err != nil {
		return false
	}
	ct := s.cells.ByID(ch.get(c))
	return ct != nil && ct.Solid
}

func (s *State) PartOffset(id geom.RegionID, c geom.Int3) uint32 {
	ch, err := s.chunkAt(id, c)
	if err != nil {
		return 0
	}
	return ch.offset(c)
}

// CellType returns the type name at c, or "" for air and non-resident cells.
func (s *State) CellType(id geom.RegionID, c geom.Int3) string {
	ch, err := s.chunkAt(id, c)
	if err != nil {
		return ""
	}
	if ct := s.cells.ByID(ch.get(c)); ct != nil {
		return ct.Name
	}
	return ""
}
