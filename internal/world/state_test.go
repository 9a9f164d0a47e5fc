package world

import (
	"testing"
	"time"

	"github.com/aimloc/server/internal/aim"
	"github.com/aimloc/server/internal/component"
	"github.com/aimloc/server/internal/data"
	"github.com/aimloc/server/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overworld geom.RegionID = "overworld"

func newTestState(t *testing.T) *State {
	t.Helper()
	cells, err := data.NewCellTypeTable([]data.CellType{
		{Name: "stone", Solid: true},
		{Name: "grass", Solid: true},
		{Name: "water"},
		{Name: "bench", Solid: true, Parts: []geom.Int3{{X: 1}}},
	})
	require.NoError(t, err)
	regions, err := data.NewRegionTable([]data.RegionInfo{{
		Name: "overworld", MinY: 0, MaxY: 128, PreloadRadius: 1,
		Layers: []data.Layer{{Cell: "stone", Thickness: 63}, {Cell: "grass", Thickness: 1}},
	}}, cells)
	require.NoError(t, err)
	s := NewState(cells, regions, nil)
	require.Equal(t, 9, s.Preload())
	return s
}

func TestState_FlatLayers(t *testing.T) {
	s := newTestState(t)

	name, err := s.Cell(overworld, geom.Int3{X: 3, Y: 63, Z: -7})
	require.NoError(t, err)
	assert.Equal(t, "grass", name)
	assert.True(t, s.Solid(overworld, geom.Int3{Y: 10}))
	assert.False(t, s.Solid(overworld, geom.Int3{Y: 64}))
	assert.Equal(t, "", s.CellType(overworld, geom.Int3{Y: 64}))
	assert.False(t, s.Solid(overworld, geom.Int3{Y: 500}), "above the column")
}

func TestState_Residency(t *testing.T) {
	s := newTestState(t)
	far := geom.Int3{X: 40, Y: 10}

	assert.True(t, s.Resident(overworld, geom.Int3{X: -16}))
	assert.False(t, s.Resident(overworld, far))
	assert.False(t, s.Solid(overworld, far), "never loads on demand")
	assert.False(t, s.Resident("nether", geom.Int3{}))

	loaded, err := s.LoadChunk(overworld, ChunkOf(far))
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.True(t, s.Solid(overworld, far))
	loaded, _ = s.LoadChunk(overworld, ChunkOf(far))
	assert.False(t, loaded)

	assert.True(t, s.UnloadChunk(overworld, ChunkOf(far)))
	assert.False(t, s.Resident(overworld, far))

	_, err = s.LoadChunk("nether", ChunkPos{})
	assert.ErrorIs(t, err, ErrUnknownRegion)
}

func TestState_PlaceStructure(t *testing.T) {
	s := newTestState(t)
	anchor := geom.Int3{X: 9, Y: 64, Z: -3}
	require.NoError(t, s.PlaceStructure(overworld, anchor, "bench"))

	filler := geom.Int3{X: 10, Y: 64, Z: -3}
	assert.True(t, s.Solid(overworld, filler))
	assert.Equal(t, "bench", s.CellType(overworld, filler))
	assert.Equal(t, anchor, geom.AnchorOf(filler, s.PartOffset(overworld, filler)))
	assert.Zero(t, s.PartOffset(overworld, anchor))

	// the filler would land in an unloaded column
	err := s.PlaceStructure(overworld, geom.Int3{X: 31, Y: 64}, "bench")
	assert.ErrorIs(t, err, ErrNotResident)
	assert.False(t, s.Solid(overworld, geom.Int3{X: 31, Y: 64}), "nothing written")

	assert.ErrorIs(t, s.PlaceStructure(overworld, anchor, "throne"), ErrUnknownCellType)
}

func TestState_ConfiguredStructures(t *testing.T) {
	cells, err := data.NewCellTypeTable([]data.CellType{
		{Name: "stone", Solid: true},
		{Name: "bench", Solid: true, Parts: []geom.Int3{{X: 1}}},
	})
	require.NoError(t, err)
	regions, err := data.NewRegionTable([]data.RegionInfo{{
		Name: "overworld", MaxY: 128, PreloadRadius: 0,
		Layers: []data.Layer{{Cell: "stone", Thickness: 64}},
		Structures: []data.Structure{
			{Cell: "bench", At: geom.Int3{X: 4, Y: 64, Z: 4}},
			{Cell: "bench", At: geom.Int3{X: 15, Y: 64, Z: 0}}, // part in column x=1
		},
	}}, cells)
	require.NoError(t, err)
	s := NewState(cells, regions, nil)
	require.Equal(t, 1, s.Preload())

	part := geom.Int3{X: 5, Y: 64, Z: 4}
	assert.Equal(t, "bench", s.CellType(overworld, part))
	assert.Equal(t, geom.Int3{X: 4, Y: 64, Z: 4}, geom.AnchorOf(part, s.PartOffset(overworld, part)))

	spanning := geom.Int3{X: 15, Y: 64, Z: 0}
	assert.False(t, s.Solid(overworld, spanning), "waits for its second column")

	_, err = s.LoadChunk(overworld, ChunkPos{X: 1})
	require.NoError(t, err)
	assert.Equal(t, "bench", s.CellType(overworld, spanning))
	filler := geom.Int3{X: 16, Y: 64, Z: 0}
	assert.Equal(t, spanning, geom.AnchorOf(filler, s.PartOffset(overworld, filler)))

	// regenerated columns get their structures back
	require.True(t, s.UnloadChunk(overworld, ChunkPos{}))
	_, err = s.LoadChunk(overworld, ChunkPos{})
	require.NoError(t, err)
	assert.Equal(t, "bench", s.CellType(overworld, part))
	assert.Equal(t, "bench", s.CellType(overworld, spanning))
}

func TestState_ShippedWorld(t *testing.T) {
	cells, err := data.LoadCellTypeTable("../../data/yaml/cell_types.yaml")
	require.NoError(t, err)
	regions, err := data.LoadRegionTable("../../data/yaml/regions.yaml", cells)
	require.NoError(t, err)
	s := NewState(cells, regions, nil)
	s.Preload()

	for _, st := range regions.Get("overworld").Structures {
		assert.Equal(t, st.Cell, s.CellType(overworld, st.At), "anchor of %s at %s", st.Cell, st.At)
		for _, off := range cells.Get(st.Cell).Parts {
			c := st.At.Add(off)
			assert.Equal(t, st.At, geom.AnchorOf(c, s.PartOffset(overworld, c)))
		}
	}
}

func TestState_KeepResident(t *testing.T) {
	s := newTestState(t)
	a := s.SpawnActor(1, component.Identity{UUID: "6f1c2f8e-3b7a-4f0e-9a43-1c2d3e4f5a6b"})

	loaded, unloaded := s.KeepResident(1)
	assert.Zero(t, loaded, "no actor has aimed yet")
	assert.Zero(t, unloaded, "the preload area stays")

	far := geom.Vec3{X: 100.5, Y: 70, Z: 0.5} // column (6,0)
	s.SetAim(a, overworld, far, geom.Vec3{Y: -1})
	loaded, unloaded = s.KeepResident(1)
	assert.Equal(t, 9, loaded)
	assert.Zero(t, unloaded)
	assert.True(t, s.Resident(overworld, geom.Int3{X: 100}))
	assert.Equal(t, 18, s.ResidentChunks())

	s.DespawnActor(a)
	loaded, unloaded = s.KeepResident(1)
	assert.Zero(t, loaded)
	assert.Equal(t, 9, unloaded)
	assert.False(t, s.Resident(overworld, geom.Int3{X: 100}))
}

func TestState_Actors(t *testing.T) {
	s := newTestState(t)
	a := s.SpawnActor(7, component.Identity{UUID: "6f1c2f8e-3b7a-4f0e-9a43-1c2d3e4f5a6b", Name: "steve"})
	s.SpawnActor(8, component.Identity{UUID: "00000000-0000-0000-0000-00000000beef", Name: "alex"})

	assert.Empty(t, s.Actors(), "no aim reported yet")

	require.True(t, s.SetAim(a, overworld, geom.Vec3{X: 9.5, Y: 66, Z: -2.5}, geom.Vec3{Y: -1}))
	actors := s.Actors()
	require.Len(t, actors, 1)
	assert.Equal(t, overworld, actors[0].Region())

	id, ok := aim.NewIdentifier().ActorID(actors[0])
	require.True(t, ok)
	assert.Equal(t, "6f1c2f8e-3b7a-4f0e-9a43-1c2d3e4f5a6b", id)

	got, ok := s.ActorBySession(7)
	require.True(t, ok)
	assert.Equal(t, a, got)

	s.DespawnActor(a)
	assert.Empty(t, s.Actors(), "despawned actors are not sampled")
	s.ECS().FlushDestroyQueue()
	_, ok = s.ActorBySession(7)
	assert.False(t, ok)
	assert.Equal(t, 1, s.ActorCount())
	assert.False(t, s.SetAim(a, overworld, geom.Vec3{}, geom.Vec3{}))
}

func TestState_SamplerIntegration(t *testing.T) {
	s := newTestState(t)
	anchor := geom.Int3{X: 9, Y: 64, Z: -3}
	require.NoError(t, s.PlaceStructure(overworld, anchor, "bench"))
	a := s.SpawnActor(1, component.Identity{UUID: "6f1c2f8e-3b7a-4f0e-9a43-1c2d3e4f5a6b"})
	s.SetAim(a, overworld, geom.Vec3{X: 10.5, Y: 66.5, Z: -2.5}, geom.Vec3{Y: -1})

	clock := aim.NewMonoClock()
	cache := aim.NewCache(250*time.Millisecond, clock)
	sampler := aim.NewSampler(aim.SamplerConfig{}, cache, s, nil, clock, nil)
	sampler.Step(s.Actors())

	snap, ok := cache.Get("6f1c2f8e-3b7a-4f0e-9a43-1c2d3e4f5a6b")
	require.True(t, ok)
	assert.Equal(t, geom.Int3{X: 10, Y: 64, Z: -3}, snap.RawHit)
	assert.Equal(t, anchor, snap.Base)
	assert.Equal(t, "bench", snap.CellType)
}
