package world

import "github.com/aimloc/server/internal/geom"

// ChunkSize is the x/z edge length of a chunk column.
const ChunkSize = 16

// ChunkPos addresses a chunk column within a region.
type ChunkPos struct {
	X, Z int
}

// ChunkOf returns the column containing a cell.
func ChunkOf(c geom.Int3) ChunkPos {
	return ChunkPos{X: geom.FloorDiv(c.X, ChunkSize), Z: geom.FloorDiv(c.Z, ChunkSize)}
}

// chunk stores one column of cells as palette indexes. Part offsets of
// composite structures are sparse.
type chunk struct {
	minY    int
	height  int
	cells   []uint16
	offsets map[int]uint32
}

func newChunk(minY, height int) *chunk {
	return &chunk{
		minY:    minY,
		height:  height,
		cells:   make([]uint16, ChunkSize*ChunkSize*height),
		offsets: make(map[int]uint32),
	}
}

// index returns the slot for c, or -1 when y is outside the column.
func (ch *chunk) index(c geom.Int3) int {
	y := c.Y - ch.minY
	if y < 0 || y >= ch.height {
		return -1
	}
	x := geom.Mod(c.X, ChunkSize)
	z := geom.Mod(c.Z, ChunkSize)
	return (y*ChunkSize+z)*ChunkSize + x
}

func (ch *chunk) get(c geom.Int3) uint16 {
	if i := ch.index(c); i >= 0 {
		return ch.cells[i]
	}
	return 0
}

func (ch *chunk) set(c geom.Int3, id uint16, offset uint32) bool {
	i := ch.index(c)
	if i < 0 {
		return false
	}
	ch.cells[i] = id
	if offset == 0 {
		delete(ch.offsets, i)
	} else {
		ch.offsets[i] = offset
	}
	return true
}

func (ch *chunk) offset(c geom.Int3) uint32 {
	if i := ch.index(c); i >= 0 {
		return ch.offsets[i]
	}
	return 0
}
