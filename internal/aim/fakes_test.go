package aim

import (
	"time"

	"github.com/aimloc/server/internal/geom"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() int64              { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now += int64(d) }

// fakeWorld treats 16x16 columns as partitions.
type fakeWorld struct {
	solid     map[geom.Int3]string
	offsets   map[geom.Int3]uint32
	unloaded  map[[2]int]bool
	panicType bool
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		solid:    map[geom.Int3]string{},
		offsets:  map[geom.Int3]uint32{},
		unloaded: map[[2]int]bool{},
	}
}

func column(c geom.Int3) [2]int {
	return [2]int{geom.FloorDiv(c.X, 16), geom.FloorDiv(c.Z, 16)}
}

func (w *fakeWorld) Resident(_ geom.RegionID, c geom.Int3) bool { return !w.unloaded[column(c)] }

func (w *fakeWorld) Solid(r geom.RegionID, c geom.Int3) bool {
	if !w.Resident(r, c) {
		return false
	}
	_, ok := w.solid[c]
	return ok
}

func (w *fakeWorld) PartOffset(_ geom.RegionID, c geom.Int3) uint32 { return w.offsets[c] }

func (w *fakeWorld) CellType(_ geom.RegionID, c geom.Int3) string {
	if w.panicType {
		panic("palette missing")
	}
	return w.solid[c]
}

type fakeActor struct {
	handle any
	region geom.RegionID
	eye    geom.Vec3
	look   geom.Vec3
}

func (a *fakeActor) Handle() any           { return a.handle }
func (a *fakeActor) Region() geom.RegionID { return a.region }
func (a *fakeActor) Eye() geom.Vec3        { return a.eye }
func (a *fakeActor) Look() geom.Vec3       { return a.look }

type playerRef struct {
	UUID string
}

// lookingDownAt places an actor 2.5 cells above c, looking straight down.
func lookingDownAt(id string, c geom.Int3) *fakeActor {
	return &fakeActor{
		handle: playerRef{UUID: id},
		region: "R",
		eye:    geom.Vec3{X: float64(c.X) + 0.5, Y: float64(c.Y) + 2.5, Z: float64(c.Z) + 0.5},
		look:   geom.Vec3{Y: -1},
	}
}
