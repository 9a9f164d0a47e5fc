package aim

import (
	"math"

	"github.com/aimloc/server/internal/geom"
)

// DefaultRange is the aim probe length in world units.
const DefaultRange = 5.0

// WorldView is the slice of the spatial partition store the sampler reads.
// Implementations never load partitions on demand.
type WorldView interface {
	Resident(region geom.RegionID, cell geom.Int3) bool
	Solid(region geom.RegionID, cell geom.Int3) bool
	PartOffset(region geom.RegionID, cell geom.Int3) uint32
	CellType(region geom.RegionID, cell geom.Int3) string
}

// castRay walks cells along dir (voxel DDA) and returns the first solid cell
// within maxDist of origin.
func castRay(w WorldView, region geom.RegionID, origin, dir geom.Vec3, maxDist float64) (geom.Int3, bool) {
	dir = dir.Normalize()
	if dir == (geom.Vec3{}) || !finite(dir) || maxDist <= 0 {
		return geom.Int3{}, false
	}
	cell, ok := origin.CellOK()
	if !ok {
		return geom.Int3{}, false
	}
	if w.Solid(region, cell) {
		return cell, true
	}

	stepX, tMaxX, tDeltaX := axisStep(origin.X, dir.X)
	stepY, tMaxY, tDeltaY := axisStep(origin.Y, dir.Y)
	stepZ, tMaxZ, tDeltaZ := axisStep(origin.Z, dir.Z)

	for {
		var t float64
		switch {
		case tMaxX <= tMaxY && tMaxX <= tMaxZ:
			t = tMaxX
			cell.X += stepX
			tMaxX += tDeltaX
		case tMaxY <= tMaxZ:
			t = tMaxY
			cell.Y += stepY
			tMaxY += tDeltaY
		default:
			t = tMaxZ
			cell.Z += stepZ
			tMaxZ += tDeltaZ
		}
		if t > maxDist {
			return geom.Int3{}, false
		}
		if w.Solid(region, cell) {
			return cell, true
		}
	}
}

// axisStep returns the step direction, the ray distance to the first cell
// boundary, and the distance between boundaries along one axis.
func axisStep(origin, d float64) (step int, tMax, tDelta float64) {
	switch {
	case d > 0:
		return 1, (math.Floor(origin) + 1 - origin) / d, 1 / d
	case d < 0:
		return -1, (origin - math.Floor(origin)) / -d, 1 / -d
	}
	return 0, math.Inf(1), math.Inf(1)
}

func finite(v geom.Vec3) bool {
	return !math.IsNaN(v.X+v.Y+v.Z) && !math.IsInf(v.X+v.Y+v.Z, 0)
}
