package geom

import (
	"fmt"
	"math"
)

// RegionID identifies the spatial partition (world) coordinates are relative to.
// The zero value means "no region".
type RegionID string

func (r RegionID) Valid() bool { return r != "" }

// Regioner is implemented by opaque region references (world objects) so that
// they can be recognised while walking an unknown object graph.
type Regioner interface {
	RegionID() RegionID
}

// Int3 is an integer cell coordinate.
type Int3 struct {
	X, Y, Z int
}

func (a Int3) Add(b Int3) Int3 { return Int3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Int3) Sub(b Int3) Int3 { return Int3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Int3) IsZero() bool    { return a == Int3{} }

func (a Int3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", a.X, a.Y, a.Z)
}

// Vec3 is a world-space vector.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Len() float64         { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Normalize returns the unit vector, or the zero vector when v has no length.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Cell returns the cell containing the point. The point must be in range;
// use CellOK for untrusted input.
func (v Vec3) Cell() Int3 {
	return Int3{int(math.Floor(v.X)), int(math.Floor(v.Y)), int(math.Floor(v.Z))}
}

// CellOK is Cell for untrusted points. It fails when any axis is not finite
// or its floor does not fit in an int.
func (v Vec3) CellOK() (Int3, bool) {
	x, okX := FloorInt(v.X)
	y, okY := FloorInt(v.Y)
	z, okZ := FloorInt(v.Z)
	if !okX || !okY || !okZ {
		return Int3{}, false
	}
	return Int3{x, y, z}, true
}

// FloorInt floors f into an int, failing for NaN, infinities and values
// outside [math.MinInt, math.MaxInt].
func FloorInt(f float64) (int, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	f = math.Floor(f)
	// -math.MinInt is 2^63 (2^31 on 32-bit), exactly representable; MaxInt is not.
	if f < math.MinInt || f >= -math.MinInt {
		return 0, false
	}
	return int(f), true
}

// Location is a resolved cell in a region. A Location handed to callers
// always carries a valid region.
type Location struct {
	Region  RegionID
	X, Y, Z int
}

func LocationAt(region RegionID, c Int3) Location {
	return Location{Region: region, X: c.X, Y: c.Y, Z: c.Z}
}

func (l Location) Cell() Int3 { return Int3{l.X, l.Y, l.Z} }

func (l Location) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", l.Region, l.X, l.Y, l.Z)
}

// FloorDiv divides rounding toward negative infinity. b > 0.
func FloorDiv(a, b int) int {
	q := a / b
	if r := a % b; r < 0 {
		q--
	}
	return q
}

// Mod returns a non-negative remainder. b > 0.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
