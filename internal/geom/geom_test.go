package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackOffsetRoundTrip(t *testing.T) {
	for _, o := range []Int3{{1, 0, 0}, {0, 2, 0}, {-1, 3, -4}, {127, -128, 5}} {
		assert.Equal(t, o, UnpackOffset(PackOffset(o)), "offset %v", o)
	}
	assert.Zero(t, PackOffset(Int3{}))
}

func TestAnchorOf(t *testing.T) {
	struck := Int3{10, 64, -3}
	assert.Equal(t, struck, AnchorOf(struck, 0))
	assert.Equal(t, Int3{9, 62, -3}, AnchorOf(struck, PackOffset(Int3{1, 2, 0})))
	assert.Equal(t, Int3{11, 64, -1}, AnchorOf(struck, PackOffset(Int3{-1, 0, -2})))
}

func TestFloorDivMod(t *testing.T) {
	assert.Equal(t, -1, FloorDiv(-1, 16))
	assert.Equal(t, 15, Mod(-1, 16))
	assert.Equal(t, 0, FloorDiv(15, 16))
	assert.Equal(t, -2, FloorDiv(-17, 16))
	assert.Equal(t, 15, Mod(-17, 16))
}

func TestVec3Cell(t *testing.T) {
	assert.Equal(t, Int3{-1, 64, 0}, Vec3{-0.5, 64.9, 0.1}.Cell())
}

func TestVec3CellOK(t *testing.T) {
	c, ok := Vec3{-0.5, 64.9, 0.1}.CellOK()
	assert.True(t, ok)
	assert.Equal(t, Int3{-1, 64, 0}, c)

	for _, v := range []Vec3{
		{1e30, 0, 0},
		{0, -1e30, 0},
		{0, 0, math.Inf(1)},
		{math.NaN(), 0, 0},
		{math.Ldexp(1, 63), 0, 0},
	} {
		_, ok := v.CellOK()
		assert.False(t, ok, "%v", v)
	}
}

func TestFloorInt(t *testing.T) {
	n, ok := FloorInt(-2.5)
	assert.True(t, ok)
	assert.Equal(t, -3, n)

	n, ok = FloorInt(float64(math.MinInt))
	assert.True(t, ok)
	assert.Equal(t, math.MinInt, n)

	_, ok = FloorInt(-float64(math.MinInt))
	assert.False(t, ok)
}
