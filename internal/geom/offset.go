package geom

// Part offsets of composite structures are packed into one uint32:
// bits 0-7 X, 8-15 Y, 16-23 Z, each a two's complement int8.
// A packed value of zero marks a cell that is its own anchor.

const offsetMask = 0xFF

// PackOffset packs a per-axis offset. Components outside int8 range are truncated.
func PackOffset(o Int3) uint32 {
	return uint32(uint8(int8(o.X))) |
		uint32(uint8(int8(o.Y)))<<8 |
		uint32(uint8(int8(o.Z)))<<16
}

// UnpackOffset is the inverse of PackOffset.
func UnpackOffset(p uint32) Int3 {
	return Int3{
		X: int(int8(p & offsetMask)),
		Y: int(int8((p >> 8) & offsetMask)),
		Z: int(int8((p >> 16) & offsetMask)),
	}
}

// AnchorOf returns the anchor cell of the structure that cell belongs to.
func AnchorOf(cell Int3, packed uint32) Int3 {
	if packed == 0 {
		return cell
	}
	return cell.Sub(UnpackOffset(packed))
}
