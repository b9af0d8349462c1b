package model

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// BlockPos is an integer block coordinate in a world.
// Value type, passed by value.
type BlockPos struct {
	X int
	Y int
	Z int
}

// NewBlockPos creates a BlockPos with the given coordinates.
func NewBlockPos(x, y, z int) BlockPos {
	return BlockPos{X: x, Y: y, Z: z}
}

// BlockOf returns the block containing the continuous position p.
func BlockOf(p r3.Vec) BlockPos {
	return BlockPos{
		X: int(math.Floor(p.X)),
		Y: int(math.Floor(p.Y)),
		Z: int(math.Floor(p.Z)),
	}
}

// Vec returns the block's minimum corner as a vector.
func (b BlockPos) Vec() r3.Vec {
	return r3.Vec{X: float64(b.X), Y: float64(b.Y), Z: float64(b.Z)}
}

// Add returns b shifted by (dx, dy, dz).
func (b BlockPos) Add(dx, dy, dz int) BlockPos {
	return BlockPos{X: b.X + dx, Y: b.Y + dy, Z: b.Z + dz}
}

// DistanceSquared returns the squared distance to other (no sqrt).
func (b BlockPos) DistanceSquared(other BlockPos) int64 {
	dx := int64(b.X - other.X)
	dy := int64(b.Y - other.Y)
	dz := int64(b.Z - other.Z)
	return dx*dx + dy*dy + dz*dz
}

// Box is an axis-aligned cuboid of blocks. Both corners are inclusive.
type Box struct {
	Min BlockPos
	Max BlockPos
}

// NewBox builds a Box from two arbitrary corners.
func NewBox(a, b BlockPos) Box {
	return Box{
		Min: BlockPos{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: BlockPos{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p BlockPos) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Volume returns the number of blocks in the box.
func (b Box) Volume() int64 {
	return int64(b.Max.X-b.Min.X+1) * int64(b.Max.Y-b.Min.Y+1) * int64(b.Max.Z-b.Min.Z+1)
}

// OverlapsXZ reports whether the box intersects the column [lo, hi] on the X and Z axes.
// Height is ignored.
func (b Box) OverlapsXZ(lo, hi BlockPos) bool {
	return b.Min.X <= hi.X && b.Max.X >= lo.X &&
		b.Min.Z <= hi.Z && b.Max.Z >= lo.Z
}
