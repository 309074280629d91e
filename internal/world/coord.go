package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ChunkCoord identifies a chunk on the cubic chunk lattice.
type ChunkCoord struct {
	X, Y, Z int
}

// LocalPos is a voxel position relative to a chunk origin.
type LocalPos struct {
	X, Y, Z int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Add returns the coordinate offset by (dx,dy,dz) chunks.
func (c ChunkCoord) Add(dx, dy, dz int) ChunkCoord {
	return ChunkCoord{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

// Origin returns the world block position of the chunk's minimum corner.
func (c ChunkCoord) Origin(chunkSize int) (int, int, int) {
	return c.X * chunkSize, c.Y * chunkSize, c.Z * chunkSize
}

// Center returns the world-space centre of the chunk.
func (c ChunkCoord) Center(chunkSize int) mgl32.Vec3 {
	half := float32(chunkSize) / 2
	return mgl32.Vec3{
		float32(c.X*chunkSize) + half,
		float32(c.Y*chunkSize) + half,
		float32(c.Z*chunkSize) + half,
	}
}

// ChebyshevDistance returns the largest per-axis chunk distance between c and o.
func (c ChunkCoord) ChebyshevDistance(o ChunkCoord) int {
	return max(abs(c.X-o.X), abs(c.Y-o.Y), abs(c.Z-o.Z))
}

// Less orders coordinates by X, then Y, then Z. Used wherever iteration
// order has to be deterministic.
func (c ChunkCoord) Less(o ChunkCoord) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

func (p LocalPos) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Axis returns the component of p along axis 0 (X), 1 (Y) or 2 (Z).
func (p LocalPos) Axis(axis int) int {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// ChunkForBlock returns the chunk owning world block (x,y,z) and the
// block's position inside it.
func ChunkForBlock(x, y, z, chunkSize int) (ChunkCoord, LocalPos) {
	return ChunkCoord{
			X: FloorDiv(x, chunkSize),
			Y: FloorDiv(y, chunkSize),
			Z: FloorDiv(z, chunkSize),
		}, LocalPos{
			X: Mod(x, chunkSize),
			Y: Mod(y, chunkSize),
			Z: Mod(z, chunkSize),
		}
}

// FloorDiv divides rounding towards negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Mod returns the non-negative remainder of a/b.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
