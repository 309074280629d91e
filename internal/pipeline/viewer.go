package pipeline

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"voxelgen/internal/world"
)

// Viewer answers distance queries for force-generation, LOD selection and
// culling.
type Viewer interface {
	// ChunkDistance returns the distance from the viewer to the centre of c,
	// in chunks.
	ChunkDistance(c world.ChunkCoord) float64
}

// PointViewer is a viewer at a world position. The position may be moved
// from another goroutine.
type PointViewer struct {
	mu        sync.RWMutex
	pos       mgl32.Vec3
	chunkSize int
}

// NewPointViewer places a viewer at pos.
func NewPointViewer(pos mgl32.Vec3, chunkSize int) *PointViewer {
	return &PointViewer{pos: pos, chunkSize: max(chunkSize, 1)}
}

// SetPosition moves the viewer.
func (v *PointViewer) SetPosition(pos mgl32.Vec3) {
	v.mu.Lock()
	v.pos = pos
	v.mu.Unlock()
}

// Position returns the current position.
func (v *PointViewer) Position() mgl32.Vec3 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pos
}

// Chunk returns the chunk containing the viewer.
func (v *PointViewer) Chunk() world.ChunkCoord {
	p := v.Position()
	c, _ := world.ChunkForBlock(floor(p.X()), floor(p.Y()), floor(p.Z()), v.chunkSize)
	return c
}

func (v *PointViewer) ChunkDistance(c world.ChunkCoord) float64 {
	d := c.Center(v.chunkSize).Sub(v.Position()).Len()
	return float64(d) / float64(v.chunkSize)
}

func floor(f float32) int {
	i := int(f)
	if f < 0 && float32(i) != f {
		i--
	}
	return i
}
