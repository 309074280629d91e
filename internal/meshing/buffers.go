package meshing

import "github.com/go-gl/mathgl/mgl32"

// MeshBuffers holds indexed triangle geometry for one chunk and pass.
// Colour R encodes the block id as id/255.
type MeshBuffers struct {
	Positions []mgl32.Vec3
	Indices   []uint32
	Normals   []mgl32.Vec3
	Colors    []mgl32.Vec4
	UVs       []mgl32.Vec2

	// NeedsWaterMesh is set by the solid pass when water faces were skipped.
	NeedsWaterMesh bool
}

// NewMeshBuffers allocates buffers sized for about quads quads.
func NewMeshBuffers(quads int) *MeshBuffers {
	v := quads * 4
	return &MeshBuffers{
		Positions: make([]mgl32.Vec3, 0, v),
		Indices:   make([]uint32, 0, quads*6),
		Normals:   make([]mgl32.Vec3, 0, v),
		Colors:    make([]mgl32.Vec4, 0, v),
		UVs:       make([]mgl32.Vec2, 0, v),
	}
}

// Reset empties the buffers and keeps their capacity.
func (m *MeshBuffers) Reset() {
	m.Positions = m.Positions[:0]
	m.Indices = m.Indices[:0]
	m.Normals = m.Normals[:0]
	m.Colors = m.Colors[:0]
	m.UVs = m.UVs[:0]
	m.NeedsWaterMesh = false
}

// QuadCount returns the number of emitted quads.
func (m *MeshBuffers) QuadCount() int {
	return len(m.Indices) / 6
}

// VertexCount returns the number of vertices.
func (m *MeshBuffers) VertexCount() int {
	return len(m.Positions)
}

// Empty reports whether no geometry was emitted.
func (m *MeshBuffers) Empty() bool {
	return len(m.Indices) == 0
}

// BufferPool recycles MeshBuffers. It is not safe for concurrent use.
type BufferPool struct {
	free  []*MeshBuffers
	limit int
}

// NewBufferPool keeps at most limit idle buffers.
func NewBufferPool(limit int) *BufferPool {
	return &BufferPool{limit: limit}
}

// Get returns an empty buffer.
func (p *BufferPool) Get() *MeshBuffers {
	if n := len(p.free); n > 0 {
		m := p.free[n-1]
		p.free = p.free[:n-1]
		return m
	}
	return NewMeshBuffers(256)
}

// Put returns m to the pool.
func (p *BufferPool) Put(m *MeshBuffers) {
	if m == nil || len(p.free) >= p.limit {
		return
	}
	m.Reset()
	p.free = append(p.free, m)
}

// Idle returns the number of pooled buffers.
func (p *BufferPool) Idle() int {
	return len(p.free)
}
