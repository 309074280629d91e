package pipeline

import (
	"voxelgen/internal/config"
	"voxelgen/internal/meshing"
	"voxelgen/internal/world"
)

// BufferKind names a pooled buffer type.
type BufferKind uint8

const (
	KindDensity BufferKind = iota
	KindBlocks
	KindMesh
)

func (k BufferKind) String() string {
	switch k {
	case KindDensity:
		return "density"
	case KindBlocks:
		return "blocks"
	case KindMesh:
		return "mesh"
	default:
		return "unknown"
	}
}

type arenaKey struct {
	lod  int
	kind BufferKind
}

// Arena pools stage buffers by LOD and kind. Every rent is matched by a
// return. It is only touched from the tick goroutine.
type Arena struct {
	chunkSize int
	lods      []config.LODConfig
	limit     int

	density map[int][]*world.DensityVolume
	blocks  map[int][]*world.BlockVolume
	meshes  map[int]*meshing.BufferPool
	rented  map[arenaKey]int
}

// NewArena keeps at most limit idle buffers per LOD and kind.
func NewArena(chunkSize int, lods []config.LODConfig, limit int) *Arena {
	return &Arena{
		chunkSize: chunkSize,
		lods:      lods,
		limit:     max(limit, 1),
		density:   make(map[int][]*world.DensityVolume),
		blocks:    make(map[int][]*world.BlockVolume),
		meshes:    make(map[int]*meshing.BufferPool),
		rented:    make(map[arenaKey]int),
	}
}

// RentDensity returns a density volume sized for lod. Its contents are stale.
func (a *Arena) RentDensity(lod int) *world.DensityVolume {
	a.rented[arenaKey{lod, KindDensity}]++
	free := a.density[lod]
	if n := len(free); n > 0 {
		v := free[n-1]
		a.density[lod] = free[:n-1]
		return v
	}
	return world.NewDensityVolume(a.chunkSize, a.lods[lod].SampleRes)
}

// ReturnDensity hands v back to the pool.
func (a *Arena) ReturnDensity(lod int, v *world.DensityVolume) {
	if v == nil {
		return
	}
	a.rented[arenaKey{lod, KindDensity}]--
	if len(a.density[lod]) < a.limit {
		a.density[lod] = append(a.density[lod], v)
	}
}

// RentBlocks returns a block volume sized for lod. Its contents are stale.
func (a *Arena) RentBlocks(lod int) *world.BlockVolume {
	a.rented[arenaKey{lod, KindBlocks}]++
	free := a.blocks[lod]
	if n := len(free); n > 0 {
		v := free[n-1]
		a.blocks[lod] = free[:n-1]
		return v
	}
	return world.NewBlockVolume(a.chunkSize, a.lods[lod].SampleRes)
}

// ReturnBlocks hands v back to the pool.
func (a *Arena) ReturnBlocks(lod int, v *world.BlockVolume) {
	if v == nil {
		return
	}
	a.rented[arenaKey{lod, KindBlocks}]--
	if len(a.blocks[lod]) < a.limit {
		a.blocks[lod] = append(a.blocks[lod], v)
	}
}

func (a *Arena) meshPool(lod int) *meshing.BufferPool {
	p := a.meshes[lod]
	if p == nil {
		p = meshing.NewBufferPool(a.limit)
		a.meshes[lod] = p
	}
	return p
}

// RentMesh returns empty mesh buffers.
func (a *Arena) RentMesh(lod int) *meshing.MeshBuffers {
	a.rented[arenaKey{lod, KindMesh}]++
	return a.meshPool(lod).Get()
}

// ReturnMesh hands m back to the pool.
func (a *Arena) ReturnMesh(lod int, m *meshing.MeshBuffers) {
	if m == nil {
		return
	}
	a.rented[arenaKey{lod, KindMesh}]--
	a.meshPool(lod).Put(m)
}

// Outstanding returns the number of rented buffers of kind across all LODs.
func (a *Arena) Outstanding(kind BufferKind) int {
	n := 0
	for k, v := range a.rented {
		if k.kind == kind {
			n += v
		}
	}
	return n
}

// Idle returns the number of pooled buffers of kind at lod.
func (a *Arena) Idle(lod int, kind BufferKind) int {
	switch kind {
	case KindDensity:
		return len(a.density[lod])
	case KindBlocks:
		return len(a.blocks[lod])
	default:
		if p := a.meshes[lod]; p != nil {
			return p.Idle()
		}
		return 0
	}
}

// Clear drops every idle buffer.
func (a *Arena) Clear() {
	clear(a.density)
	clear(a.blocks)
	clear(a.meshes)
}
