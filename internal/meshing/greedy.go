package meshing

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/willf/bitset"

	"voxelgen/internal/world"
)

// BlockInfo answers the per-block questions the mesher needs.
type BlockInfo interface {
	Visibility(id world.BlockID) world.Visibility
	IsWater(id world.BlockID) bool
}

// Pass selects which faces a build emits.
type Pass uint8

const (
	// PassSolid emits every face except water faces.
	PassSolid Pass = iota
	// PassWater emits water faces only.
	PassWater
	// PassAll emits every face.
	PassAll
)

// Params describe the resolution of a build.
type Params struct {
	ChunkSize int
	SampleRes int // blocks per volume cell
	MeshRes   int // volume cells pooled into one mesh cell
	LOD       int
	BlockSize float32 // world units per block
	Origin    mgl32.Vec3
}

func (p Params) validate(v *world.BlockVolume) (cells int, err error) {
	if p.SampleRes <= 0 || p.ChunkSize%p.SampleRes != 0 {
		return 0, fmt.Errorf("meshing: sample resolution %d does not divide chunk size %d", p.SampleRes, p.ChunkSize)
	}
	n := p.ChunkSize / p.SampleRes
	if v.Side != n+1 {
		return 0, fmt.Errorf("meshing: volume side %d, want %d", v.Side, n+1)
	}
	if p.MeshRes <= 0 || n%p.MeshRes != 0 {
		return 0, fmt.Errorf("meshing: mesh resolution %d does not divide %d cells", p.MeshRes, n)
	}
	return n / p.MeshRes, nil
}

// BuildMesh greedily meshes volume into dst (allocated when nil).
func BuildMesh(volume *world.BlockVolume, db BlockInfo, p Params, pass Pass, dst *MeshBuffers) (*MeshBuffers, error) {
	var m Mesher
	return m.Build(volume, db, p, pass, dst)
}

// Mesher holds scratch space reused across builds. A Mesher must not be
// used by two goroutines at once.
type Mesher struct {
	cells []world.BlockID // pooled grid, side m+1
	side  int
	mask  []uint32
	used  *bitset.BitSet
}

// Mask entries pack the block id, the facing and the double-sided flag.
// Zero means no face.
const (
	maskSet      = 1 << 8
	maskNegative = 1 << 9
	maskDouble   = 1 << 10
)

// Build meshes volume. Each chunk owns the boundary planes 1..m on every
// axis; plane 0 belongs to the negative neighbour, whose last layer is this
// chunk's first.
func (ms *Mesher) Build(volume *world.BlockVolume, db BlockInfo, p Params, pass Pass, dst *MeshBuffers) (*MeshBuffers, error) {
	m, err := p.validate(volume)
	if err != nil {
		return nil, err
	}
	if dst == nil {
		dst = NewMeshBuffers(64)
	} else {
		dst.Reset()
	}
	if p.BlockSize <= 0 {
		p.BlockSize = 1
	}

	ms.pool(volume, m, p.MeshRes)
	if cap(ms.mask) < m*m {
		ms.mask = make([]uint32, m*m)
	}
	ms.mask = ms.mask[:m*m]
	if ms.used == nil || ms.used.Len() < uint(m*m) {
		ms.used = bitset.New(uint(m * m))
	}

	cellSize := float32(p.SampleRes*p.MeshRes) * p.BlockSize
	for d := 0; d < 3; d++ {
		u := (d + 1) % 3
		v := (d + 2) % 3
		for plane := 1; plane <= m; plane++ {
			faces := ms.buildMask(d, u, v, plane, m, db, p.LOD, pass, dst)
			if faces == 0 {
				continue
			}
			ms.merge(d, u, v, plane, m, cellSize, p.Origin, dst)
		}
	}
	return dst, nil
}

// pool fills the mesh-cell grid. Each mesh cell takes the largest block id
// of its r^3 footprint; the footprint of the shared last layer is truncated
// to the single layer the volume holds.
func (ms *Mesher) pool(v *world.BlockVolume, m, r int) {
	side := m + 1
	ms.side = side
	if cap(ms.cells) < side*side*side {
		ms.cells = make([]world.BlockID, side*side*side)
	}
	ms.cells = ms.cells[:side*side*side]
	if r == 1 {
		copy(ms.cells, v.Blocks)
		return
	}
	for z := 0; z < side; z++ {
		z0, z1 := footprint(z, r, v.Side)
		for y := 0; y < side; y++ {
			y0, y1 := footprint(y, r, v.Side)
			for x := 0; x < side; x++ {
				x0, x1 := footprint(x, r, v.Side)
				var best world.BlockID
				for fz := z0; fz < z1; fz++ {
					for fy := y0; fy < y1; fy++ {
						for fx := x0; fx < x1; fx++ {
							if id := v.Blocks[v.Index(fx, fy, fz)]; id > best {
								best = id
							}
						}
					}
				}
				ms.cells[(z*side+y)*side+x] = best
			}
		}
	}
}

func footprint(i, r, side int) (int, int) {
	lo := i * r
	return lo, min(lo+r, side)
}

func (ms *Mesher) cell(x, y, z int) world.BlockID {
	return ms.cells[(z*ms.side+y)*ms.side+x]
}

// at returns the pooled cell with coordinate pd on axis d, pu on u and pv on v.
func (ms *Mesher) at(d, u, v, pd, pu, pv int) world.BlockID {
	var pos [3]int
	pos[d], pos[u], pos[v] = pd, pu, pv
	return ms.cell(pos[0], pos[1], pos[2])
}

func (ms *Mesher) buildMask(d, u, v, plane, m int, db BlockInfo, lod int, pass Pass, dst *MeshBuffers) int {
	faces := 0
	for j := 0; j < m; j++ {
		for i := 0; i < m; i++ {
			a := ms.at(d, u, v, plane-1, i, j)
			b := ms.at(d, u, v, plane, i, j)
			key := faceKey(a, b, db.Visibility(a), db.Visibility(b), lod)
			if key != 0 {
				water := db.IsWater(world.BlockID(key & 0xff))
				switch {
				case pass == PassSolid && water:
					dst.NeedsWaterMesh = true
					key = 0
				case pass == PassWater && !water:
					key = 0
				}
			}
			ms.mask[j*m+i] = key
			if key != 0 {
				faces++
			}
		}
	}
	return faces
}

// faceKey applies the visibility rules to the cell pair (a below the plane,
// b above it).
func faceKey(a, b world.BlockID, va, vb world.Visibility, lod int) uint32 {
	pos := maskSet | uint32(a)
	neg := maskSet | maskNegative | uint32(b)
	switch {
	case va == world.Invisible && vb == world.Invisible:
		return 0
	case va == world.Invisible:
		return neg
	case vb == world.Invisible:
		return pos
	case va == world.Opaque && vb == world.Opaque:
		return 0
	case va == world.Stacked && vb == world.Stacked:
		if lod > 0 {
			return 0
		}
		return pos | maskDouble
	case va == world.Opaque:
		return pos
	case vb == world.Opaque:
		return neg
	case a == b:
		return 0
	default:
		return pos
	}
}

// merge greedily covers the mask with rectangles, width along u first,
// then height along v.
func (ms *Mesher) merge(d, u, v, plane, m int, cellSize float32, origin mgl32.Vec3, dst *MeshBuffers) {
	ms.used.ClearAll()
	for j := 0; j < m; j++ {
		for i := 0; i < m; i++ {
			idx := j*m + i
			key := ms.mask[idx]
			if key == 0 || ms.used.Test(uint(idx)) {
				continue
			}
			w := 1
			for i+w < m && ms.mask[idx+w] == key && !ms.used.Test(uint(idx+w)) {
				w++
			}
			h := 1
		grow:
			for j+h < m {
				row := (j+h)*m + i
				for k := 0; k < w; k++ {
					if ms.mask[row+k] != key || ms.used.Test(uint(row+k)) {
						break grow
					}
				}
				h++
			}
			for jj := j; jj < j+h; jj++ {
				for ii := i; ii < i+w; ii++ {
					ms.used.Set(uint(jj*m + ii))
				}
			}

			id := world.BlockID(key & 0xff)
			negative := key&maskNegative != 0
			emitQuad(dst, d, u, v, plane, i, j, w, h, cellSize, origin, id, negative)
			if key&maskDouble != 0 {
				emitQuad(dst, d, u, v, plane, i, j, w, h, cellSize, origin, id, !negative)
			}
		}
	}
}

// emitQuad appends one rectangle as four vertices and two triangles wound
// counter-clockwise when seen from the side the normal points to.
func emitQuad(dst *MeshBuffers, d, u, v, plane, i, j, w, h int, cellSize float32, origin mgl32.Vec3, id world.BlockID, negative bool) {
	var base, du, dv, normal mgl32.Vec3
	base[d] = float32(plane) * cellSize
	base[u] = float32(i) * cellSize
	base[v] = float32(j) * cellSize
	base = base.Add(origin)
	du[u] = float32(w) * cellSize
	dv[v] = float32(h) * cellSize
	normal[d] = 1

	corners := [4]mgl32.Vec3{base, base.Add(du), base.Add(du).Add(dv), base.Add(dv)}
	uvs := [4]mgl32.Vec2{{0, 0}, {float32(w), 0}, {float32(w), float32(h)}, {0, float32(h)}}
	if negative {
		normal[d] = -1
		corners[1], corners[3] = corners[3], corners[1]
		uvs[1], uvs[3] = uvs[3], uvs[1]
	}

	start := uint32(len(dst.Positions))
	color := mgl32.Vec4{float32(id) / 255, 0, 0, 1}
	for k := 0; k < 4; k++ {
		dst.Positions = append(dst.Positions, corners[k])
		dst.Normals = append(dst.Normals, normal)
		dst.Colors = append(dst.Colors, color)
		dst.UVs = append(dst.UVs, uvs[k])
	}
	dst.Indices = append(dst.Indices, start, start+1, start+2, start, start+2, start+3)
}
