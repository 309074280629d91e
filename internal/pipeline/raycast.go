package pipeline

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelgen/internal/world"
)

// RaycastResult is the first solid block along a ray.
type RaycastResult struct {
	Hit      bool
	Block    [3]int // world block position of the hit
	Adjacent [3]int // last empty block before the hit
	ID       world.BlockID
	Distance float32
}

// BlockAt returns the block at a world position from the resident LOD 0
// volumes. ok is false when the owning chunk is not resident.
func (o *Orchestrator) BlockAt(x, y, z int) (id world.BlockID, ok bool) {
	coord, local := world.ChunkForBlock(x, y, z, o.cfg.World.ChunkSize)
	c, found := o.chunks[coord]
	if !found || c.lod != 0 || c.blocks == nil || c.running != StageNone {
		return world.BlockAir, false
	}
	return c.blocks.Get(local.X, local.Y, local.Z), true
}

// Raycast walks the blocks along dir from start, one block boundary at a
// time, and stops at the first block that is neither invisible nor water.
// The walk also stops, without a hit, when it leaves the resident volumes.
func (o *Orchestrator) Raycast(start, dir mgl32.Vec3, maxDist float32) RaycastResult {
	defer o.prof.Track("pipeline.Raycast")()
	if dir.Len() == 0 {
		return RaycastResult{}
	}
	dir = dir.Normalize()

	var pos, step [3]int
	var tMax, tDelta [3]float32
	for i := 0; i < 3; i++ {
		p := float64(start[i])
		pos[i] = int(math.Floor(p))
		d := dir[i]
		switch {
		case d > 0:
			step[i] = 1
			tMax[i] = float32(math.Floor(p)+1-p) / d
			tDelta[i] = 1 / d
		case d < 0:
			step[i] = -1
			tMax[i] = float32(p-math.Floor(p)) / -d
			tDelta[i] = -1 / d
		default:
			tMax[i] = math.MaxFloat32
			tDelta[i] = math.MaxFloat32
		}
	}

	prev := pos
	var t float32
	for t <= maxDist {
		id, ok := o.BlockAt(pos[0], pos[1], pos[2])
		if !ok {
			return RaycastResult{}
		}
		if o.db.Visibility(id) != world.Invisible && !o.db.IsWater(id) {
			return RaycastResult{Hit: true, Block: pos, Adjacent: prev, ID: id, Distance: t}
		}
		prev = pos

		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		pos[axis] += step[axis]
		t = tMax[axis]
		tMax[axis] += tDelta[axis]
	}
	return RaycastResult{}
}
