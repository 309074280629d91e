package writes

import (
	"fmt"

	"voxelgen/internal/world"
)

// Mode is the overwrite policy of a pending write.
type Mode uint8

const (
	// Replace always overwrites.
	Replace Mode = iota
	// ReplaceIfAir only writes into air.
	ReplaceIfAir
	// ReplaceIfSoft writes into air or a soft block (foliage, water).
	ReplaceIfSoft
)

func (m Mode) String() string {
	switch m {
	case Replace:
		return "replace"
	case ReplaceIfAir:
		return "replace-if-air"
	case ReplaceIfSoft:
		return "replace-if-soft"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// PendingWrite is a deferred single-voxel edit addressed to a chunk.
type PendingWrite struct {
	Target   world.ChunkCoord
	Local    world.LocalPos
	Block    world.BlockID
	Mode     Mode
	IsMirror bool
}

func (w PendingWrite) String() string {
	m := ""
	if w.IsMirror {
		m = " mirror"
	}
	return fmt.Sprintf("%v%v=%d %v%s", w.Target, w.Local, w.Block, w.Mode, m)
}

// Allows reports whether m permits replacing current. soft may be nil.
func (m Mode) Allows(current world.BlockID, soft func(world.BlockID) bool) bool {
	switch m {
	case ReplaceIfAir:
		return current == world.BlockAir
	case ReplaceIfSoft:
		return current == world.BlockAir || (soft != nil && soft(current))
	default:
		return true
	}
}

// Mirrors returns the copies of w owed to the negative neighbours that share
// its voxel. A voxel on the minimum face of an axis is also the last
// (chunkSize) layer of the neighbour below on that axis; voxels on an edge
// or corner are shared by up to seven neighbours. Mirror writes are never
// mirrored again.
func Mirrors(w PendingWrite, chunkSize int) []PendingWrite {
	if w.IsMirror {
		return nil
	}
	var onMin [3]bool
	shared := false
	for axis := 0; axis < 3; axis++ {
		onMin[axis] = w.Local.Axis(axis) == 0
		shared = shared || onMin[axis]
	}
	if !shared {
		return nil
	}

	var out []PendingWrite
	for mask := 1; mask < 8; mask++ {
		target := w.Target
		local := w.Local
		valid := true
		for axis := 0; axis < 3; axis++ {
			if mask&(1<<axis) == 0 {
				continue
			}
			if !onMin[axis] {
				valid = false
				break
			}
			switch axis {
			case 0:
				target.X--
				local.X = chunkSize
			case 1:
				target.Y--
				local.Y = chunkSize
			case 2:
				target.Z--
				local.Z = chunkSize
			}
		}
		if !valid {
			continue
		}
		out = append(out, PendingWrite{
			Target:   target,
			Local:    local,
			Block:    w.Block,
			Mode:     w.Mode,
			IsMirror: true,
		})
	}
	return out
}
