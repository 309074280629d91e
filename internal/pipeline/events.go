package pipeline

import (
	"voxelgen/internal/meshing"
	"voxelgen/internal/world"
)

// Stage is one step of the per-chunk chain.
type Stage uint8

const (
	StageNone Stage = iota
	StageDensity
	StageBlocks
	StageDecoration
	StageMesh
)

func (s Stage) String() string {
	switch s {
	case StageDensity:
		return "density"
	case StageBlocks:
		return "blocks"
	case StageDecoration:
		return "decoration"
	case StageMesh:
		return "mesh"
	default:
		return "none"
	}
}

// EventKind identifies a completion event.
type EventKind uint8

const (
	DensityReady EventKind = iota
	BlocksReady
	DecorationReady
	MeshReady
)

func (k EventKind) String() string {
	switch k {
	case DensityReady:
		return "DensityReady"
	case BlocksReady:
		return "BlocksReady"
	case DecorationReady:
		return "DecorationReady"
	case MeshReady:
		return "MeshReady"
	default:
		return "unknown"
	}
}

// Event reports a finished stage. Density, Hints and Blocks are lent for
// the duration of the callback. Solid and Water are owned by the listener
// and go back through Orchestrator.ReleaseMesh.
type Event struct {
	Kind  EventKind
	Coord world.ChunkCoord
	LOD   int

	Density *world.DensityVolume
	Hints   *world.BiomeHints
	Blocks  *world.BlockVolume

	// Writes is the number of pending writes a decoration produced.
	Writes int

	Solid *meshing.MeshBuffers
	// Water is nil when the chunk has no water faces.
	Water *meshing.MeshBuffers
}

// Listener receives events on the goroutine that calls Tick.
type Listener func(Event)
