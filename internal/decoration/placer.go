package decoration

import (
	"fmt"
	"math/rand"

	"github.com/willf/bitset"

	"voxelgen/internal/world"
	"voxelgen/internal/writes"
)

// ErrReferenceDataMissing is returned when decoration is requested before
// the biome tables are available.
var ErrReferenceDataMissing = world.ErrReferenceDataMissing

// Placer stamps biome decorations onto full-resolution block volumes.
type Placer struct {
	tables     *world.Tables
	registry   *Registry
	chunkSize  int
	waterLevel int
}

// NewPlacer creates a placer. A nil registry uses DefaultRegistry.
func NewPlacer(tables *world.Tables, registry *Registry, chunkSize, waterLevel int) *Placer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Placer{
		tables:     tables,
		registry:   registry,
		chunkSize:  chunkSize,
		waterLevel: waterLevel,
	}
}

// Decorate mutates volume in place and returns the writes that fall into
// other chunks, plus the boundary mirrors of writes that landed on a
// minimum face of this chunk. Each owned column receives at most one
// structure.
func (p *Placer) Decorate(coord world.ChunkCoord, volume *world.BlockVolume, hints *world.BiomeHints, worldSeed int64) ([]writes.PendingWrite, error) {
	if !p.tables.Ready() {
		return nil, ErrReferenceDataMissing
	}
	if volume.SampleRes != 1 || volume.Side != p.chunkSize+1 {
		return nil, fmt.Errorf("decoration: volume side %d at sample resolution %d is not full resolution for chunk size %d",
			volume.Side, volume.SampleRes, p.chunkSize)
	}

	rng := newChunkRand(worldSeed, coord)
	ox, oy, oz := coord.Origin(p.chunkSize)
	s := &stamp{coord: coord, chunkSize: p.chunkSize, volume: volume}

	cs := p.chunkSize
	decorated := bitset.New(uint(cs * cs))
	for lz := 0; lz < cs; lz++ {
		for lx := 0; lx < cs; lx++ {
			col := uint(lz*cs + lx)
			for ly := 0; ly < cs && !decorated.Test(col); ly++ {
				surface := volume.Get(lx, ly, lz)
				if surface == world.BlockAir || surface == world.BlockWater {
					continue
				}
				if volume.Get(lx, ly+1, lz) != world.BlockAir {
					continue
				}
				wy := oy + ly
				if wy < p.waterLevel {
					continue
				}
				var hint world.BiomeHint
				if hints != nil {
					hint = hints.At(lx, lz)
				}
				biome := p.tables.Biome(hint.DominantBiome())
				if p.spawn(s, biome, surface, ox+lx, wy+1, oz+lz, rng) {
					decorated.Set(col)
				}
			}
		}
	}
	return s.writes, nil
}

// spawn walks the biome's decoration table. Every rule consumes one roll so
// the stream stays aligned regardless of which rule fires.
func (p *Placer) spawn(s *stamp, biome *world.Biome, surface world.BlockID, x, y, z int, rng *rand.Rand) bool {
	for _, rule := range biome.Decorations {
		roll := rng.Float64()
		if roll >= rule.Chance || !rule.CanSpawnOn(surface) {
			continue
		}
		gen, _ := p.registry.Lookup(rule.Category, rule.TypeID)
		gen(s, x, y, z, rng)
		return true
	}
	return false
}

// stamp is the Builder handed to generators for one Decorate call.
type stamp struct {
	coord     world.ChunkCoord
	chunkSize int
	volume    *world.BlockVolume
	writes    []writes.PendingWrite
}

// Apply routes one structure voxel. Voxels owned by this chunk are written
// directly when the cell is air; the rest become pending writes.
func (s *stamp) Apply(x, y, z int, id world.BlockID) {
	target, local := world.ChunkForBlock(x, y, z, s.chunkSize)
	w := writes.PendingWrite{Target: target, Local: local, Block: id, Mode: writes.ReplaceIfAir}
	if target != s.coord {
		s.writes = append(s.writes, w)
		return
	}
	if s.volume.Get(local.X, local.Y, local.Z) != world.BlockAir {
		return
	}
	s.volume.Set(local.X, local.Y, local.Z, id)
	s.writes = append(s.writes, writes.Mirrors(w, s.chunkSize)...)
}
