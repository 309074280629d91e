package decoration

import (
	"math/rand"

	"voxelgen/internal/world"
)

const decorationSalt = 600

// chunkSeed mixes the world seed with a chunk coordinate.
func chunkSeed(worldSeed int64, c world.ChunkCoord) int64 {
	return worldSeed ^ (int64(c.X)*341873128712 + int64(c.Y)*198491317 + int64(c.Z)*132897987541 + decorationSalt)
}

// newChunkRand returns the decoration stream of a chunk. The same world
// seed and coordinate always yield the same sequence.
func newChunkRand(worldSeed int64, c world.ChunkCoord) *rand.Rand {
	return rand.New(rand.NewSource(chunkSeed(worldSeed, c)))
}
