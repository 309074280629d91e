package terrain

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"voxelgen/internal/world"
)

// Placement locates a volume in the world.
type Placement struct {
	Coord     world.ChunkCoord
	ChunkSize int
}

// Classifier turns density into block ids. Voxels are independent, so Z
// slabs are classified concurrently.
type Classifier struct {
	tables *world.Tables

	// TopThreshold and FillerThreshold split solid density into the biome
	// top layer, the filler layer and deep rock.
	TopThreshold    float32
	FillerThreshold float32
	// Parallelism caps the number of concurrent slabs. Zero means GOMAXPROCS.
	Parallelism int
}

// NewClassifier returns a classifier with default thresholds.
func NewClassifier(tables *world.Tables) *Classifier {
	return &Classifier{
		tables:          tables,
		TopThreshold:    0.03,
		FillerThreshold: 0.15,
	}
}

// Classify allocates a block volume and fills it from density.
func (c *Classifier) Classify(ctx context.Context, density *world.DensityVolume, hints *world.BiomeHints, at Placement, waterLevel int) (*world.BlockVolume, error) {
	dst := world.NewBlockVolume(at.ChunkSize, density.SampleRes)
	if err := c.ClassifyInto(ctx, dst, density, hints, at, waterLevel); err != nil {
		return nil, err
	}
	return dst, nil
}

// ClassifyInto fills dst, which must match density's layout.
func (c *Classifier) ClassifyInto(ctx context.Context, dst *world.BlockVolume, density *world.DensityVolume, hints *world.BiomeHints, at Placement, waterLevel int) error {
	if !c.tables.Ready() {
		return world.ErrReferenceDataMissing
	}
	if dst.Side != density.Side || len(dst.Blocks) != len(density.Samples) {
		return fmt.Errorf("terrain: block buffer side %d does not match density side %d", dst.Side, density.Side)
	}
	res := max(density.SampleRes, 1)
	dst.SampleRes = res
	side := density.Side
	_, oy, _ := at.Coord.Origin(at.ChunkSize)

	limit := c.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for z := 0; z < side; z++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for x := 0; x < side; x++ {
				var h world.BiomeHint
				if hints != nil {
					h = hints.At(x*res, z*res)
				}
				biome := c.tables.Biome(h.DominantBiome())
				terrain := c.tables.Terrain(h.DominantTerrain())
				for y := 0; y < side; y++ {
					i := dst.Index(x, y, z)
					dst.Blocks[i] = c.blockFor(density.Samples[i], oy+y*res, waterLevel, biome, terrain)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Classifier) blockFor(d float32, wy, waterLevel int, biome *world.Biome, terrain *world.TerrainType) world.BlockID {
	switch {
	case d < 0:
		if wy < waterLevel {
			return world.BlockWater
		}
		return world.BlockAir
	case d < c.TopThreshold:
		if wy >= waterLevel-1 && wy <= waterLevel+1 {
			return world.BlockSand
		}
		return biome.TopBlock
	case d < c.FillerThreshold:
		return biome.FillerBlock
	default:
		if terrain.DeepBlock != world.BlockAir {
			return terrain.DeepBlock
		}
		return world.BlockStone
	}
}
