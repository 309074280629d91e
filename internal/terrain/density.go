package terrain

import (
	"fmt"
	"math"

	"voxelgen/internal/world"
)

// ShapingMode selects how hints shape the raw noise.
type ShapingMode string

const (
	// ShapingCurves blends two terrain-type density curves per column.
	ShapingCurves ShapingMode = "curves"
	// ShapingBiome applies a per-column amplitude and bias.
	ShapingBiome ShapingMode = "biome"
)

// DensityOptions tune the shaping step.
type DensityOptions struct {
	Mode             ShapingMode
	WorldHeight      int     // normalises world Y for curve lookups
	SurfaceHeight    int     // zero crossing of the biome gradient
	GradientStrength float64 // blocks per unit of biome gradient
}

// DensityGenerator produces corner-sampled density volumes. It holds no
// mutable state and may be shared between workers.
type DensityGenerator struct {
	noise  *Noise
	tables *world.Tables
	opts   DensityOptions
}

// NewDensityGenerator creates a generator. Zero option fields take defaults.
func NewDensityGenerator(noise *Noise, tables *world.Tables, opts DensityOptions) *DensityGenerator {
	if opts.Mode == "" {
		opts.Mode = ShapingCurves
	}
	if opts.WorldHeight <= 0 {
		opts.WorldHeight = 256
	}
	if opts.SurfaceHeight == 0 {
		opts.SurfaceHeight = opts.WorldHeight / 4
	}
	if opts.GradientStrength <= 0 {
		opts.GradientStrength = 32
	}
	return &DensityGenerator{noise: noise, tables: tables, opts: opts}
}

// Generate allocates and fills a density volume for coord.
func (g *DensityGenerator) Generate(coord world.ChunkCoord, chunkSize int, frequency float64, sampleRes int, hints *world.BiomeHints) (*world.DensityVolume, error) {
	dst := world.NewDensityVolume(chunkSize, sampleRes)
	if err := g.GenerateInto(dst, coord, chunkSize, frequency, sampleRes, hints); err != nil {
		return nil, err
	}
	return dst, nil
}

// GenerateInto fills dst, which must have been sized for chunkSize and
// sampleRes. Sample i on each axis sits at world block (origin+i)*sampleRes,
// so every resolution samples the same field.
func (g *DensityGenerator) GenerateInto(dst *world.DensityVolume, coord world.ChunkCoord, chunkSize int, frequency float64, sampleRes int, hints *world.BiomeHints) error {
	if !g.noise.Configured() {
		return ErrNoiseNotConfigured
	}
	if !g.tables.Ready() {
		return world.ErrReferenceDataMissing
	}
	if sampleRes <= 0 || chunkSize%sampleRes != 0 {
		return fmt.Errorf("terrain: sample resolution %d does not divide chunk size %d", sampleRes, chunkSize)
	}
	side := world.VolumeSide(chunkSize, sampleRes)
	if dst.Side != side || len(dst.Samples) != side*side*side {
		return fmt.Errorf("terrain: density buffer side %d, want %d", dst.Side, side)
	}
	dst.SampleRes = sampleRes

	ox := coord.X * chunkSize / sampleRes
	oy := coord.Y * chunkSize / sampleRes
	oz := coord.Z * chunkSize / sampleRes

	for z := 0; z < side; z++ {
		wz := (oz + z) * sampleRes
		for x := 0; x < side; x++ {
			wx := (ox + x) * sampleRes
			col := g.column(hints, x*sampleRes, z*sampleRes)
			for y := 0; y < side; y++ {
				wy := (oy + y) * sampleRes
				n := g.noise.Sample3D(float64(wx)*frequency, float64(wy)*frequency, float64(wz)*frequency, 0)
				dst.Samples[dst.Index(x, y, z)] = float32(g.shape(n, wy, col))
			}
		}
	}
	return nil
}

// columnShape caches the per-column blend inputs.
type columnShape struct {
	curveA, curveB []float32
	curveBlend     float64
	amplitude      float64
	bias           float64
}

func (g *DensityGenerator) column(hints *world.BiomeHints, lx, lz int) columnShape {
	var h world.BiomeHint
	if hints != nil {
		h = hints.At(lx, lz)
	}
	a := g.tables.Biome(h.Primary)
	b := g.tables.Biome(h.Secondary)
	blend := float64(h.Blend)
	return columnShape{
		curveA:     g.tables.Terrain(h.PrimaryTerrain).Curve,
		curveB:     g.tables.Terrain(h.SecondaryTerrain).Curve,
		curveBlend: float64(h.TerrainBlend),
		amplitude:  lerp(float64(a.Amplitude), float64(b.Amplitude), blend),
		bias:       lerp(float64(a.Bias), float64(b.Bias), blend),
	}
}

func (g *DensityGenerator) shape(n float64, wy int, col columnShape) float64 {
	switch g.opts.Mode {
	case ShapingBiome:
		gradient := float64(wy-g.opts.SurfaceHeight) / g.opts.GradientStrength
		return n*col.amplitude + col.bias - gradient
	default:
		t := float32(math.Max(0, math.Min(1, float64(wy)/float64(g.opts.WorldHeight))))
		a := float64(world.SampleCurve(col.curveA, t))
		b := float64(world.SampleCurve(col.curveB, t))
		return n + lerp(a, b, col.curveBlend)
	}
}
