package terrain

import (
	"math"

	"voxelgen/internal/world"
)

const (
	climateChannel    = 101
	ruggednessChannel = 202
)

// HintSampler derives per-column biome and terrain hints from two
// low-frequency 2D noise fields.
type HintSampler struct {
	noise        *Noise
	tables       *world.Tables
	biomeScale   float64
	terrainScale float64
	step         int
}

// NewHintSampler returns a sampler producing hint cells of step blocks.
func NewHintSampler(noise *Noise, tables *world.Tables, step int) *HintSampler {
	return &HintSampler{
		noise:        noise,
		tables:       tables,
		biomeScale:   1.0 / 400.0,
		terrainScale: 1.0 / 250.0,
		step:         max(step, 1),
	}
}

// Sample returns the hint grid covering the footprint of coord.
func (s *HintSampler) Sample(coord world.ChunkCoord, chunkSize int) (*world.BiomeHints, error) {
	if !s.tables.Ready() {
		return nil, world.ErrReferenceDataMissing
	}
	if !s.noise.Configured() {
		return nil, ErrNoiseNotConfigured
	}
	hints := world.NewBiomeHints(chunkSize, s.step)
	ox, _, oz := coord.Origin(chunkSize)
	hints.Align(ox, oz)
	// Cell 0 starts at the world cell boundary at or below the origin.
	cx, cz := ox-hints.OffsetX, oz-hints.OffsetZ
	for j := 0; j < hints.Res; j++ {
		for i := 0; i < hints.Res; i++ {
			wx := float64(cx + i*s.step + s.step/2)
			wz := float64(cz + j*s.step + s.step/2)
			hints.Set(i, j, s.HintAt(wx, wz))
		}
	}
	return hints, nil
}

// HintAt evaluates the hint for a single world column.
func (s *HintSampler) HintAt(wx, wz float64) world.BiomeHint {
	climate := float32(s.noise.Sample2D(wx*s.biomeScale, wz*s.biomeScale, climateChannel, 2))
	rugged := float32(s.noise.Sample2D(wx*s.terrainScale, wz*s.terrainScale, ruggednessChannel, 2))

	// Value noise clusters around 0.5; stretch it so every biome is reachable.
	climate = stretch(climate)
	rugged = stretch(rugged)

	var h world.BiomeHint
	var p, q int
	var blend float32

	p, q, blend = nearestTwo(len(s.tables.Biomes), climate, func(i int) float32 { return s.tables.Biomes[i].Climate })
	h.Primary, h.Secondary, h.Blend = world.BiomeID(p), world.BiomeID(q), blend

	p, q, blend = nearestTwo(len(s.tables.Terrains), rugged, func(i int) float32 { return s.tables.Terrains[i].Ruggedness })
	h.PrimaryTerrain, h.SecondaryTerrain, h.TerrainBlend = world.TerrainID(p), world.TerrainID(q), blend
	return h
}

func stretch(v float32) float32 {
	v = (v-0.5)*2.2 + 0.5
	return float32(math.Max(0, math.Min(1, float64(v))))
}

// nearestTwo returns the indices of the two entries closest to v and the
// weight of the second one (0 when v sits exactly on the first).
func nearestTwo(n int, v float32, key func(int) float32) (int, int, float32) {
	first, second := 0, 0
	d1, d2 := float32(math.MaxFloat32), float32(math.MaxFloat32)
	for i := 0; i < n; i++ {
		d := key(i) - v
		if d < 0 {
			d = -d
		}
		switch {
		case d < d1:
			second, d2 = first, d1
			first, d1 = i, d
		case d < d2:
			second, d2 = i, d
		}
	}
	if n < 2 || d1+d2 == 0 {
		return first, first, 0
	}
	return first, second, d1 / (d1 + d2)
}
