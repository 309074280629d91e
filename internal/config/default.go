package config

// Shaping modes.
const (
	ShapingCurves = "curves"
	ShapingBiome  = "biome"
)

// Default returns a configuration that passes Validate.
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Seed:        1337,
			ChunkSize:   32,
			Frequency:   1.0 / 48.0,
			Octaves:     4,
			Persistence: 0.5,
			Lacunarity:  2.0,
			WaterLevel:  48,
			WorldHeight: 256,
			Shaping:     ShapingCurves,
			HintStep:    4,
		},
		LODs: []LODConfig{
			{SampleRes: 1, MeshRes: 1, BlockSize: 1, MaxDistance: 4},
			{SampleRes: 2, MeshRes: 1, BlockSize: 1, MaxDistance: 8},
			{SampleRes: 4, MeshRes: 2, BlockSize: 1, MaxDistance: 16},
		},
		Pipeline: PipelineConfig{
			Workers:               4,
			QueueSize:             256,
			MaxInFlight:           128,
			MaxConcurrentDensity:  2,
			MaxCompletionsPerTick: 8,
			ForceGenerateDistance: 3,
			CullDistance:          18,
			ViewDistance:          16,
		},
	}
}
