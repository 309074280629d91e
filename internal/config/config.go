package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full generator configuration.
type Config struct {
	World    WorldConfig    `yaml:"world"`
	LODs     []LODConfig    `yaml:"lods"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// WorldConfig controls the noise field and terrain shaping.
type WorldConfig struct {
	Seed        int64   `yaml:"seed"`
	ChunkSize   int     `yaml:"chunk_size"`
	Frequency   float64 `yaml:"frequency"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity"`
	WaterLevel  int     `yaml:"water_level"`
	WorldHeight int     `yaml:"world_height"`
	// Shaping is "curves" or "biome".
	Shaping  string `yaml:"shaping"`
	HintStep int    `yaml:"hint_step"`
}

// LODConfig is one level of detail. Index 0 is the nearest.
type LODConfig struct {
	SampleRes   int     `yaml:"sample_res"`
	MeshRes     int     `yaml:"mesh_res"`
	BlockSize   float32 `yaml:"block_size"`
	MaxDistance float64 `yaml:"max_distance"`
}

// PipelineConfig sizes the orchestrator.
type PipelineConfig struct {
	Workers               int     `yaml:"workers"`
	QueueSize             int     `yaml:"queue_size"`
	MaxInFlight           int     `yaml:"max_in_flight"`
	MaxConcurrentDensity  int     `yaml:"max_concurrent_density"`
	MaxCompletionsPerTick int     `yaml:"max_completions_per_tick"`
	ForceGenerateDistance float64 `yaml:"force_generate_distance"`
	CullDistance          float64 `yaml:"cull_distance"`
	ViewDistance          float64 `yaml:"view_distance"`
	KeepFarVolumes        bool    `yaml:"keep_far_volumes"`
}

// Load reads and validates a YAML config file. Missing keys keep their
// defaults; unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fills optional zero values.
func (c *Config) Validate() error {
	w := &c.World
	if w.ChunkSize <= 0 {
		return fmt.Errorf("world.chunk_size must be positive")
	}
	if w.Frequency <= 0 {
		return fmt.Errorf("world.frequency must be positive")
	}
	if w.Octaves <= 0 {
		w.Octaves = 1
	}
	if w.WorldHeight <= 0 {
		return fmt.Errorf("world.world_height must be positive")
	}
	switch w.Shaping {
	case "":
		w.Shaping = ShapingCurves
	case ShapingCurves, ShapingBiome:
	default:
		return fmt.Errorf("world.shaping %q unknown, want %q or %q", w.Shaping, ShapingCurves, ShapingBiome)
	}
	if w.HintStep <= 0 {
		w.HintStep = 4
	}

	if len(c.LODs) == 0 {
		return fmt.Errorf("lods cannot be empty")
	}
	if c.LODs[0].SampleRes != 1 {
		return fmt.Errorf("lods[0].sample_res must be 1, got %d", c.LODs[0].SampleRes)
	}
	for i := range c.LODs {
		l := &c.LODs[i]
		if l.SampleRes <= 0 || w.ChunkSize%l.SampleRes != 0 {
			return fmt.Errorf("lods[%d].sample_res %d must divide chunk_size %d", i, l.SampleRes, w.ChunkSize)
		}
		if l.MeshRes <= 0 {
			l.MeshRes = 1
		}
		if (w.ChunkSize/l.SampleRes)%l.MeshRes != 0 {
			return fmt.Errorf("lods[%d].mesh_res %d must divide %d cells", i, l.MeshRes, w.ChunkSize/l.SampleRes)
		}
		if l.BlockSize <= 0 {
			l.BlockSize = 1
		}
		if i > 0 && l.MaxDistance <= c.LODs[i-1].MaxDistance {
			return fmt.Errorf("lods[%d].max_distance must be greater than lods[%d]", i, i-1)
		}
	}

	p := &c.Pipeline
	if p.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive")
	}
	if p.QueueSize <= 0 {
		p.QueueSize = p.Workers * 64
	}
	if p.MaxInFlight <= 0 {
		p.MaxInFlight = p.QueueSize
	}
	if p.MaxConcurrentDensity <= 0 {
		p.MaxConcurrentDensity = p.Workers
	}
	if p.MaxCompletionsPerTick <= 0 {
		return fmt.Errorf("pipeline.max_completions_per_tick must be positive")
	}
	if p.ForceGenerateDistance < 0 {
		return fmt.Errorf("pipeline.force_generate_distance cannot be negative")
	}
	if p.ViewDistance <= 0 {
		p.ViewDistance = c.LODs[len(c.LODs)-1].MaxDistance
	}
	if p.CullDistance <= 0 {
		p.CullDistance = p.ViewDistance + 2
	}
	if p.CullDistance < p.ViewDistance {
		return fmt.Errorf("pipeline.cull_distance %.1f is inside view_distance %.1f", p.CullDistance, p.ViewDistance)
	}
	return nil
}

// LODFor returns the index of the first level whose MaxDistance covers
// distance, or the last level.
func (c *Config) LODFor(distance float64) int {
	for i, l := range c.LODs {
		if distance <= l.MaxDistance {
			return i
		}
	}
	return len(c.LODs) - 1
}
