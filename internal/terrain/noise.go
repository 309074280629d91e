package terrain

import (
	"errors"
	"math"
)

// ErrNoiseNotConfigured is returned when a generator runs before its noise
// backend has been configured.
var ErrNoiseNotConfigured = errors.New("terrain: noise backend not configured")

// Noise is a seeded, deterministic fractal value-noise backend. The zero
// value is unconfigured. After Configure it is read-only and safe for
// concurrent use.
type Noise struct {
	seed        int64
	octaves     int
	persistence float64
	lacunarity  float64
	configured  bool
}

// NoiseParams describes the fractal layering.
type NoiseParams struct {
	Seed        int64
	Octaves     int
	Persistence float64
	Lacunarity  float64
}

// NewNoise returns a configured backend.
func NewNoise(p NoiseParams) *Noise {
	n := &Noise{}
	n.Configure(p)
	return n
}

// Configure sets the parameters. Octaves below one are raised to one.
func (n *Noise) Configure(p NoiseParams) {
	n.seed = p.Seed
	n.octaves = max(p.Octaves, 1)
	n.persistence = p.Persistence
	if n.persistence <= 0 {
		n.persistence = 0.5
	}
	n.lacunarity = p.Lacunarity
	if n.lacunarity <= 0 {
		n.lacunarity = 2.0
	}
	n.configured = true
}

// Configured reports whether Configure has been called.
func (n *Noise) Configured() bool {
	return n != nil && n.configured
}

// Seed returns the configured seed.
func (n *Noise) Seed() int64 {
	return n.seed
}

// Sample3D returns fractal noise in [-1,1] at (x,y,z). channel selects an
// independent field for the same seed.
func (n *Noise) Sample3D(x, y, z float64, channel int64) float64 {
	return octaveNoise3D(x, y, z, n.seed+channel*7919, n.octaves, n.persistence, n.lacunarity)*2 - 1
}

// Sample2D returns fractal noise in [0,1] at (x,z).
func (n *Noise) Sample2D(x, z float64, channel int64, octaves int) float64 {
	return octaveNoise2D(x, z, n.seed+channel*7919, max(octaves, 1), n.persistence, n.lacunarity)
}

// fade is the quintic smoothstep 6t^5 - 15t^4 + 10t^3.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// splitmix finalises a 64-bit hash.
func splitmix(v uint64) uint64 {
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}

func hash2(x, z int64, seed int64) uint64 {
	return splitmix(uint64(x)*0x9E3779B97F4A7C15 + uint64(z)*0x6C62272E07BB0142 + uint64(seed))
}

func hash3(x, y, z int64, seed int64) uint64 {
	return splitmix(uint64(x)*0x9E3779B97F4A7C15 + uint64(y)*0x517CC1B727220A95 + uint64(z)*0x6C62272E07BB0142 + uint64(seed))
}

func unit(h uint64) float64 {
	return float64(h&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

func valueNoise2D(x, z float64, seed int64) float64 {
	x0 := math.Floor(x)
	z0 := math.Floor(z)
	fx := fade(x - x0)
	fz := fade(z - z0)
	ix, iz := int64(x0), int64(z0)

	v00 := unit(hash2(ix, iz, seed))
	v10 := unit(hash2(ix+1, iz, seed))
	v01 := unit(hash2(ix, iz+1, seed))
	v11 := unit(hash2(ix+1, iz+1, seed))

	return lerp(lerp(v00, v10, fx), lerp(v01, v11, fx), fz)
}

func valueNoise3D(x, y, z float64, seed int64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	z0 := math.Floor(z)
	fx := fade(x - x0)
	fy := fade(y - y0)
	fz := fade(z - z0)
	ix, iy, iz := int64(x0), int64(y0), int64(z0)

	v000 := unit(hash3(ix, iy, iz, seed))
	v100 := unit(hash3(ix+1, iy, iz, seed))
	v010 := unit(hash3(ix, iy+1, iz, seed))
	v110 := unit(hash3(ix+1, iy+1, iz, seed))
	v001 := unit(hash3(ix, iy, iz+1, seed))
	v101 := unit(hash3(ix+1, iy, iz+1, seed))
	v011 := unit(hash3(ix, iy+1, iz+1, seed))
	v111 := unit(hash3(ix+1, iy+1, iz+1, seed))

	i00 := lerp(v000, v100, fx)
	i10 := lerp(v010, v110, fx)
	i01 := lerp(v001, v101, fx)
	i11 := lerp(v011, v111, fx)

	return lerp(lerp(i00, i10, fy), lerp(i01, i11, fy), fz)
}

func octaveNoise2D(x, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amplitude, frequency := 1.0, 1.0
	sum, norm := 0.0, 0.0
	for i := range octaves {
		sum += valueNoise2D(x*frequency, z*frequency, seed+int64(i*131)) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

func octaveNoise3D(x, y, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amplitude, frequency := 1.0, 1.0
	sum, norm := 0.0, 0.0
	for i := range octaves {
		sum += valueNoise3D(x*frequency, y*frequency, z*frequency, seed+int64(i*131)) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}
