package world

// DensityVolume is a corner-sampled scalar grid for one chunk at one LOD.
// Positive or zero density is solid.
type DensityVolume struct {
	Side      int
	SampleRes int
	Samples   []float32
}

// BlockVolume is a corner-sampled block-id grid with the same layout as
// DensityVolume. The last layer on each axis duplicates the first layer of
// the positive neighbour.
type BlockVolume struct {
	Side      int
	SampleRes int
	Blocks    []BlockID
}

// VolumeSide returns the corner-sampled side length for a chunk size and
// sample resolution.
func VolumeSide(chunkSize, sampleRes int) int {
	return chunkSize/sampleRes + 1
}

// NewDensityVolume allocates a zeroed density volume.
func NewDensityVolume(chunkSize, sampleRes int) *DensityVolume {
	side := VolumeSide(chunkSize, sampleRes)
	return &DensityVolume{Side: side, SampleRes: sampleRes, Samples: make([]float32, side*side*side)}
}

// Index returns the flat index of (x,y,z).
func (d *DensityVolume) Index(x, y, z int) int {
	return (z*d.Side+y)*d.Side + x
}

// At returns the sample at (x,y,z).
func (d *DensityVolume) At(x, y, z int) float32 {
	return d.Samples[d.Index(x, y, z)]
}

// NewBlockVolume allocates an all-air block volume.
func NewBlockVolume(chunkSize, sampleRes int) *BlockVolume {
	side := VolumeSide(chunkSize, sampleRes)
	return &BlockVolume{Side: side, SampleRes: sampleRes, Blocks: make([]BlockID, side*side*side)}
}

// Index returns the flat index of (x,y,z).
func (v *BlockVolume) Index(x, y, z int) int {
	return (z*v.Side+y)*v.Side + x
}

// InBounds reports whether (x,y,z) lies inside the volume.
func (v *BlockVolume) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < v.Side && y < v.Side && z < v.Side
}

// Get returns the block at (x,y,z), or air outside the volume.
func (v *BlockVolume) Get(x, y, z int) BlockID {
	if !v.InBounds(x, y, z) {
		return BlockAir
	}
	return v.Blocks[v.Index(x, y, z)]
}

// Set writes the block at (x,y,z). Out-of-range writes are ignored and
// reported as false.
func (v *BlockVolume) Set(x, y, z int, id BlockID) bool {
	if !v.InBounds(x, y, z) {
		return false
	}
	v.Blocks[v.Index(x, y, z)] = id
	return true
}

// Clear resets every voxel to air.
func (v *BlockVolume) Clear() {
	clear(v.Blocks)
}

// Clone returns a deep copy.
func (v *BlockVolume) Clone() *BlockVolume {
	out := &BlockVolume{Side: v.Side, SampleRes: v.SampleRes, Blocks: make([]BlockID, len(v.Blocks))}
	copy(out.Blocks, v.Blocks)
	return out
}
