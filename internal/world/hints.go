package world

// BiomeHint is the per-column biome and terrain selection.
type BiomeHint struct {
	Primary          BiomeID
	Secondary        BiomeID
	Blend            float32 // weight of Secondary in [0,1]
	PrimaryTerrain   TerrainID
	SecondaryTerrain TerrainID
	TerrainBlend     float32 // weight of SecondaryTerrain in [0,1]
}

// DominantBiome returns the biome with the larger weight.
func (h BiomeHint) DominantBiome() BiomeID {
	if h.Blend > 0.5 {
		return h.Secondary
	}
	return h.Primary
}

// DominantTerrain returns the terrain type with the larger weight.
func (h BiomeHint) DominantTerrain() TerrainID {
	if h.TerrainBlend > 0.5 {
		return h.SecondaryTerrain
	}
	return h.PrimaryTerrain
}

// BiomeHints is a coarse Res x Res grid of hints covering a chunk footprint.
// Cells lie on a world-aligned grid of Step blocks; OffsetX and OffsetZ are
// how far the chunk origin sits inside its cell. Chunks sharing a boundary
// column therefore read the same cell for it, whether or not Step divides
// the chunk size.
type BiomeHints struct {
	Res     int
	Step    int
	OffsetX int
	OffsetZ int
	Hints   []BiomeHint
}

// NewBiomeHints allocates a grid covering chunkSize blocks with cells of
// step blocks, with cell 0 starting at the chunk origin.
func NewBiomeHints(chunkSize, step int) *BiomeHints {
	if step <= 0 {
		step = 1
	}
	res := (chunkSize+step-1)/step + 1
	return &BiomeHints{Res: res, Step: step, Hints: make([]BiomeHint, res*res)}
}

// Align shifts the grid so that cell 0 is the world cell containing the
// origin column (originX, originZ).
func (h *BiomeHints) Align(originX, originZ int) {
	h.OffsetX = Mod(originX, h.Step)
	h.OffsetZ = Mod(originZ, h.Step)
}

// At returns the hint covering local block column (x,z). Positions outside
// the footprint clamp to the nearest edge cell.
func (h *BiomeHints) At(x, z int) BiomeHint {
	i := clampCell(FloorDiv(x+h.OffsetX, h.Step), h.Res)
	j := clampCell(FloorDiv(z+h.OffsetZ, h.Step), h.Res)
	return h.Hints[j*h.Res+i]
}

// Set stores the hint for cell (i,j).
func (h *BiomeHints) Set(i, j int, hint BiomeHint) {
	h.Hints[j*h.Res+i] = hint
}

func clampCell(c, res int) int {
	if c < 0 {
		return 0
	}
	if c >= res {
		return res - 1
	}
	return c
}
