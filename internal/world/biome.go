package world

import "errors"

// ErrReferenceDataMissing is returned when biome or terrain tables are used
// before they have been loaded.
var ErrReferenceDataMissing = errors.New("world: biome/terrain reference data not initialised")

// BiomeID indexes Tables.Biomes.
type BiomeID uint8

// TerrainID indexes Tables.Terrains.
type TerrainID uint8

// DecorationCategory groups structure generators.
type DecorationCategory uint8

const (
	CategoryTree DecorationCategory = iota
	CategoryVegetation
	CategoryRock
	CategoryAlien
)

func (c DecorationCategory) String() string {
	switch c {
	case CategoryTree:
		return "tree"
	case CategoryVegetation:
		return "vegetation"
	case CategoryRock:
		return "rock"
	case CategoryAlien:
		return "alien"
	default:
		return "unknown"
	}
}

// DecorationRule is one row of a biome's decoration table.
type DecorationRule struct {
	Category DecorationCategory
	TypeID   int
	Chance   float64   // per eligible surface cell
	SpawnOn  []BlockID // allowed surface blocks
}

// CanSpawnOn reports whether id is in the rule's allowed-spawn-block set.
func (r DecorationRule) CanSpawnOn(id BlockID) bool {
	for _, b := range r.SpawnOn {
		if b == id {
			return true
		}
	}
	return false
}

// Biome defines surface materials, shaping and decorations of a climate zone.
type Biome struct {
	ID          BiomeID
	Name        string
	Climate     float32 // position on the [0,1] climate axis used for selection
	TopBlock    BlockID
	FillerBlock BlockID
	Amplitude   float32 // noise scale in the biome shaping mode
	Bias        float32 // density offset in the biome shaping mode
	Decorations []DecorationRule
}

// TerrainType is a baked density curve indexed by normalised world height.
type TerrainType struct {
	ID         TerrainID
	Name       string
	Ruggedness float32 // position on the [0,1] terrain axis used for selection
	Curve      []float32
	DeepBlock  BlockID
}

// Tables is the read-only biome and terrain reference data shared by every
// stage.
type Tables struct {
	Biomes   []Biome
	Terrains []TerrainType
}

// Ready reports whether the reference data is usable.
func (t *Tables) Ready() bool {
	return t != nil && len(t.Biomes) > 0 && len(t.Terrains) > 0
}

// Biome returns the biome with the given id, falling back to the first entry.
func (t *Tables) Biome(id BiomeID) *Biome {
	if int(id) < len(t.Biomes) {
		return &t.Biomes[id]
	}
	return &t.Biomes[0]
}

// Terrain returns the terrain type with the given id, falling back to the
// first entry.
func (t *Tables) Terrain(id TerrainID) *TerrainType {
	if int(id) < len(t.Terrains) {
		return &t.Terrains[id]
	}
	return &t.Terrains[0]
}

// SampleCurve linearly interpolates a baked curve at t in [0,1].
func SampleCurve(curve []float32, t float32) float32 {
	if len(curve) == 0 {
		return 0
	}
	if len(curve) == 1 || t <= 0 {
		return curve[0]
	}
	if t >= 1 {
		return curve[len(curve)-1]
	}
	pos := t * float32(len(curve)-1)
	i := int(pos)
	frac := pos - float32(i)
	return curve[i] + (curve[i+1]-curve[i])*frac
}

const (
	BiomeOcean BiomeID = iota
	BiomePlains
	BiomeForest
	BiomeTaiga
	BiomeDesert
	BiomeBadlands
	BiomeAlien
)

const (
	TerrainLowlands TerrainID = iota
	TerrainHills
	TerrainMountains
)

// DefaultTables returns the built-in biome and terrain set.
func DefaultTables() *Tables {
	grassy := []BlockID{BlockGrass}
	return &Tables{
		Biomes: []Biome{
			{
				ID: BiomeOcean, Name: "Ocean", Climate: 0.0,
				TopBlock: BlockSand, FillerBlock: BlockGravel,
				Amplitude: 0.6, Bias: -0.35,
			},
			{
				ID: BiomePlains, Name: "Plains", Climate: 0.2,
				TopBlock: BlockGrass, FillerBlock: BlockDirt,
				Amplitude: 0.5, Bias: 0.0,
				Decorations: []DecorationRule{
					{Category: CategoryVegetation, TypeID: VegetationGrassTuft, Chance: 0.12, SpawnOn: grassy},
					{Category: CategoryVegetation, TypeID: VegetationFlower, Chance: 0.02, SpawnOn: grassy},
					{Category: CategoryTree, TypeID: TreeBroadleaf, Chance: 0.002, SpawnOn: grassy},
				},
			},
			{
				ID: BiomeForest, Name: "Forest", Climate: 0.35,
				TopBlock: BlockGrass, FillerBlock: BlockDirt,
				Amplitude: 0.7, Bias: 0.05,
				Decorations: []DecorationRule{
					{Category: CategoryTree, TypeID: TreeBroadleaf, Chance: 0.02, SpawnOn: grassy},
					{Category: CategoryTree, TypeID: TreePine, Chance: 0.006, SpawnOn: grassy},
					{Category: CategoryVegetation, TypeID: VegetationGrassTuft, Chance: 0.08, SpawnOn: grassy},
					{Category: CategoryRock, TypeID: RockBoulder, Chance: 0.002, SpawnOn: []BlockID{BlockGrass, BlockDirt}},
				},
			},
			{
				ID: BiomeTaiga, Name: "Taiga", Climate: 0.5,
				TopBlock: BlockSnow, FillerBlock: BlockDirt,
				Amplitude: 0.8, Bias: 0.1,
				Decorations: []DecorationRule{
					{Category: CategoryTree, TypeID: TreePine, Chance: 0.025, SpawnOn: []BlockID{BlockSnow, BlockGrass}},
					{Category: CategoryRock, TypeID: RockBoulder, Chance: 0.004, SpawnOn: []BlockID{BlockSnow}},
				},
			},
			{
				ID: BiomeDesert, Name: "Desert", Climate: 0.65,
				TopBlock: BlockSand, FillerBlock: BlockSand,
				Amplitude: 0.4, Bias: 0.0,
				Decorations: []DecorationRule{
					{Category: CategoryRock, TypeID: RockBoulder, Chance: 0.003, SpawnOn: []BlockID{BlockSand}},
					{Category: CategoryVegetation, TypeID: VegetationDeadBush, Chance: 0.01, SpawnOn: []BlockID{BlockSand}},
				},
			},
			{
				ID: BiomeBadlands, Name: "Badlands", Climate: 0.8,
				TopBlock: BlockGravel, FillerBlock: BlockStone,
				Amplitude: 1.1, Bias: 0.15,
				Decorations: []DecorationRule{
					{Category: CategoryRock, TypeID: RockSpire, Chance: 0.004, SpawnOn: []BlockID{BlockGravel}},
				},
			},
			{
				ID: BiomeAlien, Name: "Alien", Climate: 1.0,
				TopBlock: BlockMoss, FillerBlock: BlockAlienRock,
				Amplitude: 0.9, Bias: 0.05,
				Decorations: []DecorationRule{
					{Category: CategoryAlien, TypeID: AlienCrystalSpire, Chance: 0.01, SpawnOn: []BlockID{BlockMoss}},
					{Category: CategoryAlien, TypeID: AlienPod, Chance: 0.01, SpawnOn: []BlockID{BlockMoss}},
				},
			},
		},
		Terrains: []TerrainType{
			{
				ID: TerrainLowlands, Name: "Lowlands", Ruggedness: 0.0,
				Curve:     []float32{1.0, 0.6, 0.15, -0.2, -0.6, -1.0, -1.4, -1.8},
				DeepBlock: BlockStone,
			},
			{
				ID: TerrainHills, Name: "Hills", Ruggedness: 0.5,
				Curve:     []float32{1.0, 0.7, 0.4, 0.1, -0.2, -0.6, -1.1, -1.6},
				DeepBlock: BlockStone,
			},
			{
				ID: TerrainMountains, Name: "Mountains", Ruggedness: 1.0,
				Curve:     []float32{1.2, 0.9, 0.7, 0.45, 0.2, -0.1, -0.5, -1.0},
				DeepBlock: BlockStone,
			},
		},
	}
}

// Decoration type ids understood by the built-in generator registry.
const (
	TreeBroadleaf = iota
	TreePine
)

const (
	VegetationGrassTuft = iota
	VegetationFlower
	VegetationDeadBush
)

const (
	RockBoulder = iota
	RockSpire
)

const (
	AlienCrystalSpire = iota
	AlienPod
)
