package world

// BlockID is the one-byte block type stored per voxel corner. 0 is air.
type BlockID uint8

const (
	BlockAir BlockID = iota
	BlockStone
	BlockDirt
	BlockGrass
	BlockSand
	BlockGravel
	BlockSnow
	BlockWater
	BlockIce
	BlockLog
	BlockLeaves
	BlockPineNeedles
	BlockTallGrass
	BlockFlower
	BlockBoulder
	BlockMoss
	BlockAlienRock
	BlockAlienCrystal
	BlockGlass
)

// Visibility classifies how a block interacts with its neighbours' faces
// during meshing.
type Visibility uint8

const (
	// Invisible blocks never produce faces and never hide faces (air).
	Invisible Visibility = iota
	// Opaque blocks hide everything behind them.
	Opaque
	// Translucent blocks are see-through but merge with identical neighbours.
	Translucent
	// Stacked blocks are sparse geometry (foliage, grass) drawn double sided.
	Stacked
)

func (v Visibility) String() string {
	switch v {
	case Invisible:
		return "invisible"
	case Opaque:
		return "opaque"
	case Translucent:
		return "translucent"
	case Stacked:
		return "stacked"
	default:
		return "unknown"
	}
}
