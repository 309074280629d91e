package registry

import (
	"fmt"
	"sort"

	"voxelgen/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

// BlockDefinition defines the properties of a block type
type BlockDefinition struct {
	ID         world.BlockID
	Name       string
	Visibility world.Visibility
	// Soft blocks may be overwritten by ReplaceIfSoft writes (foliage, snow layers).
	Soft  bool
	Water bool
	Color mgl32.Vec4
}

// Database is the block lookup table used by the classifier, the write
// router and the mesher. It is filled once and read concurrently afterwards.
type Database struct {
	defs  [256]*BlockDefinition
	names map[string]world.BlockID
}

// NewDatabase returns an empty database that only knows air.
func NewDatabase() *Database {
	db := &Database{names: make(map[string]world.BlockID)}
	db.mustRegister(&BlockDefinition{ID: world.BlockAir, Name: "air", Visibility: world.Invisible, Soft: true})
	return db
}

// Register adds a block definition. Registering an id twice is an error.
func (db *Database) Register(def *BlockDefinition) error {
	if def == nil {
		return fmt.Errorf("registry: nil block definition")
	}
	if existing := db.defs[def.ID]; existing != nil {
		return fmt.Errorf("registry: block id %d already registered as %q", def.ID, existing.Name)
	}
	if _, ok := db.names[def.Name]; ok {
		return fmt.Errorf("registry: block name %q already registered", def.Name)
	}
	db.defs[def.ID] = def
	db.names[def.Name] = def.ID
	return nil
}

func (db *Database) mustRegister(def *BlockDefinition) {
	if err := db.Register(def); err != nil {
		panic(err)
	}
}

// Get returns the definition for id, or nil when unknown.
func (db *Database) Get(id world.BlockID) *BlockDefinition {
	return db.defs[id]
}

// Lookup resolves a block by name.
func (db *Database) Lookup(name string) (world.BlockID, bool) {
	id, ok := db.names[name]
	return id, ok
}

// Visibility returns the meshing class of id. Unknown ids are opaque so
// that a bad id shows up instead of silently punching holes.
func (db *Database) Visibility(id world.BlockID) world.Visibility {
	if def := db.defs[id]; def != nil {
		return def.Visibility
	}
	return world.Opaque
}

// IsSoft reports whether id may be replaced by a ReplaceIfSoft write.
func (db *Database) IsSoft(id world.BlockID) bool {
	if def := db.defs[id]; def != nil {
		return def.Soft
	}
	return false
}

// IsWater reports whether id is rendered by the water pass.
func (db *Database) IsWater(id world.BlockID) bool {
	if def := db.defs[id]; def != nil {
		return def.Water
	}
	return false
}

// Names returns the registered block names in id order.
func (db *Database) Names() []string {
	out := make([]string, 0, len(db.names))
	for name := range db.names {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return db.names[out[i]] < db.names[out[j]] })
	return out
}

func rgba(hex uint32, alpha float32) mgl32.Vec4 {
	return mgl32.Vec4{
		float32((hex>>16)&0xFF) / 255,
		float32((hex>>8)&0xFF) / 255,
		float32(hex&0xFF) / 255,
		alpha,
	}
}

// Default returns the database for the built-in block set.
func Default() *Database {
	db := NewDatabase()

	db.mustRegister(&BlockDefinition{ID: world.BlockStone, Name: "stone", Visibility: world.Opaque, Color: rgba(0x7F7F7F, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockDirt, Name: "dirt", Visibility: world.Opaque, Color: rgba(0x86603E, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockGrass, Name: "grass", Visibility: world.Opaque, Color: rgba(0x7DBE4C, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockSand, Name: "sand", Visibility: world.Opaque, Color: rgba(0xDBCE8E, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockGravel, Name: "gravel", Visibility: world.Opaque, Color: rgba(0x8A817C, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockSnow, Name: "snow", Visibility: world.Opaque, Color: rgba(0xF0FAFA, 1)})

	// Water is translucent so that the seabed stays visible and the surface
	// merges into one sheet.
	db.mustRegister(&BlockDefinition{ID: world.BlockWater, Name: "water", Visibility: world.Translucent, Soft: true, Water: true, Color: rgba(0x2F5DD8, 0.6)})
	db.mustRegister(&BlockDefinition{ID: world.BlockIce, Name: "ice", Visibility: world.Translucent, Color: rgba(0xA0C4FF, 0.8)})
	db.mustRegister(&BlockDefinition{ID: world.BlockGlass, Name: "glass", Visibility: world.Translucent, Color: rgba(0xDDEEFF, 0.3)})

	db.mustRegister(&BlockDefinition{ID: world.BlockLog, Name: "log", Visibility: world.Opaque, Color: rgba(0x6B4F2A, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockLeaves, Name: "leaves", Visibility: world.Stacked, Soft: true, Color: rgba(0x3C8F2F, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockPineNeedles, Name: "pine_needles", Visibility: world.Stacked, Soft: true, Color: rgba(0x2D5E3A, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockTallGrass, Name: "tall_grass", Visibility: world.Stacked, Soft: true, Color: rgba(0x6FAE3F, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockFlower, Name: "flower", Visibility: world.Stacked, Soft: true, Color: rgba(0xE0C341, 1)})

	db.mustRegister(&BlockDefinition{ID: world.BlockBoulder, Name: "boulder", Visibility: world.Opaque, Color: rgba(0x6E6E6E, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockMoss, Name: "moss", Visibility: world.Opaque, Color: rgba(0x5CA38A, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockAlienRock, Name: "alien_rock", Visibility: world.Opaque, Color: rgba(0x4B3A6B, 1)})
	db.mustRegister(&BlockDefinition{ID: world.BlockAlienCrystal, Name: "alien_crystal", Visibility: world.Translucent, Color: rgba(0xB46CFF, 0.7)})

	return db
}
