package decoration

import (
	"math/rand"

	"voxelgen/internal/world"
)

// Builder receives the voxels a structure generator produces, in world
// block coordinates.
type Builder interface {
	Apply(x, y, z int, id world.BlockID)
}

// Generator stamps one structure whose base sits at world block (x,y,z),
// the first air cell above the spawn surface. Generators draw only from rng
// so identical streams give identical shapes.
type Generator func(b Builder, x, y, z int, rng *rand.Rand)

// Key identifies a generator.
type Key struct {
	Category world.DecorationCategory
	TypeID   int
}

// Noop is the generator of registered but unimplemented decoration types.
func Noop(Builder, int, int, int, *rand.Rand) {}

// Registry maps decoration keys to generators. Unknown keys resolve to Noop.
type Registry struct {
	gens map[Key]Generator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{gens: make(map[Key]Generator)}
}

// Register binds gen to (category, typeID). A nil gen registers Noop.
func (r *Registry) Register(category world.DecorationCategory, typeID int, gen Generator) {
	if gen == nil {
		gen = Noop
	}
	r.gens[Key{Category: category, TypeID: typeID}] = gen
}

// Lookup returns the generator for (category, typeID) and whether it was
// registered.
func (r *Registry) Lookup(category world.DecorationCategory, typeID int) (Generator, bool) {
	gen, ok := r.gens[Key{Category: category, TypeID: typeID}]
	if !ok {
		return Noop, false
	}
	return gen, true
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	return len(r.gens)
}

// DefaultRegistry returns the built-in generator set.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(world.CategoryTree, world.TreeBroadleaf, Broadleaf)
	r.Register(world.CategoryTree, world.TreePine, Pine)
	r.Register(world.CategoryVegetation, world.VegetationGrassTuft, GrassTuft)
	r.Register(world.CategoryVegetation, world.VegetationFlower, Flower)
	r.Register(world.CategoryVegetation, world.VegetationDeadBush, DeadBush)
	r.Register(world.CategoryRock, world.RockBoulder, Boulder)
	r.Register(world.CategoryRock, world.RockSpire, RockSpire)
	r.Register(world.CategoryAlien, world.AlienCrystalSpire, CrystalSpire)
	r.Register(world.CategoryAlien, world.AlienPod, nil)
	return r
}
