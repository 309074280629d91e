package decoration

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"voxelgen/internal/world"
)

type voxel struct {
	X, Y, Z int
	ID      world.BlockID
}

// recorder collects generator output in emission order.
type recorder struct {
	voxels []voxel
}

func (r *recorder) Apply(x, y, z int, id world.BlockID) {
	r.voxels = append(r.voxels, voxel{x, y, z, id})
}

func TestGeneratorsDeterministic(t *testing.T) {
	reg := DefaultRegistry()
	keys := []Key{
		{world.CategoryTree, world.TreeBroadleaf},
		{world.CategoryTree, world.TreePine},
		{world.CategoryVegetation, world.VegetationGrassTuft},
		{world.CategoryVegetation, world.VegetationFlower},
		{world.CategoryVegetation, world.VegetationDeadBush},
		{world.CategoryRock, world.RockBoulder},
		{world.CategoryRock, world.RockSpire},
		{world.CategoryAlien, world.AlienCrystalSpire},
	}
	for _, k := range keys {
		gen, ok := reg.Lookup(k.Category, k.TypeID)
		if !ok {
			t.Fatalf("%v/%d not registered", k.Category, k.TypeID)
		}
		var a, b recorder
		gen(&a, 10, 20, -30, rand.New(rand.NewSource(7)))
		gen(&b, 10, 20, -30, rand.New(rand.NewSource(7)))
		if len(a.voxels) == 0 {
			t.Errorf("%v/%d produced no voxels", k.Category, k.TypeID)
		}
		if diff := cmp.Diff(a.voxels, b.voxels); diff != "" {
			t.Errorf("%v/%d not deterministic:\n%s", k.Category, k.TypeID, diff)
		}
	}
}

func TestTreesStartWithTrunk(t *testing.T) {
	for name, gen := range map[string]Generator{"pine": Pine, "broadleaf": Broadleaf} {
		var r recorder
		gen(&r, 0, 0, 0, rand.New(rand.NewSource(1)))
		if r.voxels[0] != (voxel{0, 0, 0, world.BlockLog}) {
			t.Errorf("%s: first voxel %+v, want log at origin", name, r.voxels[0])
		}
	}
}

func TestRegistryNoopEntries(t *testing.T) {
	reg := DefaultRegistry()
	gen, ok := reg.Lookup(world.CategoryAlien, world.AlienPod)
	if !ok {
		t.Fatalf("alien pod should be an explicit entry")
	}
	var r recorder
	gen(&r, 0, 0, 0, rand.New(rand.NewSource(1)))
	if len(r.voxels) != 0 {
		t.Fatalf("no-op generator wrote %d voxels", len(r.voxels))
	}
	if _, ok := reg.Lookup(world.CategoryTree, 1234); ok {
		t.Fatalf("unknown key reported as registered")
	}
	if reg.Len() != 9 {
		t.Fatalf("registry has %d entries, want 9", reg.Len())
	}
}
