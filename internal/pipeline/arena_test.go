package pipeline

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelgen/internal/config"
	"voxelgen/internal/world"
)

func TestArenaRentReturn(t *testing.T) {
	lods := []config.LODConfig{{SampleRes: 1}, {SampleRes: 4}}
	a := NewArena(16, lods, 1)

	d := a.RentDensity(1)
	if d.Side != 5 || d.SampleRes != 4 {
		t.Fatalf("density side %d res %d", d.Side, d.SampleRes)
	}
	b0, b1 := a.RentBlocks(0), a.RentBlocks(0)
	m := a.RentMesh(0)
	if a.Outstanding(KindBlocks) != 2 || a.Outstanding(KindDensity) != 1 || a.Outstanding(KindMesh) != 1 {
		t.Fatalf("outstanding = %d/%d/%d", a.Outstanding(KindDensity), a.Outstanding(KindBlocks), a.Outstanding(KindMesh))
	}

	a.ReturnDensity(1, d)
	a.ReturnBlocks(0, b0)
	a.ReturnBlocks(0, b1)
	a.ReturnMesh(0, m)
	a.ReturnMesh(0, nil)
	for _, k := range []BufferKind{KindDensity, KindBlocks, KindMesh} {
		if n := a.Outstanding(k); n != 0 {
			t.Fatalf("%v outstanding = %d", k, n)
		}
	}
	// The idle limit is one per LOD and kind.
	if a.Idle(0, KindBlocks) != 1 || a.Idle(1, KindDensity) != 1 || a.Idle(0, KindMesh) != 1 {
		t.Fatalf("idle counts wrong")
	}
	if got := a.RentBlocks(0); got != b0 {
		t.Fatalf("arena did not reuse the pooled volume")
	}

	a.Clear()
	if a.Idle(1, KindDensity) != 0 {
		t.Fatalf("Clear kept idle buffers")
	}
}

func TestPointViewer(t *testing.T) {
	v := NewPointViewer(mgl32.Vec3{8, 8, 8}, 16)
	if d := v.ChunkDistance(world.ChunkCoord{}); d != 0 {
		t.Fatalf("distance to own chunk centre = %v", d)
	}
	if d := v.ChunkDistance(world.ChunkCoord{X: 2}); math.Abs(d-2) > 1e-6 {
		t.Fatalf("distance = %v, want 2", d)
	}

	v.SetPosition(mgl32.Vec3{-0.5, 17, -16})
	if got, want := v.Chunk(), (world.ChunkCoord{X: -1, Y: 1, Z: -1}); got != want {
		t.Fatalf("Chunk() = %v, want %v", got, want)
	}
}
