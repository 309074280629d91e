package terrain

import (
	"context"
	"errors"
	"testing"

	"voxelgen/internal/world"
)

// layeredDensity builds a 4-block chunk whose density depends on y only.
func layeredDensity(values []float32) *world.DensityVolume {
	d := world.NewDensityVolume(4, 1)
	d.SampleRes = 1
	for z := 0; z < d.Side; z++ {
		for y := 0; y < d.Side; y++ {
			for x := 0; x < d.Side; x++ {
				d.Samples[d.Index(x, y, z)] = values[y]
			}
		}
	}
	return d
}

func plainsHints() *world.BiomeHints {
	h := world.NewBiomeHints(4, 4)
	for j := 0; j < h.Res; j++ {
		for i := 0; i < h.Res; i++ {
			h.Set(i, j, world.BiomeHint{Primary: world.BiomePlains, Secondary: world.BiomePlains})
		}
	}
	return h
}

func TestClassifyLayers(t *testing.T) {
	density := layeredDensity([]float32{1.0, 0.1, 0.01, -1, -1})
	c := NewClassifier(world.DefaultTables())
	at := Placement{Coord: world.ChunkCoord{}, ChunkSize: 4}

	tests := []struct {
		name       string
		waterLevel int
		want       []world.BlockID
	}{
		{"dry", 0, []world.BlockID{world.BlockStone, world.BlockDirt, world.BlockGrass, world.BlockAir, world.BlockAir}},
		{"flooded", 4, []world.BlockID{world.BlockStone, world.BlockDirt, world.BlockGrass, world.BlockWater, world.BlockAir}},
		{"shore", 3, []world.BlockID{world.BlockStone, world.BlockDirt, world.BlockSand, world.BlockAir, world.BlockAir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := c.Classify(context.Background(), density, plainsHints(), at, tt.waterLevel)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			for y, want := range tt.want {
				for z := 0; z < blocks.Side; z++ {
					for x := 0; x < blocks.Side; x++ {
						if got := blocks.Get(x, y, z); got != want {
							t.Fatalf("(%d,%d,%d) = %d, want %d", x, y, z, got, want)
						}
					}
				}
			}
		})
	}
}

func TestClassifyUsesChunkHeight(t *testing.T) {
	density := layeredDensity([]float32{-1, -1, -1, -1, -1})
	c := NewClassifier(world.DefaultTables())
	at := Placement{Coord: world.ChunkCoord{Y: -1}, ChunkSize: 4}
	blocks, err := c.Classify(context.Background(), density, nil, at, -2)
	if err != nil {
		t.Fatal(err)
	}
	// world y = -4..0; water below -2
	want := []world.BlockID{world.BlockWater, world.BlockWater, world.BlockAir, world.BlockAir, world.BlockAir}
	for y, w := range want {
		if got := blocks.Get(0, y, 0); got != w {
			t.Errorf("y=%d got %d want %d", y, got, w)
		}
	}
}

func TestClassifyErrors(t *testing.T) {
	density := layeredDensity([]float32{1, 1, 1, 1, 1})
	at := Placement{ChunkSize: 4}

	_, err := NewClassifier(&world.Tables{}).Classify(context.Background(), density, nil, at, 0)
	if !errors.Is(err, world.ErrReferenceDataMissing) {
		t.Fatalf("err = %v, want ErrReferenceDataMissing", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewClassifier(world.DefaultTables()).Classify(ctx, density, nil, at, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	wrong := world.NewBlockVolume(8, 1)
	if err := NewClassifier(world.DefaultTables()).ClassifyInto(context.Background(), wrong, density, nil, at, 0); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}
