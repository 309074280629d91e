package export

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"

	"voxelgen/internal/meshing"
	"voxelgen/internal/registry"
	"voxelgen/internal/world"
)

func singleBlockMesh(t *testing.T) *meshing.MeshBuffers {
	t.Helper()
	v := world.NewBlockVolume(4, 1)
	v.Set(1, 1, 1, world.BlockStone)
	m, err := meshing.BuildMesh(v, registry.Default(), meshing.Params{ChunkSize: 4, SampleRes: 1, MeshRes: 1, BlockSize: 1}, meshing.PassAll, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestWriteOBJ(t *testing.T) {
	m := singleBlockMesh(t)
	var buf bytes.Buffer
	groups := []Group{{Name: "solid", Mesh: m}, {Name: "water", Mesh: nil}, {Name: "again", Mesh: m}}
	if err := WriteOBJ(&buf, groups, registry.Default()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	count := func(prefix string) int {
		n := 0
		for _, line := range strings.Split(out, "\n") {
			if strings.HasPrefix(line, prefix) {
				n++
			}
		}
		return n
	}
	if got := count("v "); got != 48 {
		t.Fatalf("vertices = %d, want 48", got)
	}
	if got := count("f "); got != 24 {
		t.Fatalf("faces = %d, want 24", got)
	}
	if got := count("o "); got != 2 {
		t.Fatalf("objects = %d, want 2 (empty group skipped)", got)
	}
	// The second group's indices start after the first group's 24 vertices.
	if !strings.Contains(out, "f 25/25/25 ") {
		t.Fatalf("second group indices not offset")
	}
	if !strings.Contains(out, " 0.498 0.498 0.498\n") {
		t.Fatalf("stone colour missing from vertices")
	}
}

func TestWriteOBJCompressed(t *testing.T) {
	m := singleBlockMesh(t)
	groups := []Group{{Name: "solid", Mesh: m}}

	var plain, packed bytes.Buffer
	if err := WriteOBJ(&plain, groups, registry.Default()); err != nil {
		t.Fatal(err)
	}
	if err := WriteOBJCompressed(&packed, groups, registry.Default()); err != nil {
		t.Fatal(err)
	}

	zr, err := zstd.NewReader(&packed)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain.Bytes()) {
		t.Fatalf("decompressed OBJ differs from plain output")
	}
}

func TestBlockIDRoundTrip(t *testing.T) {
	for _, id := range []world.BlockID{0, 1, 7, 18, 255} {
		c := mgl32.Vec4{float32(id) / 255, 0, 0, 1}
		if got := BlockID(c.X()); got != id {
			t.Fatalf("BlockID(%v) = %d, want %d", c.X(), got, id)
		}
	}
}
