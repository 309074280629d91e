package export

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"

	"voxelgen/internal/meshing"
	"voxelgen/internal/registry"
	"voxelgen/internal/world"
)

// Group is one named mesh of an OBJ file.
type Group struct {
	Name string
	Mesh *meshing.MeshBuffers
}

// BlockID decodes the block id stored in a vertex colour.
func BlockID(c float32) world.BlockID {
	return world.BlockID(math.Round(float64(c) * 255))
}

// WriteOBJ writes groups as Wavefront OBJ. Vertex colours use the
// non-standard "v x y z r g b" form with the block colour from db.
func WriteOBJ(w io.Writer, groups []Group, db *registry.Database) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# voxelgen chunk mesh")

	base := 1
	for _, g := range groups {
		m := g.Mesh
		if m == nil || m.Empty() {
			continue
		}
		fmt.Fprintf(bw, "o %s\n", g.Name)
		for i, p := range m.Positions {
			rgb := [3]float32{1, 0, 1}
			if def := db.Get(BlockID(m.Colors[i].X())); def != nil {
				rgb = [3]float32{def.Color.X(), def.Color.Y(), def.Color.Z()}
			}
			fmt.Fprintf(bw, "v %g %g %g %.3f %.3f %.3f\n", p.X(), p.Y(), p.Z(), rgb[0], rgb[1], rgb[2])
		}
		for _, uv := range m.UVs {
			fmt.Fprintf(bw, "vt %g %g\n", uv.X(), uv.Y())
		}
		for _, n := range m.Normals {
			fmt.Fprintf(bw, "vn %g %g %g\n", n.X(), n.Y(), n.Z())
		}
		for i := 0; i+2 < len(m.Indices); i += 3 {
			a := int(m.Indices[i]) + base
			b := int(m.Indices[i+1]) + base
			c := int(m.Indices[i+2]) + base
			fmt.Fprintf(bw, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", a, a, a, b, b, b, c, c, c)
		}
		base += len(m.Positions)
	}
	return bw.Flush()
}

// WriteOBJCompressed writes the OBJ through a zstd encoder.
func WriteOBJCompressed(w io.Writer, groups []Group, db *registry.Database) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("export: zstd writer: %w", err)
	}
	if err := WriteOBJ(zw, groups, db); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
