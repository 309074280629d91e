package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"voxelgen/internal/export"
	"voxelgen/internal/pipeline"
	"voxelgen/internal/registry"
	"voxelgen/internal/world"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "generate one chunk and write its mesh as Wavefront OBJ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chunk", Value: "0,1,0", Usage: "chunk coordinate x,y,z"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "output file"},
			&cli.BoolFlag{Name: "zstd", Usage: "zstd-compress the output"},
			&cli.BoolFlag{Name: "water", Usage: "include the water mesh"},
		},
		Action: runExport,
	}
}

func parseCoord(s string) (world.ChunkCoord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return world.ChunkCoord{}, fmt.Errorf("chunk %q: want x,y,z", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return world.ChunkCoord{}, fmt.Errorf("chunk %q: %w", s, err)
		}
		v[i] = n
	}
	return world.ChunkCoord{X: v[0], Y: v[1], Z: v[2]}, nil
}

func runExport(c *cli.Context) error {
	log := newLogger(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	target, err := parseCoord(c.String("chunk"))
	if err != nil {
		return err
	}
	cs := cfg.World.ChunkSize
	db := registry.Default()

	var last *pipeline.Event
	var o *pipeline.Orchestrator
	o, err = pipeline.New(pipeline.Options{
		Config: cfg,
		Tables: world.DefaultTables(),
		Blocks: db,
		Viewer: pipeline.NewPointViewer(target.Center(cs), cs),
		Logger: log,
		Listener: func(ev pipeline.Event) {
			if ev.Kind != pipeline.MeshReady {
				return
			}
			if ev.Coord != target {
				o.ReleaseMesh(ev)
				return
			}
			if last != nil {
				o.ReleaseMesh(*last)
			}
			last = &ev
		},
	})
	if err != nil {
		return err
	}
	defer o.Shutdown()

	// Neighbours are generated so that their decorations spill into the target.
	var coords []world.ChunkCoord
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				coords = append(coords, target.Add(dx, dy, dz))
			}
		}
	}
	st, err := o.Bootstrap(c.Context, coords, 0)
	if err != nil {
		return err
	}
	if last == nil {
		return fmt.Errorf("chunk %v produced no mesh", target)
	}
	log.Info("chunk generated", "chunk", target.String(), "quads", last.Solid.QuadCount(), "writesApplied", st.WritesApplied)

	groups := []export.Group{{Name: "solid", Mesh: last.Solid}}
	if c.Bool("water") && last.Water != nil {
		groups = append(groups, export.Group{Name: "water", Mesh: last.Water})
	}

	f, err := os.Create(c.String("out"))
	if err != nil {
		return err
	}
	if c.Bool("zstd") {
		err = export.WriteOBJCompressed(f, groups, db)
	} else {
		err = export.WriteOBJ(f, groups, db)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", c.String("out"), err)
	}
	log.Info("mesh exported", "out", c.String("out"), "zstd", c.Bool("zstd"))
	return nil
}
