package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/urfave/cli/v2"

	"voxelgen/internal/pipeline"
	"voxelgen/internal/registry"
	"voxelgen/internal/world"
)

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "bootstrap the chunks around the origin and report statistics",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "radius", Aliases: []string{"r"}, Value: 2, Usage: "horizontal radius in chunks"},
			&cli.IntFlag{Name: "vertical", Value: 1, Usage: "vertical radius in chunks"},
			&cli.IntFlag{Name: "lod", Value: -1, Usage: "force one LOD for every chunk; -1 picks by distance"},
		},
		Action: runGenerate,
	}
}

type meshStats struct {
	meshes int
	quads  int
	water  int
}

func runGenerate(c *cli.Context) error {
	log := newLogger(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cs := cfg.World.ChunkSize
	center := world.ChunkCoord{Y: world.FloorDiv(cfg.World.WaterLevel, cs)}
	viewer := pipeline.NewPointViewer(center.Center(cs), cs)

	var stats meshStats
	var o *pipeline.Orchestrator
	o, err = pipeline.New(pipeline.Options{
		Config: cfg,
		Tables: world.DefaultTables(),
		Blocks: registry.Default(),
		Viewer: viewer,
		Logger: log,
		Listener: func(ev pipeline.Event) {
			if ev.Kind != pipeline.MeshReady {
				return
			}
			stats.meshes++
			stats.quads += ev.Solid.QuadCount()
			if ev.Water != nil {
				stats.water += ev.Water.QuadCount()
			}
			o.ReleaseMesh(ev)
		},
	})
	if err != nil {
		return err
	}
	defer o.Shutdown()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	start := time.Now()
	radius, vertical := c.Int("radius"), c.Int("vertical")
	if lod := c.Int("lod"); lod >= 0 {
		var coords []world.ChunkCoord
		for dz := -radius; dz <= radius; dz++ {
			for dy := -vertical; dy <= vertical; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					coords = append(coords, center.Add(dx, dy, dz))
				}
			}
		}
		if _, err := o.Bootstrap(ctx, coords, lod); err != nil {
			return err
		}
	} else {
		o.SetBootstrap(true)
		n, err := o.RequestAround(center, radius, vertical)
		if err != nil {
			return err
		}
		log.Info("requested chunks", "count", n)
		if _, err := o.Run(ctx); err != nil {
			return err
		}
		o.SetBootstrap(false)
	}
	log.Info("bootstrap finished", "chunks", len(o.Chunks()), "meshes", stats.meshes,
		"quads", stats.quads, "waterQuads", stats.water, "elapsed", time.Since(start).Round(time.Millisecond))

	// A boundary edit on the min-x face of the centre chunk mirrors into its
	// -x neighbour. The block lands on the first surface below the top of
	// the loaded column when LOD 0 volumes are resident.
	ox, oy, oz := center.Origin(cs)
	target := [3]int{ox, min(max(cfg.World.WaterLevel+1, oy), oy+cs-1), oz + cs/2}
	top := float32((center.Y+vertical+1)*cs) - 0.5
	hit := o.Raycast(mgl32.Vec3{float32(ox) + 0.5, top, float32(target[2]) + 0.5}, mgl32.Vec3{0, -1, 0}, float32((2*vertical+1)*cs))
	if hit.Hit {
		target = hit.Adjacent
		log.Debug("edit target from raycast", "block", hit.Block, "distance", hit.Distance)
	}
	if err := o.EditBlock(target[0], target[1], target[2], world.BlockGlass); err != nil {
		return err
	}
	st, err := o.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("edit applied", "writesApplied", st.WritesApplied, "pendingWrites", st.PendingWrites)

	fmt.Printf("chunks=%d meshes=%d quads=%d water_quads=%d pending_writes=%d\n",
		len(o.Chunks()), stats.meshes, stats.quads, stats.water, st.PendingWrites)
	fmt.Printf("profile: %s\n", o.Profiler().TopN(5))
	return nil
}
