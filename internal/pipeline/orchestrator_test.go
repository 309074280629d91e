package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"

	"voxelgen/internal/config"
	"voxelgen/internal/registry"
	"voxelgen/internal/world"
	"voxelgen/internal/writes"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.World.ChunkSize = 16
	cfg.World.WorldHeight = 64
	cfg.World.WaterLevel = 12
	cfg.LODs = []config.LODConfig{
		{SampleRes: 1, MeshRes: 1, BlockSize: 1, MaxDistance: 2},
		{SampleRes: 2, MeshRes: 1, BlockSize: 1, MaxDistance: 6},
	}
	cfg.Pipeline = config.PipelineConfig{
		Workers:               2,
		QueueSize:             64,
		MaxInFlight:           32,
		MaxConcurrentDensity:  2,
		MaxCompletionsPerTick: 64,
		ViewDistance:          6,
		CullDistance:          8,
	}
	return cfg
}

type harness struct {
	o      *Orchestrator
	viewer *PointViewer
	events map[world.ChunkCoord][]EventKind
	// meshes keeps a copy of the last solid mesh positions per chunk.
	meshes map[world.ChunkCoord][]mgl32.Vec3
}

func newHarness(t *testing.T, cfg *config.Config, tables *world.Tables) *harness {
	t.Helper()
	h := &harness{
		viewer: NewPointViewer(mgl32.Vec3{}, cfg.World.ChunkSize),
		events: make(map[world.ChunkCoord][]EventKind),
		meshes: make(map[world.ChunkCoord][]mgl32.Vec3),
	}
	o, err := New(Options{
		Config: cfg,
		Tables: tables,
		Blocks: registry.Default(),
		Viewer: h.viewer,
		Listener: func(ev Event) {
			h.events[ev.Coord] = append(h.events[ev.Coord], ev.Kind)
			if ev.Kind == MeshReady {
				h.meshes[ev.Coord] = append([]mgl32.Vec3(nil), ev.Solid.Positions...)
				h.o.ReleaseMesh(ev)
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.o = o
	t.Cleanup(o.Shutdown)
	return h
}

func (h *harness) run(t *testing.T) TickStats {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	st, err := h.o.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return st
}

func (h *harness) bootstrap(t *testing.T, lod int, coords ...world.ChunkCoord) TickStats {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	st, err := h.o.Bootstrap(ctx, coords, lod)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return st
}

// waitFlights blocks until every in-flight job has finished.
func waitFlights(t *testing.T, o *Orchestrator) {
	t.Helper()
	deadline := time.After(time.Minute)
	for _, f := range o.inFlight {
		select {
		case <-f.finished:
		case <-deadline:
			t.Fatalf("job %v never finished", f.key)
		}
	}
}

func assertNoRentedBuffers(t *testing.T, o *Orchestrator) {
	t.Helper()
	for _, k := range []BufferKind{KindDensity, KindBlocks, KindMesh} {
		if n := o.arena.Outstanding(k); n != 0 {
			t.Errorf("%d %v buffers still rented", n, k)
		}
	}
}

func TestStagesRunInOrder(t *testing.T) {
	h := newHarness(t, testConfig(), world.DefaultTables())
	near := world.ChunkCoord{X: 0, Y: 1, Z: 0}
	far := world.ChunkCoord{X: 0, Y: 1, Z: 3}

	h.bootstrap(t, 0, near)
	h.bootstrap(t, 1, far)

	got := h.events[near]
	want := []EventKind{DensityReady, BlocksReady, DecorationReady, MeshReady}
	if len(got) < len(want) {
		t.Fatalf("events for %v = %v", near, got)
	}
	if diff := cmp.Diff(want, got[:len(want)]); diff != "" {
		t.Fatalf("LOD 0 event order (-want +got):\n%s", diff)
	}
	for _, k := range got[len(want):] {
		if k != MeshReady {
			t.Fatalf("unexpected trailing event %v", k)
		}
	}

	if diff := cmp.Diff([]EventKind{DensityReady, BlocksReady, MeshReady}, h.events[far]); diff != "" {
		t.Fatalf("LOD 1 event order (-want +got):\n%s", diff)
	}

	if s, ok := h.o.Status(near); !ok || !s.Ready || s.LOD != 0 {
		t.Fatalf("Status(near) = %+v, %v", s, ok)
	}
	if h.o.Blocks(near) == nil {
		t.Fatalf("LOD 0 volume not resident")
	}
	if h.o.Blocks(far) != nil {
		t.Fatalf("LOD 1 volume kept without keep_far_volumes")
	}
	if !h.o.Idle() {
		t.Fatalf("pipeline not idle after bootstrap")
	}
}

func hashVolume(v *world.BlockVolume) [32]byte {
	b := make([]byte, len(v.Blocks))
	for i, id := range v.Blocks {
		b[i] = byte(id)
	}
	return sha256.Sum256(b)
}

func TestPipelineDeterministic(t *testing.T) {
	// Not adjacent, so no decoration spills from one into another.
	coords := []world.ChunkCoord{{X: 0, Y: 1, Z: 0}, {X: 2, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 2}, {X: 0, Y: 0, Z: -2}}

	type result struct {
		Volumes map[world.ChunkCoord][32]byte
		Meshes  map[world.ChunkCoord][]mgl32.Vec3
		Pending int
	}
	runOnce := func() result {
		h := newHarness(t, testConfig(), world.DefaultTables())
		st := h.bootstrap(t, 0, coords...)
		r := result{Volumes: make(map[world.ChunkCoord][32]byte), Meshes: h.meshes, Pending: st.PendingWrites}
		for _, c := range coords {
			v := h.o.Blocks(c)
			if v == nil {
				t.Fatalf("no volume for %v", c)
			}
			r.Volumes[c] = hashVolume(v)
		}
		return r
	}

	first := runOnce()
	second := runOnce()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("pipeline output differs between runs (-first +second):\n%s", diff)
	}
}

func TestPendingWriteAppliedOnceGenerated(t *testing.T) {
	h := newHarness(t, testConfig(), world.DefaultTables())
	target := world.ChunkCoord{X: 0, Y: 1, Z: 0}
	w := writes.PendingWrite{Target: target, Local: world.LocalPos{X: 3, Y: 4, Z: 5}, Block: world.BlockGlass, Mode: writes.Replace}
	if err := h.o.Edit(w); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		h.o.Tick()
	}
	if got := h.o.WriteState(target); got != writes.StateQueued {
		t.Fatalf("state before generation = %v, want queued", got)
	}
	if _, ok := h.o.Status(target); ok {
		t.Fatalf("write outside the force-generate distance started generation")
	}

	h.bootstrap(t, 0, target)
	if got := h.o.WriteState(target); got != writes.StateApplied {
		t.Fatalf("state after generation = %v, want applied", got)
	}
	if got := h.o.Blocks(target).Get(3, 4, 5); got != world.BlockGlass {
		t.Fatalf("block = %d, want glass", got)
	}
}

func TestBoundaryEditReachesNeighbour(t *testing.T) {
	h := newHarness(t, testConfig(), world.DefaultTables())
	src := world.ChunkCoord{X: 0, Y: 1, Z: 0}
	dst := world.ChunkCoord{X: -1, Y: 1, Z: 0}
	h.bootstrap(t, 0, src, dst)
	meshesBefore := len(h.events[dst])

	// World (0,21,7) is local (0,5,7) of src, on its min-x face.
	if err := h.o.EditBlock(0, 21, 7, world.BlockGlass); err != nil {
		t.Fatal(err)
	}
	st := h.run(t)

	if got := h.o.Blocks(src).Get(0, 5, 7); got != world.BlockGlass {
		t.Fatalf("source block = %d", got)
	}
	if got := h.o.Blocks(dst).Get(16, 5, 7); got != world.BlockGlass {
		t.Fatalf("mirrored block = %d", got)
	}
	if st.WritesApplied < 2 {
		t.Fatalf("WritesApplied = %d, want edit and mirror", st.WritesApplied)
	}
	if len(h.events[dst]) <= meshesBefore {
		t.Fatalf("neighbour was not re-meshed")
	}

	// Repeating the edit changes nothing and mirrors nothing.
	pending := st.PendingWrites
	if err := h.o.EditBlock(0, 21, 7, world.BlockGlass); err != nil {
		t.Fatal(err)
	}
	st = h.run(t)
	if st.WritesApplied != 1 || st.PendingWrites != pending {
		t.Fatalf("repeat edit stats = %+v, want one write and %d pending", st, pending)
	}
}

func TestEditForcesNearbyGeneration(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.ForceGenerateDistance = 2
	h := newHarness(t, cfg, world.DefaultTables())
	target := world.ChunkCoord{X: 1, Y: 0, Z: 0}

	if err := h.o.EditBlock(20, 3, 3, world.BlockGlass); err != nil {
		t.Fatal(err)
	}
	h.o.Tick()
	s, ok := h.o.Status(target)
	if !ok || s.LOD != 0 {
		t.Fatalf("Status = %+v, %v; want a LOD 0 request", s, ok)
	}

	h.run(t)
	if got := h.o.Blocks(target).Get(4, 3, 3); got != world.BlockGlass {
		t.Fatalf("block = %d, want glass", got)
	}
}

func TestCompletionCapPerTick(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.MaxCompletionsPerTick = 1
	h := newHarness(t, cfg, world.DefaultTables())
	for x := range 4 {
		if err := h.o.Request(world.ChunkCoord{X: x, Y: 0, Z: 0}, 1); err != nil {
			t.Fatal(err)
		}
	}

	if st := h.o.Tick(); st.Dispatched != 4 || st.Completed != 0 {
		t.Fatalf("first tick = %+v", st)
	}
	waitFlights(t, h.o)
	if st := h.o.Tick(); st.Completed != 1 {
		t.Fatalf("capped tick completed %d, want 1", st.Completed)
	}

	waitFlights(t, h.o)
	done := len(h.o.inFlight)
	h.o.SetBootstrap(true)
	if st := h.o.Tick(); st.Completed != done {
		t.Fatalf("bootstrap tick completed %d, want %d", st.Completed, done)
	}
}

func TestCappedTickCompletesOldestFirst(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.MaxCompletionsPerTick = 1
	cfg.Pipeline.MaxConcurrentDensity = 1
	h := newHarness(t, cfg, world.DefaultTables())

	// Hold every density slot so both jobs are dispatched before either runs.
	if err := h.o.densitySem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	older, newer := world.ChunkCoord{X: 2}, world.ChunkCoord{X: 0}
	for _, coord := range []world.ChunkCoord{older, newer} {
		if err := h.o.Request(coord, 1); err != nil {
			t.Fatal(err)
		}
		if st := h.o.Tick(); st.Dispatched != 1 {
			t.Fatalf("tick for %v = %+v", coord, st)
		}
	}
	h.o.densitySem.Release(1)
	waitFlights(t, h.o)

	if st := h.o.Tick(); st.Completed != 1 {
		t.Fatalf("capped tick completed %d, want 1", st.Completed)
	}
	if s, _ := h.o.Status(older); s.Stage != StageBlocks {
		t.Fatalf("older chunk stage = %v, want blocks", s.Stage)
	}
	if s, _ := h.o.Status(newer); s.Stage != StageDensity {
		t.Fatalf("newer chunk stage = %v, want density still undrained", s.Stage)
	}
	h.run(t)
}

func TestCancelSemaphoreWaitingDensity(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.MaxConcurrentDensity = 1
	h := newHarness(t, cfg, world.DefaultTables())

	if err := h.o.densitySem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	coord := world.ChunkCoord{}
	if err := h.o.Request(coord, 0); err != nil {
		t.Fatal(err)
	}
	h.o.Tick()
	if s, _ := h.o.Status(coord); !s.Running || s.Stage != StageDensity {
		t.Fatalf("Status = %+v, want running density", s)
	}

	if !h.o.Cancel(coord) {
		t.Fatalf("Cancel reported nothing to cancel")
	}
	waitFlights(t, h.o)
	st := h.o.Tick()
	h.o.densitySem.Release(1)

	if _, ok := h.o.Status(coord); ok {
		t.Fatalf("cancelled chunk still tracked")
	}
	if st.Failed != 0 {
		t.Fatalf("cancellation counted as failure: %+v", st)
	}
	if len(h.events[coord]) != 0 {
		t.Fatalf("cancelled chunk emitted %v", h.events[coord])
	}
	assertNoRentedBuffers(t, h.o)
}

func TestCancelFinishedChunkIsNoop(t *testing.T) {
	h := newHarness(t, testConfig(), world.DefaultTables())
	coord := world.ChunkCoord{Y: 1}
	h.bootstrap(t, 1, coord)
	if h.o.Cancel(coord) {
		t.Fatalf("Cancel of a meshed chunk reported true")
	}
	h.o.Unload(coord)
	if _, ok := h.o.Status(coord); ok {
		t.Fatalf("Unload kept the chunk")
	}
	assertNoRentedBuffers(t, h.o)
}

func TestOutOfRangeChunksCulled(t *testing.T) {
	h := newHarness(t, testConfig(), world.DefaultTables())
	coords := []world.ChunkCoord{{}, {X: 1}, {Z: 1}}
	for _, c := range coords {
		if err := h.o.Request(c, 0); err != nil {
			t.Fatal(err)
		}
	}
	h.o.Tick()

	h.viewer.SetPosition(mgl32.Vec3{10000, 0, 0})
	st := h.o.Tick()
	if st.Culled != len(coords) {
		t.Fatalf("Culled = %d, want %d", st.Culled, len(coords))
	}
	if st.InFlight != 0 || len(h.o.Chunks()) != 0 {
		t.Fatalf("culled chunks left behind: %+v, %v", st, h.o.Chunks())
	}
	assertNoRentedBuffers(t, h.o)
}

func TestStageFailureCleansUp(t *testing.T) {
	tables := world.DefaultTables()
	h := newHarness(t, testConfig(), tables)
	coord := world.ChunkCoord{}
	if err := h.o.Request(coord, 0); err != nil {
		t.Fatal(err)
	}
	tables.Biomes = nil

	st := h.run(t)
	if st.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", st.Failed)
	}
	if _, ok := h.o.Status(coord); ok {
		t.Fatalf("failed chunk still tracked")
	}
	assertNoRentedBuffers(t, h.o)

	// A fresh request is rejected up front while the tables are missing.
	if err := h.o.Request(coord, 0); !errors.Is(err, world.ErrReferenceDataMissing) {
		t.Fatalf("err = %v, want ErrReferenceDataMissing", err)
	}
}

func TestRequestPreconditions(t *testing.T) {
	h := newHarness(t, testConfig(), &world.Tables{})
	if err := h.o.Request(world.ChunkCoord{}, 0); !errors.Is(err, world.ErrReferenceDataMissing) {
		t.Fatalf("err = %v, want ErrReferenceDataMissing", err)
	}

	h = newHarness(t, testConfig(), world.DefaultTables())
	if err := h.o.Request(world.ChunkCoord{}, 7); !errors.Is(err, ErrUnknownLOD) {
		t.Fatalf("err = %v, want ErrUnknownLOD", err)
	}
}

func TestLODChangeRestartsChain(t *testing.T) {
	h := newHarness(t, testConfig(), world.DefaultTables())
	coord := world.ChunkCoord{Y: 1}
	h.bootstrap(t, 1, coord)
	if err := h.o.Request(coord, 0); err != nil {
		t.Fatal(err)
	}
	h.run(t)

	s, ok := h.o.Status(coord)
	if !ok || s.LOD != 0 || !s.Ready {
		t.Fatalf("Status = %+v, %v", s, ok)
	}
	v := h.o.Blocks(coord)
	if v == nil || v.SampleRes != 1 || v.Side != 17 {
		t.Fatalf("volume after LOD change = %+v", v)
	}
}

func TestLODRequestReversedWhileRunning(t *testing.T) {
	h := newHarness(t, testConfig(), world.DefaultTables())
	coord := world.ChunkCoord{Y: 1}
	if err := h.o.Request(coord, 0); err != nil {
		t.Fatal(err)
	}
	h.o.Tick()
	if c := h.o.chunks[coord]; c == nil || c.running == StageNone {
		t.Fatalf("density not running after first tick")
	}

	for _, lod := range []int{1, 0} {
		if err := h.o.Request(coord, lod); err != nil {
			t.Fatal(err)
		}
	}
	if c := h.o.chunks[coord]; c.restartLOD != -1 {
		t.Fatalf("restartLOD = %d after requesting the running LOD again", c.restartLOD)
	}
	h.run(t)

	s, ok := h.o.Status(coord)
	if !ok || s.LOD != 0 || !s.Ready {
		t.Fatalf("Status = %+v, %v; want ready at LOD 0", s, ok)
	}
	if v := h.o.Blocks(coord); v == nil || v.SampleRes != 1 {
		t.Fatalf("volume = %+v, want full resolution", v)
	}
}

func TestRequestAroundRings(t *testing.T) {
	h := newHarness(t, testConfig(), world.DefaultTables())
	n, err := h.o.RequestAround(world.ChunkCoord{}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 9 {
		t.Fatalf("requested %d chunks, want 9", n)
	}
	if again, _ := h.o.RequestAround(world.ChunkCoord{}, 1, 0); again != 0 {
		t.Fatalf("second RequestAround added %d", again)
	}

	if s, _ := h.o.Status(world.ChunkCoord{}); s.LOD != 0 {
		t.Fatalf("centre LOD = %d, want 0", s.LOD)
	}
	if s, _ := h.o.Status(world.ChunkCoord{X: 1, Z: 1}); s.LOD != 1 {
		t.Fatalf("corner LOD = %d, want 1", s.LOD)
	}
}

func TestShutdownDrains(t *testing.T) {
	h := newHarness(t, testConfig(), world.DefaultTables())
	for x := range 6 {
		if err := h.o.Request(world.ChunkCoord{X: x % 3, Z: x / 3}, 0); err != nil {
			t.Fatal(err)
		}
	}
	h.o.Tick()
	h.o.Shutdown()

	if len(h.o.inFlight) != 0 || len(h.o.Chunks()) != 0 {
		t.Fatalf("Shutdown left %d jobs and %d chunks", len(h.o.inFlight), len(h.o.Chunks()))
	}
	assertNoRentedBuffers(t, h.o)
	if err := h.o.Request(world.ChunkCoord{}, 0); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Request after Shutdown = %v", err)
	}
	if err := h.o.EditBlock(0, 0, 0, world.BlockStone); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Edit after Shutdown = %v", err)
	}
	if st := h.o.Tick(); st != (TickStats{}) {
		t.Fatalf("Tick after Shutdown = %+v", st)
	}
}
