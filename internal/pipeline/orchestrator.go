package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/semaphore"

	"voxelgen/internal/config"
	"voxelgen/internal/decoration"
	"voxelgen/internal/jobs"
	"voxelgen/internal/meshing"
	"voxelgen/internal/profiling"
	"voxelgen/internal/registry"
	"voxelgen/internal/terrain"
	"voxelgen/internal/world"
	"voxelgen/internal/writes"
)

var (
	// ErrShutdown is returned by calls made after Shutdown.
	ErrShutdown = errors.New("pipeline: shut down")
	// ErrUnknownLOD is returned for a level of detail the config does not define.
	ErrUnknownLOD = errors.New("pipeline: unknown level of detail")
)

// Options wire an Orchestrator.
type Options struct {
	Config *config.Config
	Tables *world.Tables
	Blocks *registry.Database
	// Registry defaults to decoration.DefaultRegistry.
	Registry *decoration.Registry
	// Viewer defaults to a PointViewer at the origin.
	Viewer   Viewer
	Listener Listener
	Logger   *slog.Logger
	Profiler *profiling.Recorder
}

// Orchestrator runs the Density, Blocks, Decoration and Mesh stages for
// every requested chunk. Jobs run on a worker pool; all bookkeeping happens
// on the goroutine calling Tick, which must also be the one calling every
// other method.
type Orchestrator struct {
	cfg    *config.Config
	view   *config.ViewSettings
	tables *world.Tables
	db     *registry.Database

	noise      *terrain.Noise
	hints      *terrain.HintSampler
	density    *terrain.DensityGenerator
	classifier *terrain.Classifier
	placer     *decoration.Placer
	router     *writes.Router

	pool       *jobs.Pool
	densitySem *semaphore.Weighted
	arena      *Arena

	viewer   Viewer
	listener Listener
	log      *slog.Logger
	prof     *profiling.Recorder

	chunks    map[world.ChunkCoord]*chunk
	inFlight  map[jobs.Key]*flight
	nextSeq   uint64
	order     []world.ChunkCoord
	bootstrap bool
	closed    bool
}

// chunk is the tick-side record of one coordinate. Buffers referenced here
// are owned by the orchestrator and lent to at most one running job.
type chunk struct {
	coord world.ChunkCoord
	lod   int

	next    Stage // stage waiting for dispatch
	running Stage

	// restartLOD >= 0 restarts the chain at that LOD once the running job ends.
	restartLOD int
	cancelled  bool
	// dirty asks for a re-mesh after the running job.
	dirty     bool
	decorated bool

	hints   *world.BiomeHints
	density *world.DensityVolume
	blocks  *world.BlockVolume
	solid   *meshing.MeshBuffers
	water   *meshing.MeshBuffers
}

type flight struct {
	seq      uint64 // submission order
	key      jobs.Key
	coord    world.ChunkCoord
	stage    Stage
	done     func() bool
	finished <-chan struct{}
	cancel   func()
	finish   func(st *TickStats)
}

// TickStats summarises one Tick.
type TickStats struct {
	Completed       int
	Dispatched      int
	Failed          int
	Culled          int
	WritesApplied   int
	WritesDiscarded int
	InFlight        int
	PendingWrites   int
}

// New builds an orchestrator and starts its worker pool.
func New(opts Options) (*Orchestrator, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if opts.Blocks == nil {
		return nil, fmt.Errorf("pipeline: block database is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("component", "pipeline")
	prof := opts.Profiler
	if prof == nil {
		prof = profiling.NewRecorder()
	}
	viewer := opts.Viewer
	if viewer == nil {
		viewer = NewPointViewer(mgl32.Vec3{}, cfg.World.ChunkSize)
	}

	w := cfg.World
	noise := terrain.NewNoise(terrain.NoiseParams{
		Seed:        w.Seed,
		Octaves:     w.Octaves,
		Persistence: w.Persistence,
		Lacunarity:  w.Lacunarity,
	})
	view := config.NewViewSettings(cfg.Pipeline)

	o := &Orchestrator{
		cfg:    cfg,
		view:   view,
		tables: opts.Tables,
		db:     opts.Blocks,
		noise:  noise,
		hints:  terrain.NewHintSampler(noise, opts.Tables, w.HintStep),
		density: terrain.NewDensityGenerator(noise, opts.Tables, terrain.DensityOptions{
			Mode:        terrain.ShapingMode(w.Shaping),
			WorldHeight: w.WorldHeight,
		}),
		classifier: terrain.NewClassifier(opts.Tables),
		placer:     decoration.NewPlacer(opts.Tables, opts.Registry, w.ChunkSize, w.WaterLevel),
		router: writes.NewRouter(writes.Options{
			ChunkSize:             w.ChunkSize,
			ForceGenerateDistance: view.ForceGenerateDistance(),
			Soft:                  opts.Blocks.IsSoft,
			Logger:                log,
		}),
		pool:       jobs.NewPool(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, log),
		densitySem: semaphore.NewWeighted(int64(cfg.Pipeline.MaxConcurrentDensity)),
		arena:      NewArena(w.ChunkSize, cfg.LODs, cfg.Pipeline.MaxInFlight),
		viewer:     viewer,
		listener:   opts.Listener,
		log:        log,
		prof:       prof,
		chunks:     make(map[world.ChunkCoord]*chunk),
		inFlight:   make(map[jobs.Key]*flight),
	}
	return o, nil
}

// View returns the runtime-adjustable distances.
func (o *Orchestrator) View() *config.ViewSettings {
	return o.view
}

// Profiler returns the stage timing recorder.
func (o *Orchestrator) Profiler() *profiling.Recorder {
	return o.prof
}

// SetBootstrap lifts the per-tick completion cap while on.
func (o *Orchestrator) SetBootstrap(on bool) {
	o.bootstrap = on
}

// Request schedules coord at lod. Requesting a chunk that is already
// scheduled at the same LOD does nothing; a different LOD restarts its
// chain.
func (o *Orchestrator) Request(coord world.ChunkCoord, lod int) error {
	if o.closed {
		return ErrShutdown
	}
	if lod < 0 || lod >= len(o.cfg.LODs) {
		return fmt.Errorf("%w: %d", ErrUnknownLOD, lod)
	}
	if !o.tables.Ready() {
		return world.ErrReferenceDataMissing
	}

	c, ok := o.chunks[coord]
	if !ok {
		o.chunks[coord] = &chunk{coord: coord, lod: lod, next: StageDensity, restartLOD: -1}
		return nil
	}
	if c.cancelled {
		c.cancelled = false
		c.restartLOD = lod
		return nil
	}
	if c.running != StageNone {
		// The latest request wins over any restart still pending.
		if lod == c.lod {
			c.restartLOD = -1
		} else {
			c.restartLOD = lod
		}
		return nil
	}
	if c.lod == lod {
		return nil
	}
	o.release(c)
	c.lod = lod
	c.next = StageDensity
	return nil
}

// RequestAround requests every chunk within the view distance of center,
// nearest rings first, choosing the LOD from the viewer distance. It returns
// the number of chunks newly scheduled.
func (o *Orchestrator) RequestAround(center world.ChunkCoord, radius, verticalRadius int) (int, error) {
	view := o.view.ViewDistance()
	added := 0
	column := func(x, z int) error {
		for dy := -verticalRadius; dy <= verticalRadius; dy++ {
			c := world.ChunkCoord{X: x, Y: center.Y + dy, Z: z}
			if _, ok := o.chunks[c]; ok {
				continue
			}
			d := o.viewer.ChunkDistance(c)
			if d > view {
				continue
			}
			if err := o.Request(c, o.cfg.LODFor(d)); err != nil {
				return err
			}
			added++
		}
		return nil
	}

	if err := column(center.X, center.Z); err != nil {
		return added, err
	}
	for r := 1; r <= radius; r++ {
		x0, x1 := center.X-r, center.X+r
		z0, z1 := center.Z-r, center.Z+r
		for x := x0; x <= x1; x++ {
			if err := column(x, z0); err != nil {
				return added, err
			}
		}
		for z := z0 + 1; z <= z1-1; z++ {
			if err := column(x1, z); err != nil {
				return added, err
			}
		}
		for x := x1; x >= x0; x-- {
			if err := column(x, z1); err != nil {
				return added, err
			}
		}
		for z := z1 - 1; z >= z0+1; z-- {
			if err := column(x0, z); err != nil {
				return added, err
			}
		}
	}
	return added, nil
}

// Edit queues a block write. It is applied by a later Tick once the target
// chunk is loaded at full resolution and idle.
func (o *Orchestrator) Edit(w writes.PendingWrite) error {
	if o.closed {
		return ErrShutdown
	}
	o.router.Enqueue(w)
	return nil
}

// EditBlock replaces the block at a world position.
func (o *Orchestrator) EditBlock(x, y, z int, id world.BlockID) error {
	target, local := world.ChunkForBlock(x, y, z, o.cfg.World.ChunkSize)
	return o.Edit(writes.PendingWrite{Target: target, Local: local, Block: id, Mode: writes.Replace})
}

// Cancel abandons a chunk that has not finished meshing. A queued or
// semaphore-waiting job does not start; a running job finishes and its
// result is discarded. It reports whether anything was cancelled.
func (o *Orchestrator) Cancel(coord world.ChunkCoord) bool {
	c, ok := o.chunks[coord]
	if !ok || (c.running == StageNone && c.next == StageNone) {
		return false
	}
	o.drop(c)
	return true
}

// Unload forgets a chunk in any state and returns its volumes to the arena.
func (o *Orchestrator) Unload(coord world.ChunkCoord) {
	if c, ok := o.chunks[coord]; ok {
		o.drop(c)
	}
}

func (o *Orchestrator) drop(c *chunk) {
	if c.running == StageNone {
		o.release(c)
		delete(o.chunks, c.coord)
		return
	}
	c.cancelled = true
	c.restartLOD = -1
	if f := o.inFlight[o.key(c.coord, c.running)]; f != nil {
		f.cancel()
	}
}

// ReleaseMesh returns the buffers of a MeshReady event to the arena.
func (o *Orchestrator) ReleaseMesh(ev Event) {
	o.arena.ReturnMesh(ev.LOD, ev.Solid)
	o.arena.ReturnMesh(ev.LOD, ev.Water)
}

// Tick polls finished jobs, applies pending writes and dispatches the next
// stages. It never blocks on a running job except to drain culled chunks.
func (o *Orchestrator) Tick() TickStats {
	var st TickStats
	if o.closed {
		return st
	}
	defer o.prof.Track("pipeline.Tick")()

	o.cull(&st)
	o.drain(&st)
	o.pollWrites(&st)
	o.dispatch(&st)

	st.InFlight = len(o.inFlight)
	st.PendingWrites = o.router.Len()
	return st
}

// Idle reports whether no job is running or waiting for dispatch and no
// queued write targets a loaded chunk.
func (o *Orchestrator) Idle() bool {
	if len(o.inFlight) > 0 {
		return false
	}
	for _, c := range o.chunks {
		if c.next != StageNone {
			return false
		}
	}
	access := routerAccess{o}
	for _, c := range o.router.Targets() {
		if access.Volume(c) != nil {
			return false
		}
	}
	return true
}

// Bootstrap requests coords at lod and ticks without a completion cap until
// the pipeline is idle or ctx ends.
func (o *Orchestrator) Bootstrap(ctx context.Context, coords []world.ChunkCoord, lod int) (TickStats, error) {
	prev := o.bootstrap
	o.bootstrap = true
	defer func() { o.bootstrap = prev }()

	for _, c := range coords {
		if err := o.Request(c, lod); err != nil {
			return TickStats{}, err
		}
	}
	return o.Run(ctx)
}

// Run ticks until the pipeline is idle or ctx ends, waiting for a job to
// finish between ticks that made no progress. The returned stats are summed
// over all ticks.
func (o *Orchestrator) Run(ctx context.Context) (TickStats, error) {
	var total TickStats
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		st := o.Tick()
		total.add(st)
		if o.closed {
			return total, ErrShutdown
		}
		if o.Idle() {
			return total, nil
		}
		if st.Completed > 0 || st.Dispatched > 0 || st.WritesApplied > 0 {
			continue
		}
		if f := o.oldest(); f != nil {
			select {
			case <-f.finished:
			case <-ctx.Done():
				return total, ctx.Err()
			}
		}
	}
}

func (t *TickStats) add(s TickStats) {
	t.Completed += s.Completed
	t.Dispatched += s.Dispatched
	t.Failed += s.Failed
	t.Culled += s.Culled
	t.WritesApplied += s.WritesApplied
	t.WritesDiscarded += s.WritesDiscarded
	t.InFlight = s.InFlight
	t.PendingWrites = s.PendingWrites
}

// Shutdown cancels queued jobs, waits for running ones and releases every
// buffer. Later calls return ErrShutdown.
func (o *Orchestrator) Shutdown() {
	if o.closed {
		return
	}
	o.closed = true
	for _, f := range o.inFlight {
		f.cancel()
	}
	o.pool.Shutdown()
	clear(o.inFlight)
	for _, c := range o.chunks {
		o.release(c)
	}
	clear(o.chunks)
	o.arena.Clear()
	o.log.Debug("pipeline shut down")
}

// Status describes a chunk.
type Status struct {
	LOD     int
	Stage   Stage // running stage, else the next stage to dispatch
	Running bool
	Ready   bool // meshed and nothing pending
}

// Status returns the state of coord.
func (o *Orchestrator) Status(coord world.ChunkCoord) (Status, bool) {
	c, ok := o.chunks[coord]
	if !ok {
		return Status{}, false
	}
	s := Status{LOD: c.lod, Stage: c.next}
	if c.running != StageNone {
		s.Stage, s.Running = c.running, true
	}
	s.Ready = s.Stage == StageNone
	return s, true
}

// Blocks returns the resident volume of coord, or nil. The volume may only
// be read between ticks.
func (o *Orchestrator) Blocks(coord world.ChunkCoord) *world.BlockVolume {
	if c, ok := o.chunks[coord]; ok && c.running == StageNone {
		return c.blocks
	}
	return nil
}

// WriteState returns the router state of coord.
func (o *Orchestrator) WriteState(coord world.ChunkCoord) writes.State {
	return o.router.State(coord)
}

// Chunks returns the tracked coordinates in a stable order.
func (o *Orchestrator) Chunks() []world.ChunkCoord {
	out := make([]world.ChunkCoord, 0, len(o.chunks))
	for c := range o.chunks {
		out = append(out, c)
	}
	slices.SortFunc(out, compareCoords)
	return out
}

func compareCoords(a, b world.ChunkCoord) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

func (o *Orchestrator) key(c world.ChunkCoord, s Stage) jobs.Key {
	return jobs.Key{Coord: c, Stage: s.String()}
}

func (o *Orchestrator) sortedChunks() []world.ChunkCoord {
	o.order = o.order[:0]
	for c := range o.chunks {
		o.order = append(o.order, c)
	}
	slices.SortFunc(o.order, compareCoords)
	return o.order
}

func (o *Orchestrator) oldest() *flight {
	var best *flight
	for _, f := range o.inFlight {
		if best == nil || compareFlights(f, best) < 0 {
			best = f
		}
	}
	return best
}

func compareFlights(a, b *flight) int {
	return cmp.Compare(a.seq, b.seq)
}

// release returns every buffer held by c. The caller guarantees no job is
// using them.
func (o *Orchestrator) release(c *chunk) {
	o.arena.ReturnDensity(c.lod, c.density)
	o.arena.ReturnBlocks(c.lod, c.blocks)
	o.arena.ReturnMesh(c.lod, c.solid)
	o.arena.ReturnMesh(c.lod, c.water)
	c.density, c.blocks, c.solid, c.water = nil, nil, nil, nil
	c.hints = nil
	c.next = StageNone
	if c.decorated {
		o.router.Evict(c.coord)
		c.decorated = false
	}
}

// cull drains and discards every chunk beyond the cull distance.
func (o *Orchestrator) cull(st *TickStats) {
	limit := o.view.CullDistance()
	for _, coord := range o.sortedChunks() {
		if o.viewer.ChunkDistance(coord) <= limit {
			continue
		}
		c := o.chunks[coord]
		if c.running != StageNone {
			key := o.key(coord, c.running)
			if f := o.inFlight[key]; f != nil {
				f.cancel()
				<-f.finished
				delete(o.inFlight, key)
			}
			c.running = StageNone
		}
		o.release(c)
		delete(o.chunks, coord)
		st.Culled++
		o.log.Debug("chunk culled", "chunk", coord.String())
	}
}

// drain finishes completed jobs, at most MaxCompletionsPerTick outside
// bootstrap.
func (o *Orchestrator) drain(st *TickStats) {
	var done []*flight
	for _, f := range o.inFlight {
		if f.done() {
			done = append(done, f)
		}
	}
	// Oldest submissions first, so a capped tick cannot starve any chunk.
	slices.SortFunc(done, compareFlights)
	if limit := o.cfg.Pipeline.MaxCompletionsPerTick; !o.bootstrap && len(done) > limit {
		done = done[:limit]
	}
	for _, f := range done {
		delete(o.inFlight, f.key)
		if c := o.chunks[f.coord]; c != nil {
			c.running = StageNone
		}
		f.finish(st)
		st.Completed++
	}
}

func (o *Orchestrator) pollWrites(st *TickStats) {
	o.router.SetForceGenerateDistance(o.view.ForceGenerateDistance())
	res := o.router.Poll(routerAccess{o})
	st.WritesApplied += res.Applied
	st.WritesDiscarded += res.Discarded
	for _, coord := range res.ForceGenerate {
		o.log.Debug("force generating write target", "chunk", coord.String())
		if err := o.Request(coord, 0); err != nil {
			o.log.Warn("force generate failed", "chunk", coord.String(), "err", err)
		}
	}
	for _, coord := range res.Remesh {
		c := o.chunks[coord]
		if c == nil {
			continue
		}
		if c.running != StageNone {
			c.dirty = true
			continue
		}
		c.next = StageMesh
	}
}

// dispatch submits waiting stages while the in-flight bound allows.
func (o *Orchestrator) dispatch(st *TickStats) {
	for _, coord := range o.sortedChunks() {
		if len(o.inFlight) >= o.cfg.Pipeline.MaxInFlight {
			return
		}
		c := o.chunks[coord]
		if c.running != StageNone || c.next == StageNone {
			continue
		}
		err := o.start(c)
		switch {
		case err == nil:
			st.Dispatched++
		case errors.Is(err, jobs.ErrQueueFull):
			return
		default:
			o.log.Error("dispatch failed", "chunk", coord.String(), "stage", c.next.String(), "err", err)
			o.release(c)
			delete(o.chunks, coord)
			st.Failed++
		}
	}
}

func (o *Orchestrator) start(c *chunk) error {
	switch c.next {
	case StageDensity:
		return o.startDensity(c)
	case StageBlocks:
		return o.startBlocks(c)
	case StageDecoration:
		return o.startDecoration(c)
	case StageMesh:
		return o.startMesh(c)
	default:
		return fmt.Errorf("pipeline: nothing to dispatch for %v", c.coord)
	}
}

// submit runs fn on the pool and records the job in the in-flight table.
// finish runs on the tick goroutine once the job is done.
func submit[T any](o *Orchestrator, c *chunk, stage Stage, fn func(ctx context.Context) (T, error), finish func(c *chunk, v T, err error, st *TickStats)) error {
	key := o.key(c.coord, stage)
	if _, dup := o.inFlight[key]; dup {
		return fmt.Errorf("pipeline: %v already in flight", key)
	}
	h, err := jobs.Submit(o.pool, key, func(ctx context.Context) (T, error) {
		defer o.prof.Track("stage." + stage.String())()
		return fn(ctx)
	})
	if err != nil {
		return err
	}
	c.running = stage
	c.next = StageNone
	o.nextSeq++
	o.inFlight[key] = &flight{
		seq:      o.nextSeq,
		key:      key,
		coord:    c.coord,
		stage:    stage,
		done:     h.Done,
		finished: h.Finished(),
		cancel:   h.Cancel,
		finish: func(st *TickStats) {
			v, _, err := h.Take()
			finish(c, v, err, st)
		},
	}
	return nil
}

func (o *Orchestrator) startDensity(c *chunk) error {
	lod := o.cfg.LODs[c.lod]
	dst := o.arena.RentDensity(c.lod)
	coord, cs, freq := c.coord, o.cfg.World.ChunkSize, o.cfg.World.Frequency
	err := submit(o, c, StageDensity, func(ctx context.Context) (*world.BiomeHints, error) {
		hints, err := o.hints.Sample(coord, cs)
		if err != nil {
			return nil, err
		}
		if err := o.densitySem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer o.densitySem.Release(1)
		if err := o.density.GenerateInto(dst, coord, cs, freq, lod.SampleRes, hints); err != nil {
			return nil, err
		}
		return hints, nil
	}, o.finishDensity)
	if err != nil {
		o.arena.ReturnDensity(c.lod, dst)
		return err
	}
	c.density = dst
	return nil
}

func (o *Orchestrator) finishDensity(c *chunk, hints *world.BiomeHints, err error, st *TickStats) {
	if o.settle(c, StageDensity, err, st) {
		return
	}
	c.hints = hints
	o.emit(Event{Kind: DensityReady, Coord: c.coord, LOD: c.lod, Density: c.density, Hints: hints})
	c.next = StageBlocks
}

func (o *Orchestrator) startBlocks(c *chunk) error {
	dst := o.arena.RentBlocks(c.lod)
	density, hints := c.density, c.hints
	at := terrain.Placement{Coord: c.coord, ChunkSize: o.cfg.World.ChunkSize}
	water := o.cfg.World.WaterLevel
	err := submit(o, c, StageBlocks, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.classifier.ClassifyInto(ctx, dst, density, hints, at, water)
	}, o.finishBlocks)
	if err != nil {
		o.arena.ReturnBlocks(c.lod, dst)
		return err
	}
	c.blocks = dst
	return nil
}

func (o *Orchestrator) finishBlocks(c *chunk, _ struct{}, err error, st *TickStats) {
	if o.settle(c, StageBlocks, err, st) {
		return
	}
	o.arena.ReturnDensity(c.lod, c.density)
	c.density = nil
	o.emit(Event{Kind: BlocksReady, Coord: c.coord, LOD: c.lod, Blocks: c.blocks, Hints: c.hints})
	if c.lod == 0 {
		c.next = StageDecoration
	} else {
		c.next = StageMesh
	}
}

func (o *Orchestrator) startDecoration(c *chunk) error {
	coord, vol, hints, seed := c.coord, c.blocks, c.hints, o.cfg.World.Seed
	return submit(o, c, StageDecoration, func(context.Context) ([]writes.PendingWrite, error) {
		return o.placer.Decorate(coord, vol, hints, seed)
	}, o.finishDecoration)
}

func (o *Orchestrator) finishDecoration(c *chunk, ws []writes.PendingWrite, err error, st *TickStats) {
	if o.settle(c, StageDecoration, err, st) {
		return
	}
	c.decorated = true
	o.router.EnqueueAll(ws)
	o.emit(Event{Kind: DecorationReady, Coord: c.coord, LOD: c.lod, Blocks: c.blocks, Hints: c.hints, Writes: len(ws)})
	c.next = StageMesh
}

func (o *Orchestrator) startMesh(c *chunk) error {
	lod := o.cfg.LODs[c.lod]
	cs := o.cfg.World.ChunkSize
	ox, oy, oz := c.coord.Origin(cs)
	p := meshing.Params{
		ChunkSize: cs,
		SampleRes: lod.SampleRes,
		MeshRes:   lod.MeshRes,
		LOD:       c.lod,
		BlockSize: lod.BlockSize,
		Origin:    mgl32.Vec3{float32(ox), float32(oy), float32(oz)}.Mul(lod.BlockSize),
	}
	solid, water := o.arena.RentMesh(c.lod), o.arena.RentMesh(c.lod)
	vol := c.blocks
	err := submit(o, c, StageMesh, func(context.Context) (struct{}, error) {
		var ms meshing.Mesher
		if _, err := ms.Build(vol, o.db, p, meshing.PassSolid, solid); err != nil {
			return struct{}{}, err
		}
		if !solid.NeedsWaterMesh {
			water.Reset()
			return struct{}{}, nil
		}
		_, err := ms.Build(vol, o.db, p, meshing.PassWater, water)
		return struct{}{}, err
	}, o.finishMesh)
	if err != nil {
		o.arena.ReturnMesh(c.lod, solid)
		o.arena.ReturnMesh(c.lod, water)
		return err
	}
	c.solid, c.water = solid, water
	return nil
}

func (o *Orchestrator) finishMesh(c *chunk, _ struct{}, err error, st *TickStats) {
	if o.settle(c, StageMesh, err, st) {
		return
	}
	solid, water := c.solid, c.water
	c.solid, c.water = nil, nil
	if water.Empty() {
		o.arena.ReturnMesh(c.lod, water)
		water = nil
	}
	if c.lod > 0 && !o.cfg.Pipeline.KeepFarVolumes {
		o.arena.ReturnBlocks(c.lod, c.blocks)
		c.blocks = nil
		c.hints = nil
	}
	ev := Event{Kind: MeshReady, Coord: c.coord, LOD: c.lod, Blocks: c.blocks, Solid: solid, Water: water}
	if o.listener == nil {
		o.ReleaseMesh(ev)
	} else {
		o.emit(ev)
	}
	if c.dirty {
		c.dirty = false
		c.next = StageMesh
	}
}

// settle handles cancellation, LOD restarts and failures of a finished job.
// It reports whether the result must be dropped.
func (o *Orchestrator) settle(c *chunk, stage Stage, err error, st *TickStats) bool {
	if c.cancelled {
		o.release(c)
		delete(o.chunks, c.coord)
		return true
	}
	if c.restartLOD >= 0 {
		o.release(c)
		c.lod, c.restartLOD = c.restartLOD, -1
		c.dirty = false
		c.next = StageDensity
		return true
	}
	if err == nil {
		return false
	}
	o.release(c)
	delete(o.chunks, c.coord)
	if errors.Is(err, jobs.ErrCancelled) || errors.Is(err, context.Canceled) {
		o.log.Debug("stage cancelled", "chunk", c.coord.String(), "stage", stage.String())
		return true
	}
	st.Failed++
	o.log.Error("stage failed", "chunk", c.coord.String(), "stage", stage.String(), "err", err)
	return true
}

func (o *Orchestrator) emit(ev Event) {
	if o.listener != nil {
		o.listener(ev)
	}
}

// routerAccess exposes chunk readiness to the write router.
type routerAccess struct {
	o *Orchestrator
}

func (a routerAccess) Volume(coord world.ChunkCoord) *world.BlockVolume {
	c, ok := a.o.chunks[coord]
	if !ok || c.lod != 0 || !c.decorated || c.cancelled || c.restartLOD >= 0 {
		return nil
	}
	return c.blocks
}

func (a routerAccess) Busy(coord world.ChunkCoord) bool {
	c, ok := a.o.chunks[coord]
	return ok && c.running != StageNone
}

func (a routerAccess) Distance(coord world.ChunkCoord) float64 {
	return a.o.viewer.ChunkDistance(coord)
}
