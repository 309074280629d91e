package writes

import (
	"log/slog"
	"slices"

	"voxelgen/internal/world"
)

// State is the per-chunk progress of queued writes.
type State uint8

const (
	// StateNone means no writes were ever queued for the chunk (or it was evicted).
	StateNone State = iota
	// StateQueued means writes wait for the chunk to exist or become idle.
	StateQueued
	// StateApplicable means the chunk was ready on the last poll.
	StateApplicable
	// StateApplied means every queued write has been drained.
	StateApplied
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateApplicable:
		return "applicable"
	case StateApplied:
		return "applied"
	default:
		return "none"
	}
}

// ChunkAccess is the router's view of the chunk manager.
type ChunkAccess interface {
	// Volume returns the live full-resolution volume of c, or nil.
	Volume(c world.ChunkCoord) *world.BlockVolume
	// Busy reports whether c is being decorated or meshed.
	Busy(c world.ChunkCoord) bool
	// Distance returns the viewer distance of c in chunks.
	Distance(c world.ChunkCoord) float64
}

// Options configure a Router.
type Options struct {
	ChunkSize             int
	ForceGenerateDistance float64
	// Soft reports blocks that ReplaceIfSoft may overwrite.
	Soft   func(world.BlockID) bool
	Logger *slog.Logger
}

// PollResult reports what one Poll did.
type PollResult struct {
	Applied       int
	Discarded     int
	Remesh        []world.ChunkCoord
	ForceGenerate []world.ChunkCoord
}

// Router buffers writes per target chunk and applies them once the target is
// loaded and idle. It is not safe for concurrent use; the pipeline drives it
// from its tick goroutine.
type Router struct {
	opts Options
	log  *slog.Logger

	queues map[world.ChunkCoord][]PendingWrite
	states map[world.ChunkCoord]State
	// mirrored holds the last block mirrored into each shared voxel.
	mirrored map[world.ChunkCoord]map[world.LocalPos]world.BlockID
	forced   map[world.ChunkCoord]struct{}

	free  [][]PendingWrite
	order []world.ChunkCoord
}

// NewRouter creates an empty router.
func NewRouter(opts Options) *Router {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Router{
		opts:     opts,
		log:      log.With("component", "writes"),
		queues:   make(map[world.ChunkCoord][]PendingWrite),
		states:   make(map[world.ChunkCoord]State),
		mirrored: make(map[world.ChunkCoord]map[world.LocalPos]world.BlockID),
		forced:   make(map[world.ChunkCoord]struct{}),
	}
}

// Enqueue buffers w for its target. Mirror writes that repeat the last block
// mirrored into the same voxel are dropped and reported as false. Keying on
// the last block rather than every block ever mirrored lets A, B, A re-edits
// reach the neighbour each time.
func (r *Router) Enqueue(w PendingWrite) bool {
	if w.IsMirror {
		seen := r.mirrored[w.Target]
		if seen == nil {
			seen = make(map[world.LocalPos]world.BlockID)
			r.mirrored[w.Target] = seen
		}
		if prev, ok := seen[w.Local]; ok && prev == w.Block {
			return false
		}
		seen[w.Local] = w.Block
	}
	q, ok := r.queues[w.Target]
	if !ok {
		q = r.rent()
	}
	r.queues[w.Target] = append(q, w)
	r.states[w.Target] = StateQueued
	return true
}

// SetForceGenerateDistance changes the radius used by later polls.
func (r *Router) SetForceGenerateDistance(d float64) {
	r.opts.ForceGenerateDistance = d
}

// EnqueueAll buffers every write in ws.
func (r *Router) EnqueueAll(ws []PendingWrite) {
	for _, w := range ws {
		r.Enqueue(w)
	}
}

// State returns the write state of c.
func (r *Router) State(c world.ChunkCoord) State {
	return r.states[c]
}

// Pending returns the number of writes waiting for c.
func (r *Router) Pending(c world.ChunkCoord) int {
	return len(r.queues[c])
}

// Len returns the number of queued writes across all chunks.
func (r *Router) Len() int {
	n := 0
	for _, q := range r.queues {
		n += len(q)
	}
	return n
}

// Targets returns the coordinates with queued writes in a stable order.
func (r *Router) Targets() []world.ChunkCoord {
	out := make([]world.ChunkCoord, 0, len(r.queues))
	for c := range r.queues {
		out = append(out, c)
	}
	slices.SortFunc(out, compareCoords)
	return out
}

// Poll drains the queues of every loaded, idle target. Targets without a
// volume inside the force-generate distance are reported once in
// ForceGenerate. Mirrors produced while applying land in other queues and
// are drained by a later poll.
func (r *Router) Poll(access ChunkAccess) PollResult {
	var res PollResult
	if len(r.queues) == 0 {
		return res
	}

	r.order = r.order[:0]
	for c := range r.queues {
		r.order = append(r.order, c)
	}
	slices.SortFunc(r.order, compareCoords)

	for _, c := range r.order {
		vol := access.Volume(c)
		if vol == nil {
			r.states[c] = StateQueued
			if _, done := r.forced[c]; !done && access.Distance(c) <= r.opts.ForceGenerateDistance {
				r.forced[c] = struct{}{}
				res.ForceGenerate = append(res.ForceGenerate, c)
			}
			continue
		}
		if access.Busy(c) {
			r.states[c] = StateQueued
			continue
		}
		r.states[c] = StateApplicable

		q := r.queues[c]
		delete(r.queues, c)
		changed := false
		for _, w := range q {
			out := r.apply(vol, w)
			if out == outOfBounds {
				res.Discarded++
				r.log.Debug("discarding out of range write", "write", w.String())
				continue
			}
			res.Applied++
			if out == rejected {
				continue
			}
			changed = changed || out == changedVoxel
			// The voxel now holds w.Block; the neighbours' copies must too.
			for _, m := range Mirrors(w, r.opts.ChunkSize) {
				r.Enqueue(m)
			}
		}
		r.recycle(q)
		delete(r.forced, c)
		r.states[c] = StateApplied
		if changed {
			res.Remesh = append(res.Remesh, c)
		}
	}
	return res
}

type outcome uint8

const (
	outOfBounds outcome = iota
	rejected            // the write mode refused the current block
	unchanged           // the voxel already held the block
	changedVoxel
)

// apply writes w into vol.
func (r *Router) apply(vol *world.BlockVolume, w PendingWrite) outcome {
	x, y, z := w.Local.X, w.Local.Y, w.Local.Z
	if !vol.InBounds(x, y, z) {
		return outOfBounds
	}
	cur := vol.Get(x, y, z)
	if cur == w.Block {
		return unchanged
	}
	if !w.Mode.Allows(cur, r.opts.Soft) {
		return rejected
	}
	vol.Set(x, y, z, w.Block)
	return changedVoxel
}

// Evict forgets the mirror history and force-generate mark of an unloaded
// chunk. Its queued writes are kept.
func (r *Router) Evict(c world.ChunkCoord) {
	delete(r.mirrored, c)
	delete(r.forced, c)
	if _, queued := r.queues[c]; !queued {
		delete(r.states, c)
	}
}

func (r *Router) rent() []PendingWrite {
	if n := len(r.free); n > 0 {
		q := r.free[n-1]
		r.free = r.free[:n-1]
		return q
	}
	return make([]PendingWrite, 0, 8)
}

func (r *Router) recycle(q []PendingWrite) {
	if cap(q) == 0 || len(r.free) >= 64 {
		return
	}
	r.free = append(r.free, q[:0])
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
