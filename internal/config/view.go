package config

import "sync"

// ViewSettings holds the distances that can change while the pipeline runs.
type ViewSettings struct {
	mu            sync.RWMutex
	viewDistance  float64 // in chunks
	forceDistance float64
	cullDistance  float64
}

const (
	minViewDistance = 1
	maxViewDistance = 64
)

// NewViewSettings seeds the settings from a validated pipeline config.
func NewViewSettings(p PipelineConfig) *ViewSettings {
	v := &ViewSettings{}
	v.SetViewDistance(p.ViewDistance)
	v.SetForceGenerateDistance(p.ForceGenerateDistance)
	v.SetCullDistance(p.CullDistance)
	return v
}

// ViewDistance returns the generation radius in chunks.
func (v *ViewSettings) ViewDistance() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.viewDistance
}

// SetViewDistance sets the generation radius, clamped to [1,64]. The cull
// distance is pushed out so that it never falls inside the view.
func (v *ViewSettings) SetViewDistance(d float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if d < minViewDistance {
		d = minViewDistance
	}
	if d > maxViewDistance {
		d = maxViewDistance
	}
	v.viewDistance = d
	if v.cullDistance < d {
		v.cullDistance = d
	}
}

// ForceGenerateDistance returns the radius within which pending writes
// force their target chunk to generate.
func (v *ViewSettings) ForceGenerateDistance() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.forceDistance
}

// SetForceGenerateDistance sets the force-generate radius, clamped to the
// view distance.
func (v *ViewSettings) SetForceGenerateDistance(d float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.forceDistance = min(max(d, 0), v.viewDistance)
}

// CullDistance returns the radius beyond which jobs are drained and discarded.
func (v *ViewSettings) CullDistance() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cullDistance
}

// SetCullDistance sets the cull radius; it never drops below the view distance.
func (v *ViewSettings) SetCullDistance(d float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cullDistance = max(d, v.viewDistance)
}
