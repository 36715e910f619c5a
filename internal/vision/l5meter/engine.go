package l5meter

import (
	"sync"
)

// Params holds the tunable metering parameters. Defaults match the
// values in config/tuning.defaults.json.
type Params struct {
	// TargetISO is the user-selected ISO all recommendations are
	// resolved for. Default: 100.
	TargetISO float64

	// SampleStride is the pixel stride for luminance sampling in the
	// zonal and subject-biased histograms. The histograms are
	// statistics, not images, so a coarse stride loses nothing.
	// Default: 4.
	SampleStride int

	// ZoneRows and ZoneCols partition the active crop for zonal
	// metering. Default: 6×6.
	ZoneRows int
	ZoneCols int

	// TargetShutterS is the fixed shutter time the scene mode solves
	// its alternative-aperture target for. Default: 1/60 s.
	TargetShutterS float64

	// MaxAlternatives caps the scene mode's alternative (aperture,
	// shutter) pair list. Default: 5.
	MaxAlternatives int
}

// DefaultParams returns the default metering parameters.
func DefaultParams() Params {
	return Params{
		TargetISO:       100,
		SampleStride:    4,
		ZoneRows:        6,
		ZoneCols:        6,
		TargetShutterS:  1.0 / 60.0,
		MaxAlternatives: 5,
	}
}

// sanitized fills zero-valued fields with defaults so a partially
// populated Params is always usable.
func (p Params) sanitized() Params {
	d := DefaultParams()
	if p.TargetISO <= 0 {
		p.TargetISO = d.TargetISO
	}
	if p.SampleStride <= 0 {
		p.SampleStride = d.SampleStride
	}
	if p.ZoneRows <= 0 {
		p.ZoneRows = d.ZoneRows
	}
	if p.ZoneCols <= 0 {
		p.ZoneCols = d.ZoneCols
	}
	if p.TargetShutterS <= 0 {
		p.TargetShutterS = d.TargetShutterS
	}
	if p.MaxAlternatives <= 0 {
		p.MaxAlternatives = d.MaxAlternatives
	}
	return p
}

// Engine computes the three exposure recommendations. It carries the
// only metering state that survives across frames: the last-known scene
// EV100 and aperture, written once per captured frame by the scene mode
// and read by the zonal and subject-biased modes.
//
// Writes happen on the frame-arrival goroutine only; the mutex exists
// so the heavy-pass goroutine and monitor observers never see a torn
// pair.
type Engine struct {
	params Params

	mu            sync.RWMutex
	lastEV100     float64
	lastApertureN float64
	valid         bool
}

// NewEngine creates a metering engine with the given parameters.
func NewEngine(params Params) *Engine {
	return &Engine{params: params.sanitized()}
}

// Params returns the engine's parameters.
func (e *Engine) Params() Params { return e.params }

// setScene records the scene EV100 and aperture measured from the
// device's instantaneous exposure triple.
func (e *Engine) setScene(ev100, apertureN float64) {
	e.mu.Lock()
	e.lastEV100 = ev100
	e.lastApertureN = apertureN
	e.valid = true
	e.mu.Unlock()
}

// SceneState returns the last-known scene EV100 and aperture. ok is
// false before the first valid frame.
func (e *Engine) SceneState() (ev100, apertureN float64, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastEV100, e.lastApertureN, e.valid
}
