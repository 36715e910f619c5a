package l5meter

import (
	"fmt"
	"math"
	"sort"

	"github.com/kestrel-optics/exposure.report/internal/vision"
)

// SceneResult is the scene-mode output: the recommendation at the
// device's current aperture plus alternative (aperture, shutter) pairs
// near the aperture that would hit the target shutter time.
type SceneResult struct {
	Main         Result   `json:"main"`
	EV100        float64  `json:"ev100"`
	Alternatives []Result `json:"alternatives,omitempty"`
}

// Scene meters from the device's instantaneous exposure triple.
// It computes the scene EV100, stores it (with the aperture) as the
// session's last-known scene state, then resolves the shutter time for
// the user-selected ISO at the same aperture.
//
// It also proposes up to MaxAlternatives (aperture, shutter) pairs: the
// aperture that would hit TargetShutterS is solved, and the reference
// full stops are ranked by absolute distance from it.
func (e *Engine) Scene(device vision.ExposureTriple) (*SceneResult, error) {
	if !device.Positive() {
		return nil, fmt.Errorf("device exposure triple not positive: %+v", device)
	}
	ev100, err := EV100(device.ApertureN, device.ShutterS, device.ISO)
	if err != nil {
		return nil, err
	}
	e.setScene(ev100, device.ApertureN)

	shutter, err := SolveShutter(ev100, device.ApertureN, e.params.TargetISO)
	if err != nil {
		return nil, err
	}
	res := &SceneResult{
		Main:  Result{ApertureN: device.ApertureN, ShutterS: shutter, ISO: e.params.TargetISO},
		EV100: ev100,
	}

	// Alternatives: rank the full stops by distance from the aperture
	// that would give the target shutter at this light level.
	targetN, err := SolveAperture(ev100, e.params.TargetShutterS, e.params.TargetISO)
	if err != nil {
		return res, nil
	}
	stops := FullStops
	sorted := stops[:]
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i]-targetN) < math.Abs(sorted[j]-targetN)
	})
	for _, stop := range sorted {
		if len(res.Alternatives) >= e.params.MaxAlternatives {
			break
		}
		altShutter, err := SolveShutter(ev100, stop, e.params.TargetISO)
		if err != nil {
			continue
		}
		res.Alternatives = append(res.Alternatives, Result{
			ApertureN: stop,
			ShutterS:  altShutter,
			ISO:       e.params.TargetISO,
		})
	}
	return res, nil
}
