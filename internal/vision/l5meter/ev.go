package l5meter

import (
	"fmt"
	"math"
)

// MidGray is the standard 18% reflectance target used by reflective
// light meters.
const MidGray = 0.18

// Guard band for shadow/highlight clipping, in linear reflectance.
// Exposure corrections are clamped so the relevant 5th/95th percentiles
// stay inside this band.
const (
	GuardShadow    = 0.02
	GuardHighlight = 0.98
)

// FullStops is the reference set of ten full f-stops used to rank
// alternative apertures.
var FullStops = [10]float64{1.0, 1.4, 2.0, 2.8, 4.0, 5.6, 8.0, 11.0, 16.0, 22.0}

// EV100 computes the exposure value normalized to ISO 100:
//
//	EV100(N, t, S) = log2(N²/t) − log2(S/100)
//
// Returns an error for non-positive inputs; EV algebra is undefined
// there and the caller leaves that metering mode unset for the frame.
func EV100(apertureN, shutterS, iso float64) (float64, error) {
	if apertureN <= 0 || shutterS <= 0 || iso <= 0 {
		return 0, fmt.Errorf("ev100 undefined for N=%g t=%g S=%g", apertureN, shutterS, iso)
	}
	return math.Log2(apertureN*apertureN/shutterS) - math.Log2(iso/100), nil
}

// SolveShutter resolves the shutter time that yields the given EV100 at
// the given aperture and ISO:
//
//	t = N² / (2^EV100 · S/100)
func SolveShutter(ev100, apertureN, iso float64) (float64, error) {
	if apertureN <= 0 || iso <= 0 {
		return 0, fmt.Errorf("shutter undefined for N=%g S=%g", apertureN, iso)
	}
	return apertureN * apertureN / (math.Exp2(ev100) * iso / 100), nil
}

// SolveAperture resolves the aperture that yields the given EV100 at
// the given shutter time and ISO:
//
//	N = sqrt(t · 2^EV100 · S/100)
func SolveAperture(ev100, shutterS, iso float64) (float64, error) {
	if shutterS <= 0 || iso <= 0 {
		return 0, fmt.Errorf("aperture undefined for t=%g S=%g", shutterS, iso)
	}
	return math.Sqrt(shutterS * math.Exp2(ev100) * iso / 100), nil
}

// Result is one exposure recommendation: aperture N, shutter time in
// seconds, and ISO, each a positive real.
type Result struct {
	ApertureN float64 `json:"aperture_n"`
	ShutterS  float64 `json:"shutter_s"`
	ISO       float64 `json:"iso"`
}

// String formats the recommendation in conventional photographic
// notation, with shutter times below half a second shown as fractions.
func (r Result) String() string {
	shutter := fmt.Sprintf("%.1fs", r.ShutterS)
	if r.ShutterS > 0 && r.ShutterS < 0.5 {
		shutter = fmt.Sprintf("1/%.0fs", 1/r.ShutterS)
	}
	return fmt.Sprintf("f/%.1f %s ISO %.0f", r.ApertureN, shutter, r.ISO)
}

// clampDeltaEV clamps a proposed exposure correction so that, after the
// correction is applied, the given 5th and 95th luminance percentiles
// stay inside the guard band. Lowering EV100 by x multiplies recorded
// luminance by 2^x, so a positive deltaEV darkens: the highlight
// percentile imposes a lower bound on deltaEV, the shadow percentile an
// upper bound. When the histogram cannot fit in the band at any
// exposure the highlight bound wins; blown highlights are
// unrecoverable, lifted shadows are.
func clampDeltaEV(deltaEV, p5, p95 float64) float64 {
	lo := math.Inf(-1)
	hi := math.Inf(1)
	if p95 > 0 {
		lo = math.Log2(p95 / GuardHighlight)
	}
	if p5 > 0 {
		hi = math.Log2(p5 / GuardShadow)
	}
	if hi < lo {
		hi = lo
	}
	if deltaEV < lo {
		deltaEV = lo
	}
	if deltaEV > hi {
		deltaEV = hi
	}
	return deltaEV
}
