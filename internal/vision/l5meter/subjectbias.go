package l5meter

import (
	"fmt"
	"math"

	"github.com/kestrel-optics/exposure.report/internal/vision"
)

// SubjectResult is the subject-biased mode output.
type SubjectResult struct {
	Main    Result  `json:"main"`
	DeltaEV float64 `json:"delta_ev"`
	// AreaFraction is the subject's share of the sampled crop, which
	// also acts as the bias weight.
	AreaFraction float64 `json:"area_fraction"`
}

// SubjectBiased meters for the selected subject class. Two coarse-
// stride luminance histograms are built over the active crop: one for
// pixels whose (nearest-neighbor) segmentation class is the subject,
// one for everything else. The correction drives the subject's median
// toward mid gray, weighted by the subject's area fraction (a sliver of
// a subject barely biases the exposure; a dominant one fully does), and
// is clamped so the background's tails stay inside the guard band when
// background pixels exist.
//
// Returns an error when no sampled pixel belongs to the subject class;
// the caller leaves this mode's output unset for the frame.
func (e *Engine) SubjectBiased(
	frame *vision.FrameBuffer,
	crop vision.CropRect,
	index []int32,
	segWidth, segHeight int,
	subjectClass int,
) (*SubjectResult, error) {
	ev100, apertureN, ok := e.SceneState()
	if !ok {
		return nil, fmt.Errorf("no scene EV100 yet")
	}
	if !frame.Valid() {
		return nil, fmt.Errorf("frame buffer not readable")
	}
	if segWidth <= 0 || segHeight <= 0 || len(index) < segWidth*segHeight {
		return nil, fmt.Errorf("index map %dx%d does not match %d entries", segWidth, segHeight, len(index))
	}
	if subjectClass < 0 {
		return nil, fmt.Errorf("no subject selected")
	}

	x0, y0, x1, y1 := crop.PixelBounds(frame.Width, frame.Height)
	stride := e.params.SampleStride

	var subject, background Histogram
	for y := y0; y < y1; y += stride {
		sy := y * segHeight / frame.Height
		segRow := index[sy*segWidth:]
		for x := x0; x < x1; x += stride {
			sx := x * segWidth / frame.Width
			b, g, r, _ := frame.BGRA(x, y)
			luma := vision.LinearLuma(b, g, r)
			if int(segRow[sx]) == subjectClass {
				subject.Add(luma)
			} else {
				background.Add(luma)
			}
		}
	}
	if subject.Count() == 0 {
		return nil, fmt.Errorf("no sampled pixel classified as subject class %d", subjectClass)
	}

	_, subjMedian, _, err := subject.Percentiles()
	if err != nil {
		return nil, err
	}

	sampled := subject.Count() + background.Count()
	areaFraction := float64(subject.Count()) / float64(sampled)

	// Bias strength scales with how much of the frame the subject
	// occupies, capped at full weight.
	weight := math.Min(1, areaFraction)
	deltaEV := weight * math.Log2(subjMedian/midGrayRef)

	if background.Count() > 0 {
		bgP5, _, bgP95, err := background.Percentiles()
		if err == nil {
			deltaEV = clampDeltaEV(deltaEV, bgP5, bgP95)
		}
	}

	shutter, err := SolveShutter(ev100+deltaEV, apertureN, e.params.TargetISO)
	if err != nil {
		return nil, err
	}
	return &SubjectResult{
		Main:         Result{ApertureN: apertureN, ShutterS: shutter, ISO: e.params.TargetISO},
		DeltaEV:      deltaEV,
		AreaFraction: areaFraction,
	}, nil
}
