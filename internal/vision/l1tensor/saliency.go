package l1tensor

import (
	"fmt"

	"github.com/kestrel-optics/exposure.report/internal/vision"
)

// SaliencyRaster is an attention map from an external visual-attention
// model, at its own resolution. Channels is 1 (single weight byte per
// pixel) or 4 (blue, green, red, alpha, from which linear luma is
// derived). Stride is in bytes.
type SaliencyRaster struct {
	Width    int
	Height   int
	Channels int
	Stride   int
	Data     []byte
}

// SaliencySampler maps segmentation-grid coordinates to saliency
// weights in [0,1] by nearest-neighbor lookup into the source raster.
// A nil sampler is valid and returns 0 everywhere, which is the
// degrade-not-fail contract for absent saliency data.
type SaliencySampler struct {
	weights []float64
	width   int
	height  int
}

// NewSaliencySampler resamples the raster onto a targetW×targetH grid.
// Returns (nil, nil) when the raster is absent: callers carry the nil
// sampler and all per-class saliency sums come out 0.
func NewSaliencySampler(r *SaliencyRaster, targetW, targetH int) (*SaliencySampler, error) {
	if r == nil {
		return nil, nil
	}
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("degenerate target grid %dx%d", targetW, targetH)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("degenerate saliency raster %dx%d", r.Width, r.Height)
	}
	if r.Channels != 1 && r.Channels != 4 {
		return nil, fmt.Errorf("unsupported saliency channel count %d (want 1 or 4)", r.Channels)
	}
	stride := r.Stride
	if stride == 0 {
		stride = r.Width * r.Channels
	}
	if need := (r.Height-1)*stride + r.Width*r.Channels; len(r.Data) < need {
		return nil, fmt.Errorf("saliency data too short: have %d bytes, need %d", len(r.Data), need)
	}

	s := &SaliencySampler{
		weights: make([]float64, targetW*targetH),
		width:   targetW,
		height:  targetH,
	}
	for ty := 0; ty < targetH; ty++ {
		sy := ty * r.Height / targetH
		row := r.Data[sy*stride:]
		for tx := 0; tx < targetW; tx++ {
			sx := tx * r.Width / targetW
			var w float64
			if r.Channels == 1 {
				w = float64(row[sx]) / 255.0
			} else {
				off := sx * 4
				w = vision.LinearLuma(row[off], row[off+1], row[off+2])
			}
			s.weights[ty*targetW+tx] = w
		}
	}
	return s, nil
}

// At returns the saliency weight at segmentation-grid (x, y).
// Out-of-range coordinates and nil samplers return 0.
func (s *SaliencySampler) At(x, y int) float64 {
	if s == nil || x < 0 || y < 0 || x >= s.width || y >= s.height {
		return 0
	}
	return s.weights[y*s.width+x]
}
