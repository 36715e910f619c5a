package main

import (
	"context"
	"math"
	"time"

	"github.com/kestrel-optics/exposure.report/internal/timeutil"
	"github.com/kestrel-optics/exposure.report/internal/vision"
	"github.com/kestrel-optics/exposure.report/internal/vision/l1tensor"
	"github.com/kestrel-optics/exposure.report/internal/vision/pipeline"
)

// FrameSource delivers capture frames to the analyzer. Implementations
// block in Run until ctx is cancelled or the source is exhausted.
type FrameSource interface {
	Run(ctx context.Context, emit func(*pipeline.Frame)) error
}

// SyntheticSource generates test frames without camera hardware: a sky
// gradient over a dark ground band with a bright subject block, plus a
// matching segmentation raster and a centered saliency blob. Scene
// brightness wanders slowly so the metering output moves.
type SyntheticSource struct {
	Width  int
	Height int
	FPS    float64
	Crop   vision.CropRect
	Clock  timeutil.Clock
}

const (
	synthClassSky    = 0
	synthClassGround = 1
	synthClassPerson = 2
)

// SyntheticLabels returns the label set matching the synthetic scene.
func SyntheticLabels() []string {
	return []string{"sky", "ground", "person"}
}

func (s *SyntheticSource) sanitized() SyntheticSource {
	out := *s
	if out.Width <= 0 {
		out.Width = 320
	}
	if out.Height <= 0 {
		out.Height = 240
	}
	if out.FPS <= 0 {
		out.FPS = 10
	}
	if out.Crop.W <= 0 || out.Crop.H <= 0 {
		out.Crop = vision.FullFrame()
	}
	if out.Clock == nil {
		out.Clock = timeutil.RealClock{}
	}
	return out
}

// Run emits frames at the configured rate until ctx is cancelled.
func (s *SyntheticSource) Run(ctx context.Context, emit func(*pipeline.Frame)) error {
	cfg := s.sanitized()
	ticker := cfg.Clock.NewTicker(time.Duration(float64(time.Second) / cfg.FPS))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			seq++
			emit(cfg.frame(seq, now))
		}
	}
}

// frame renders one synthetic frame. Brightness wanders on a slow sine
// so consecutive frames meter differently.
func (s *SyntheticSource) frame(seq uint64, now time.Time) *pipeline.Frame {
	w, h := s.Width, s.Height
	wander := 0.85 + 0.15*math.Sin(float64(seq)/40.0)

	// Subject block: roughly centered, a quarter of the frame wide.
	sx0, sx1 := w*3/8, w*5/8
	sy0, sy1 := h*3/8, h*5/8
	groundY := h * 2 / 3

	stride := w * 4
	pixels := make([]byte, h*stride)
	segW, segH := w/4, h/4
	seg := make([]byte, segW*segH)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var b, g, r float64
			switch {
			case x >= sx0 && x < sx1 && y >= sy0 && y < sy1:
				b, g, r = 0.55, 0.60, 0.70 // subject, brighter than surroundings
			case y >= groundY:
				b, g, r = 0.10, 0.12, 0.12 // ground band
			default:
				// Sky gradient, brightest at the top.
				grad := 1.0 - 0.5*float64(y)/float64(groundY)
				b, g, r = 0.95*grad, 0.80*grad, 0.65*grad
			}
			off := y*stride + x*4
			pixels[off] = synthEncode(b * wander)
			pixels[off+1] = synthEncode(g * wander)
			pixels[off+2] = synthEncode(r * wander)
			pixels[off+3] = 255
		}
	}

	for sy := 0; sy < segH; sy++ {
		y := sy * h / segH
		for sx := 0; sx < segW; sx++ {
			x := sx * w / segW
			switch {
			case x >= sx0 && x < sx1 && y >= sy0 && y < sy1:
				seg[sy*segW+sx] = synthClassPerson
			case y >= groundY:
				seg[sy*segW+sx] = synthClassGround
			default:
				seg[sy*segW+sx] = synthClassSky
			}
		}
	}

	// Saliency blob over the subject.
	sal := make([]byte, w*h)
	cx, cy := float64(w)/2, float64(h)/2
	sigma := float64(w) / 6
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			sal[y*w+x] = byte(255 * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)))
		}
	}

	// Device triple: a plausible daylight exposure that tracks the
	// brightness wander the way a camera's own AE loop would.
	shutter := 1.0 / (250.0 * wander)

	return &pipeline.Frame{
		Seq:    seq,
		Time:   now,
		Buffer: &vision.FrameBuffer{Width: w, Height: h, Stride: stride, Pixels: pixels},
		Crop:   s.Crop,
		Device: vision.ExposureTriple{ApertureN: 5.6, ShutterS: shutter, ISO: 100},
		Model: &l1tensor.ModelOutput{
			Raster: &l1tensor.ByteRaster{Width: segW, Height: segH, Stride: segW, Data: seg},
		},
		Saliency: &l1tensor.SaliencyRaster{Width: w, Height: h, Channels: 1, Stride: w, Data: sal},
	}
}

// synthEncode converts a linear intensity in [0,1] to an sRGB byte.
func synthEncode(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	var e float64
	if v <= 0.0031308 {
		e = v * 12.92
	} else {
		e = 1.055*math.Pow(v, 1/2.4) - 0.055
	}
	return byte(e*255 + 0.5)
}
