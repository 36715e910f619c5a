package monitor

import (
	"fmt"
	"image/color"
	"io"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kestrel-optics/exposure.report/internal/vision/pipeline"
)

// MeterPlotter records metering outputs over time for visualization.
// It accumulates one sample per analyzed frame and renders the series
// as a PNG on demand.
type MeterPlotter struct {
	mu         sync.Mutex
	maxSamples int
	samples    []meterSample
}

type meterSample struct {
	frameIdx       int
	sceneEV100     float64
	zonalDeltaEV   float64
	subjectDeltaEV float64
	hasZonal       bool
	hasSubject     bool
}

// NewMeterPlotter creates a plotter that retains up to maxSamples
// recent frames (default 600 when maxSamples <= 0).
func NewMeterPlotter(maxSamples int) *MeterPlotter {
	if maxSamples <= 0 {
		maxSamples = 600
	}
	return &MeterPlotter{maxSamples: maxSamples}
}

// Record captures the metering outputs of one analyzed frame.
func (mp *MeterPlotter) Record(res *pipeline.FrameAnalysis) {
	if res == nil || res.Scene == nil {
		return
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	sample := meterSample{
		frameIdx:   len(mp.samples),
		sceneEV100: res.Scene.EV100,
	}
	if len(mp.samples) > 0 {
		sample.frameIdx = mp.samples[len(mp.samples)-1].frameIdx + 1
	}
	if res.Zonal != nil {
		sample.zonalDeltaEV = res.Zonal.DeltaEV
		sample.hasZonal = true
	}
	if res.SubjectEV != nil {
		sample.subjectDeltaEV = res.SubjectEV.DeltaEV
		sample.hasSubject = true
	}

	mp.samples = append(mp.samples, sample)
	if len(mp.samples) > mp.maxSamples {
		mp.samples = mp.samples[len(mp.samples)-mp.maxSamples:]
	}
}

// Len returns the number of retained samples.
func (mp *MeterPlotter) Len() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.samples)
}

// WritePNG renders the EV time series to w.
func (mp *MeterPlotter) WritePNG(w io.Writer) error {
	mp.mu.Lock()
	samples := make([]meterSample, len(mp.samples))
	copy(samples, mp.samples)
	mp.mu.Unlock()

	if len(samples) == 0 {
		return fmt.Errorf("no metering samples recorded yet")
	}

	p := plot.New()
	p.Title.Text = "Metering History"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "EV"

	scenePts := make(plotter.XYs, 0, len(samples))
	zonalPts := make(plotter.XYs, 0, len(samples))
	subjectPts := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		scenePts = append(scenePts, plotter.XY{X: float64(s.frameIdx), Y: s.sceneEV100})
		if s.hasZonal {
			zonalPts = append(zonalPts, plotter.XY{X: float64(s.frameIdx), Y: s.zonalDeltaEV})
		}
		if s.hasSubject {
			subjectPts = append(subjectPts, plotter.XY{X: float64(s.frameIdx), Y: s.subjectDeltaEV})
		}
	}

	sceneLine, err := plotter.NewLine(scenePts)
	if err != nil {
		return err
	}
	sceneLine.Color = color.RGBA{R: 0x26, G: 0x82, B: 0x8e, A: 255}
	sceneLine.Width = vg.Points(1)
	p.Add(sceneLine)
	p.Legend.Add("scene EV100", sceneLine)

	if len(zonalPts) > 0 {
		zonalLine, err := plotter.NewLine(zonalPts)
		if err != nil {
			return err
		}
		zonalLine.Color = color.RGBA{R: 0xd8, G: 0x4a, B: 0x3a, A: 255}
		zonalLine.Width = vg.Points(1)
		p.Add(zonalLine)
		p.Legend.Add("zonal ΔEV", zonalLine)
	}

	if len(subjectPts) > 0 {
		subjectLine, err := plotter.NewLine(subjectPts)
		if err != nil {
			return err
		}
		subjectLine.Color = color.RGBA{R: 0xb5, G: 0xde, B: 0x2b, A: 255}
		subjectLine.Width = vg.Points(1)
		p.Add(subjectLine)
		p.Legend.Add("subject ΔEV", subjectLine)
	}

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
