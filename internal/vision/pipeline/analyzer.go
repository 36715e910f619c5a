package pipeline

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/kestrel-optics/exposure.report/internal/vision"
	"github.com/kestrel-optics/exposure.report/internal/vision/l1tensor"
	"github.com/kestrel-optics/exposure.report/internal/vision/l2fuse"
	"github.com/kestrel-optics/exposure.report/internal/vision/l3subject"
	"github.com/kestrel-optics/exposure.report/internal/vision/l4overlay"
	"github.com/kestrel-optics/exposure.report/internal/vision/l5meter"
)

// Frame is one capture-side submission: the BGRA preview buffer plus
// whatever the model produced for it. Model and Saliency are optional;
// a frame without a model output still runs the per-frame metering
// path.
type Frame struct {
	Seq      uint64
	Time     time.Time
	Buffer   *vision.FrameBuffer
	Crop     vision.CropRect
	Device   vision.ExposureTriple
	Model    *l1tensor.ModelOutput
	Saliency *l1tensor.SaliencyRaster

	// Metering captured on the arrival path, carried into the analysis
	// result so the slow semantic output pairs with the metering of its
	// own frame rather than a later one.
	scene *l5meter.SceneResult
	zonal *l5meter.ZonalResult
}

// FrameAnalysis is the full output for one semantically analyzed frame.
type FrameAnalysis struct {
	Seq    uint64    `json:"seq"`
	Time   time.Time `json:"time"`
	Width  int       `json:"width"`
	Height int       `json:"height"`

	Index    []int32                   `json:"-"`
	Subject  l3subject.Choice          `json:"subject"`
	Coverage []l4overlay.ClassCoverage `json:"coverage"`
	Overlay  *image.RGBA               `json:"-"`

	Scene     *l5meter.SceneResult   `json:"scene,omitempty"`
	Zonal     *l5meter.ZonalResult   `json:"zonal,omitempty"`
	SubjectEV *l5meter.SubjectResult `json:"subject_ev,omitempty"`

	Elapsed time.Duration `json:"elapsed_ns"`
}

// Config holds dependencies for the analyzer.
type Config struct {
	Engine *l5meter.Engine
	Labels *l1tensor.LabelTable

	// Augmentation enables the mirrored second decode pass fused with
	// the primary pass.
	Augmentation bool

	// Denoise enables the 3x3 majority filter on the fused index map.
	Denoise bool

	// OnResult, when non-nil, is called for every completed analysis.
	// It runs on the analyzer goroutine; long-running sinks should hand
	// off internally.
	OnResult func(*FrameAnalysis)
}

// Analyzer runs the semantic analysis pipeline. Frames are admitted
// through a capacity-1 mailbox: when a semantic pass is still in
// flight, newly arriving frames are dropped rather than queued, so the
// analysis output always reflects a recent frame. The cheap metering
// path runs on every submitted frame regardless.
type Analyzer struct {
	cfg     Config
	frameCh chan *Frame
	stats   *AnalyzerStats

	mu        sync.RWMutex
	latest    *FrameAnalysis
	lastScene *l5meter.SceneResult
	lastZonal *l5meter.ZonalResult

	startOnce sync.Once
	done      chan struct{}
}

// NewAnalyzer creates an Analyzer. Engine and Labels are required.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("analyzer requires a metering engine")
	}
	if cfg.Labels == nil {
		return nil, fmt.Errorf("analyzer requires a label table")
	}
	return &Analyzer{
		cfg:     cfg,
		frameCh: make(chan *Frame, 1),
		stats:   NewAnalyzerStats(),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the semantic worker goroutine. It returns immediately;
// the worker exits when ctx is cancelled.
func (a *Analyzer) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		go a.run(ctx)
	})
}

func (a *Analyzer) run(ctx context.Context) {
	defer close(a.done)
	diagf("[Analyzer] Semantic worker started (augmentation=%v denoise=%v)",
		a.cfg.Augmentation, a.cfg.Denoise)
	for {
		select {
		case <-ctx.Done():
			diagf("[Analyzer] Semantic worker stopping: %v", ctx.Err())
			return
		case f := <-a.frameCh:
			a.analyze(f)
		}
	}
}

// Wait blocks until the worker goroutine has exited.
func (a *Analyzer) Wait() {
	<-a.done
}

// Stats returns the analyzer's counters.
func (a *Analyzer) Stats() StatsSnapshot {
	return a.stats.Snapshot()
}

// Submit runs the metering path for the frame and, when a model output
// is attached, offers it to the semantic worker. The offer never
// blocks: if the worker is still busy with an earlier frame, this frame
// is dropped and counted.
func (a *Analyzer) Submit(f *Frame) {
	if f == nil || f.Buffer == nil {
		return
	}
	a.stats.AddFrame()

	scene, err := a.cfg.Engine.Scene(f.Device)
	if err != nil {
		opsf("[Analyzer] Scene metering failed for frame %d: %v", f.Seq, err)
	}
	// Zonal runs regardless of this frame's scene outcome; it only needs
	// scene state from some earlier frame, which the engine checks itself.
	zonal, err := a.cfg.Engine.Zonal(f.Buffer, f.Crop)
	if err != nil {
		diagf("[Analyzer] Zonal metering failed for frame %d: %v", f.Seq, err)
	}
	f.scene = scene
	f.zonal = zonal
	a.setMeter(scene, zonal)

	if f.Model == nil {
		tracef("[Analyzer] Frame %d: metering only, no model output", f.Seq)
		return
	}

	select {
	case a.frameCh <- f:
	default:
		// Mailbox full — drop frame to avoid queueing stale work behind
		// a semantic pass that is still in flight.
		a.stats.AddDropped()
		tracef("[Analyzer] Dropped frame %d: semantic pass busy", f.Seq)
	}
}

func (a *Analyzer) analyze(f *Frame) {
	start := time.Now()

	out := *f.Model
	width, height, err := out.GridSize()
	if err != nil {
		opsf("[Analyzer] Frame %d: %v", f.Seq, err)
		a.stats.AddError()
		return
	}

	sal, err := l1tensor.NewSaliencySampler(f.Saliency, width, height)
	if err != nil {
		opsf("[Analyzer] Frame %d: saliency sampler: %v", f.Seq, err)
		a.stats.AddError()
		return
	}

	primary, err := l1tensor.Decode(out, sal, a.cfg.Labels)
	if err != nil {
		opsf("[Analyzer] Frame %d: decode failed: %v", f.Seq, err)
		a.stats.AddError()
		return
	}

	index := primary.Index
	stats := primary.Stats
	recompute := false

	if a.cfg.Augmentation {
		if fused, err := a.mirrorPass(out, primary); err != nil {
			// The primary decode stands on its own when the mirror pass
			// fails; log and carry on.
			diagf("[Analyzer] Frame %d: mirror pass skipped: %v", f.Seq, err)
		} else {
			index = fused
			recompute = true
		}
	}

	if a.cfg.Denoise {
		index = l2fuse.Denoise3x3(index, width, height)
		recompute = true
	}

	if recompute {
		stats = l2fuse.RecomputeStats(index, width, height, sal)
	}

	subject := l3subject.Select(stats, width, height, a.cfg.Labels)
	coverage := l4overlay.Coverage(stats, a.cfg.Labels)
	overlay := l4overlay.Rasterize(index, width, height, subject)

	var subjectEV *l5meter.SubjectResult
	if !subject.None() {
		subjectEV, err = a.cfg.Engine.SubjectBiased(f.Buffer, f.Crop, index, width, height, subject.Class)
		if err != nil {
			diagf("[Analyzer] Frame %d: subject metering unavailable: %v", f.Seq, err)
		}
	}

	res := &FrameAnalysis{
		Seq:       f.Seq,
		Time:      f.Time,
		Width:     width,
		Height:    height,
		Index:     index,
		Subject:   subject,
		Coverage:  coverage,
		Overlay:   overlay,
		Scene:     f.scene,
		Zonal:     f.zonal,
		SubjectEV: subjectEV,
		Elapsed:   time.Since(start),
	}

	a.mu.Lock()
	a.latest = res
	a.mu.Unlock()

	a.stats.AddAnalyzed(res.Elapsed)
	tracef("[Analyzer] Frame %d analyzed in %v: subject=%q coverage=%d classes",
		f.Seq, res.Elapsed, subject.Name, len(coverage))

	if a.cfg.OnResult != nil {
		a.cfg.OnResult(res)
	}
}

// mirrorPass decodes a horizontally flipped copy of the model output,
// restores its orientation, and fuses it with the primary decode.
func (a *Analyzer) mirrorPass(out l1tensor.ModelOutput, primary *l1tensor.Decoded) ([]int32, error) {
	mirrored, err := l2fuse.MirrorOutput(out)
	if err != nil {
		return nil, err
	}
	second, err := l1tensor.Decode(mirrored, nil, a.cfg.Labels)
	if err != nil {
		return nil, err
	}
	l2fuse.UnmirrorIndex(second.Index, second.Width, second.Height)
	return l2fuse.Fuse(primary, second, l2fuse.PolicyPreferFirst)
}

func (a *Analyzer) setMeter(scene *l5meter.SceneResult, zonal *l5meter.ZonalResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if scene != nil {
		a.lastScene = scene
	}
	if zonal != nil {
		a.lastZonal = zonal
	}
}

// Latest returns the most recent completed analysis, or nil before the
// first semantic pass finishes.
func (a *Analyzer) Latest() *FrameAnalysis {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// Meter returns the most recent scene and zonal metering results. Either
// may be nil before the first successful metering pass.
func (a *Analyzer) Meter() (*l5meter.SceneResult, *l5meter.ZonalResult) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastScene, a.lastZonal
}
