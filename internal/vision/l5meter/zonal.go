package l5meter

import (
	"fmt"
	"math"
	"sort"

	"github.com/kestrel-optics/exposure.report/internal/vision"
	"gonum.org/v1/gonum/stat"
)

// ZoneCell is the per-cell diagnostic output of zonal metering.
type ZoneCell struct {
	Row     int     `json:"row"`
	Col     int     `json:"col"`
	Samples int     `json:"samples"`
	P5      float64 `json:"p5"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	DeltaEV float64 `json:"delta_ev"`
}

// ZonalResult is the zonal-mode output: the scene-wide exposure
// correction, the resulting recommendation, and the per-cell grid for
// diagnostics and the monitor heatmap.
type ZonalResult struct {
	Main    Result     `json:"main"`
	DeltaEV float64    `json:"delta_ev"`
	Cells   []ZoneCell `json:"cells"`
}

// Zonal partitions the active crop of the raw frame into a ZoneRows ×
// ZoneCols grid, meters each cell from a coarse-stride luminance
// histogram, and combines the per-cell corrections with a pixel-count-
// weighted median. The combined correction is applied to the last-known
// scene EV100 and resolved to a shutter time at the last aperture and
// the user-selected ISO.
//
// Requires a prior valid scene measurement; returns an error (leaving
// the zonal output unset for this frame) when there is none, when the
// frame is unreadable, or when no cell collected any samples.
func (e *Engine) Zonal(frame *vision.FrameBuffer, crop vision.CropRect) (*ZonalResult, error) {
	ev100, apertureN, ok := e.SceneState()
	if !ok {
		return nil, fmt.Errorf("no scene EV100 yet")
	}
	if !frame.Valid() {
		return nil, fmt.Errorf("frame buffer not readable")
	}

	x0, y0, x1, y1 := crop.PixelBounds(frame.Width, frame.Height)
	cropW, cropH := x1-x0, y1-y0
	rows, cols := e.params.ZoneRows, e.params.ZoneCols
	if cropW < cols || cropH < rows {
		return nil, fmt.Errorf("crop %dx%d smaller than zone grid %dx%d", cropW, cropH, cols, rows)
	}
	stride := e.params.SampleStride

	res := &ZonalResult{Cells: make([]ZoneCell, 0, rows*cols)}
	deltas := make([]float64, 0, rows*cols)
	weights := make([]float64, 0, rows*cols)

	for row := 0; row < rows; row++ {
		cellY0 := y0 + row*cropH/rows
		cellY1 := y0 + (row+1)*cropH/rows
		for col := 0; col < cols; col++ {
			cellX0 := x0 + col*cropW/cols
			cellX1 := x0 + (col+1)*cropW/cols

			var hist Histogram
			for y := cellY0; y < cellY1; y += stride {
				for x := cellX0; x < cellX1; x += stride {
					b, g, r, _ := frame.BGRA(x, y)
					hist.Add(vision.LinearLuma(b, g, r))
				}
			}

			cell := ZoneCell{Row: row, Col: col, Samples: hist.Count()}
			if p5, p50, p95, err := hist.Percentiles(); err == nil {
				cell.P5, cell.P50, cell.P95 = p5, p50, p95
				// Drive the cell median toward mid gray, but never so
				// far that its tails leave the guard band.
				cell.DeltaEV = clampDeltaEV(math.Log2(p50/midGrayRef), p5, p95)
				deltas = append(deltas, cell.DeltaEV)
				weights = append(weights, float64(hist.Count()))
			}
			res.Cells = append(res.Cells, cell)
		}
	}
	if len(deltas) == 0 {
		return nil, fmt.Errorf("no zone collected luminance samples")
	}

	res.DeltaEV = weightedMedian(deltas, weights)

	shutter, err := SolveShutter(ev100+res.DeltaEV, apertureN, e.params.TargetISO)
	if err != nil {
		return nil, err
	}
	res.Main = Result{ApertureN: apertureN, ShutterS: shutter, ISO: e.params.TargetISO}
	return res, nil
}

// weightedMedian computes the weight-weighted median of values. A
// median, not a mean: a handful of extreme cells (sun in one zone) must
// not drag the scene-wide correction.
func weightedMedian(values, weights []float64) float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })
	sortedVals := make([]float64, len(values))
	sortedWts := make([]float64, len(values))
	for i, j := range idx {
		sortedVals[i] = values[j]
		sortedWts[i] = weights[j]
	}
	return stat.Quantile(0.5, stat.Empirical, sortedVals, sortedWts)
}
