package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/kestrel-optics/exposure.report/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// deltaEVRamp builds a diverging color ramp (underexposed blue through
// neutral gray to overexposed red) for the zone heatmap's visual map.
func deltaEVRamp(steps int) []string {
	low, _ := colorful.Hex("#31688e")
	mid, _ := colorful.Hex("#3a3a3a")
	high, _ := colorful.Hex("#d84a3a")

	colors := make([]string, 0, steps)
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		var c colorful.Color
		if t < 0.5 {
			c = low.BlendLab(mid, t*2)
		} else {
			c = mid.BlendLab(high, (t-0.5)*2)
		}
		colors = append(colors, c.Hex())
	}
	return colors
}

// handleZoneChart renders the zonal ΔEV grid as a heatmap (HTML) using
// go-echarts. This is a debugging-only endpoint (no auth) to eyeball
// the metering grid without a separate UI.
func (ws *WebServer) handleZoneChart(w http.ResponseWriter, r *http.Request) {
	_, zonal := ws.analyzer.Meter()
	if zonal == nil || len(zonal.Cells) == 0 {
		httputil.NotFound(w, "no zonal metering available yet")
		return
	}

	rows, cols := 0, 0
	maxAbs := 0.0
	for _, c := range zonal.Cells {
		if c.Row+1 > rows {
			rows = c.Row + 1
		}
		if c.Col+1 > cols {
			cols = c.Col + 1
		}
		if abs := c.DeltaEV; abs < 0 {
			if -abs > maxAbs {
				maxAbs = -abs
			}
		} else if abs > maxAbs {
			maxAbs = abs
		}
	}
	if maxAbs == 0 {
		maxAbs = 1.0
	}

	data := make([]opts.HeatMapData, 0, len(zonal.Cells))
	for _, c := range zonal.Cells {
		// Flip rows so row 0 renders at the top, matching the frame.
		data = append(data, opts.HeatMapData{
			Value: [3]interface{}{c.Col, rows - 1 - c.Row, c.DeltaEV},
		})
	}

	xLabels := make([]string, cols)
	for i := range xLabels {
		xLabels[i] = fmt.Sprintf("c%d", i)
	}
	yLabels := make([]string, rows)
	for i := range yLabels {
		yLabels[i] = fmt.Sprintf("r%d", rows-1-i)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Zone ΔEV", Theme: "dark", Width: "720px", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Zonal ΔEV Grid", Subtitle: fmt.Sprintf("grid=%dx%d overall ΔEV=%+.2f", rows, cols, zonal.DeltaEV)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(-maxAbs),
			Max:        float32(maxAbs),
			InRange:    &opts.VisualMapInRange{Color: deltaEVRamp(10)},
		}),
	)
	hm.AddSeries("delta_ev", data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleCoverageChart renders class coverage of the latest analyzed
// frame as a bar chart.
func (ws *WebServer) handleCoverageChart(w http.ResponseWriter, r *http.Request) {
	latest := ws.analyzer.Latest()
	if latest == nil || len(latest.Coverage) == 0 {
		httputil.NotFound(w, "no coverage available yet")
		return
	}

	// Coverage is sorted descending; cap the series at the top classes
	// so the chart stays readable on busy scenes.
	const maxBars = 12
	coverage := latest.Coverage
	if len(coverage) > maxBars {
		coverage = coverage[:maxBars]
	}

	x := make([]string, 0, len(coverage))
	y := make([]opts.BarData, 0, len(coverage))
	for _, c := range coverage {
		x = append(x, c.Name)
		y = append(y, opts.BarData{Value: c.Percent})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Class Coverage (%)", Subtitle: latest.Time.Format(time.RFC3339)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("coverage", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
