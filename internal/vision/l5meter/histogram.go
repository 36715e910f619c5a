package l5meter

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// histogramBins is the bin count for all luminance histograms.
const histogramBins = 256

// Histogram accumulates linear luminance samples in [0,1] into 256
// equal-width bins.
type Histogram struct {
	bins  [histogramBins]float64
	count int
}

// Add records one linear luminance sample. Values are clamped into
// [0,1] before binning.
func (h *Histogram) Add(luma float64) {
	if luma < 0 {
		luma = 0
	}
	if luma > 1 {
		luma = 1
	}
	bin := int(luma * (histogramBins - 1))
	h.bins[bin]++
	h.count++
}

// Count returns the number of samples recorded.
func (h *Histogram) Count() int { return h.count }

// binCenters holds the luminance value at the center of each bin,
// shared by every percentile computation.
var binCenters [histogramBins]float64

// midGrayRef is MidGray quantized to its bin center. Corrections are
// computed against this reference so a histogram whose median sits in
// the mid-gray bin yields a correction of exactly zero instead of a
// quantization residue.
var midGrayRef float64

func init() {
	for i := range binCenters {
		binCenters[i] = (float64(i) + 0.5) / histogramBins
	}
	mg := MidGray * float64(histogramBins-1)
	midGrayRef = binCenters[int(mg)]
}

// Percentiles returns the 5th, 50th and 95th percentile luminance of
// the histogram, computed as a weighted empirical quantile over the bin
// centers. Returns an error for an empty histogram; callers treat that
// as missing input and leave the mode's output unset.
func (h *Histogram) Percentiles() (p5, p50, p95 float64, err error) {
	if h.count == 0 {
		return 0, 0, 0, fmt.Errorf("empty luminance histogram")
	}
	// binCenters is already sorted ascending, as stat.Quantile requires.
	p5 = stat.Quantile(0.05, stat.Empirical, binCenters[:], h.bins[:])
	p50 = stat.Quantile(0.50, stat.Empirical, binCenters[:], h.bins[:])
	p95 = stat.Quantile(0.95, stat.Empirical, binCenters[:], h.bins[:])
	return p5, p50, p95, nil
}
