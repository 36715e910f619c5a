// Package l3subject owns Layer 3 (Subject) of the camera analysis data
// model: scoring every populated segmentation class and selecting the
// single main-subject class for the frame.
//
// Dependency rule: L3 may depend on L1-L2 and the shared vision package,
// but never on L4+.
package l3subject

import (
	"math"
	"strings"

	"github.com/kestrel-optics/exposure.report/internal/vision/l1tensor"
)

// NoSubject is the sentinel class index meaning no class was populated.
const NoSubject = -1

// Score weights. The four criteria are normalized to [0,1] before
// weighting, so the total is also in [0,1].
const (
	weightSaliency = 0.50
	weightGeometry = 0.25
	weightPrior    = 0.15
	weightSize     = 0.10

	// sizeClampFraction caps the relative-area criterion so wall-to-wall
	// background classes cannot win on size alone.
	sizeClampFraction = 0.3

	// geoFalloffFraction scales the centrality falloff to a quarter of
	// the frame diagonal.
	geoFalloffFraction = 0.25
)

// priorTable maps label words to semantic priors. Checked in order; the
// first matching word wins.
var priorTable = []struct {
	words []string
	prior float64
}{
	{[]string{"face"}, 1.0},
	{[]string{"person", "people", "human"}, 0.9},
	{[]string{"cat", "dog", "animal", "bird"}, 0.8},
	{[]string{"car", "vehicle", "bike"}, 0.6},
	{[]string{"sky", "road", "wall", "floor", "background"}, 0.1},
}

const defaultPrior = 0.5

// SemanticPrior returns the fixed prior for a class label. Matching is
// case-insensitive on whole words, so "road surface" matches "road"
// without "surface" tripping the "face" entry.
func SemanticPrior(label string) float64 {
	fields := strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	for _, entry := range priorTable {
		for _, word := range entry.words {
			for _, field := range fields {
				if field == word {
					return entry.prior
				}
			}
		}
	}
	return defaultPrior
}

// Choice is the selected main subject: a class index (or NoSubject) and
// its display name, plus the winning score for diagnostics.
type Choice struct {
	Class int
	Name  string
	Score float64
}

// None reports whether no subject was selected.
func (c Choice) None() bool { return c.Class == NoSubject }

// Select scores every class with a non-zero pixel count and returns the
// best one. Ties go to the first-encountered (lowest) class index.
// Returns a NoSubject choice when no class is populated.
//
// Per-class score:
//
//	0.50·salAvg + 0.25·geo + 0.15·prior + 0.10·sizeClamped
//
// where salAvg is mean saliency over the class's pixels, geo decays
// exponentially with centroid distance from the frame center, prior
// comes from the label substring table, and sizeClamped is the class's
// area fraction capped at 0.3.
func Select(stats *l1tensor.ClassStats, width, height int, labels *l1tensor.LabelTable) Choice {
	choice := Choice{Class: NoSubject}
	if stats == nil || width <= 0 || height <= 0 {
		return choice
	}
	total := stats.TotalPixels()
	if total == 0 {
		return choice
	}

	centerX := float64(width) / 2
	centerY := float64(height) / 2
	diagonal := math.Hypot(float64(width), float64(height))
	falloff := geoFalloffFraction * diagonal

	for class := 0; class < stats.NumClasses(); class++ {
		count := stats.Counts[class]
		if count == 0 {
			continue
		}

		salAvg := stats.Saliency[class] / float64(count)

		cx, cy := stats.Centroid(class)
		dist := math.Hypot(cx-centerX, cy-centerY)
		geo := math.Exp(-dist / falloff)

		prior := SemanticPrior(labels.Name(class))

		size := float64(count) / float64(total)
		if size > sizeClampFraction {
			size = sizeClampFraction
		}

		score := weightSaliency*salAvg + weightGeometry*geo + weightPrior*prior + weightSize*size
		// strict > keeps the lowest class index on exact ties
		if choice.None() || score > choice.Score {
			choice = Choice{Class: class, Name: labels.Name(class), Score: score}
		}
	}
	return choice
}
