// Package l4overlay owns Layer 4 (Overlay) of the camera analysis data
// model: rendering the class index map as a premultiplied color raster
// for display, and producing the sorted class-coverage list.
//
// Dependency rule: L4 may depend on L1-L3 and the shared vision package,
// but never on L5+.
package l4overlay

import (
	"image"
	"sort"

	"github.com/kestrel-optics/exposure.report/internal/vision/l1tensor"
	"github.com/kestrel-optics/exposure.report/internal/vision/l3subject"
)

// Alpha levels for the overlay. The selected subject's pixels are
// rendered brighter so the subject reads at a glance.
const (
	AlphaSubject = 224
	AlphaOther   = 112
)

// Multipliers for the per-class color hash. Any class index maps to a
// stable, well-spread color without a palette table.
const (
	hashMulR = 137
	hashMulG = 97
	hashMulB = 173
)

// ClassColor returns the deterministic base color for a class index,
// before alpha premultiplication.
func ClassColor(class int) (r, g, b uint8) {
	n := class + 1 // keep class 0 off pure black
	return uint8(n * hashMulR % 256), uint8(n * hashMulG % 256), uint8(n * hashMulB % 256)
}

// Rasterize maps the index map to a premultiplied RGBA overlay at the
// segmentation grid resolution. Pixels of the subject class get
// AlphaSubject, all others AlphaOther; colors are premultiplied by
// alpha before packing.
func Rasterize(index []int32, width, height int, subject l3subject.Choice) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	// Per-class premultiplied pixels are cached lazily; a frame rarely
	// holds more than a handful of classes.
	type packed struct {
		r, g, b, a uint8
	}
	cache := map[int64]packed{}

	for y := 0; y < height; y++ {
		row := index[y*width:]
		off := img.PixOffset(0, y)
		for x := 0; x < width; x++ {
			class := int(row[x])
			alpha := uint8(AlphaOther)
			if class == subject.Class {
				alpha = AlphaSubject
			}
			key := int64(class)<<8 | int64(alpha)
			px, ok := cache[key]
			if !ok {
				r, g, b := ClassColor(class)
				a := uint32(alpha)
				px = packed{
					r: uint8(uint32(r) * a / 255),
					g: uint8(uint32(g) * a / 255),
					b: uint8(uint32(b) * a / 255),
					a: alpha,
				}
				cache[key] = px
			}
			img.Pix[off] = px.r
			img.Pix[off+1] = px.g
			img.Pix[off+2] = px.b
			img.Pix[off+3] = px.a
			off += 4
		}
	}
	return img
}

// ClassCoverage is one row of the coverage list: a class, its display
// name, and the percentage of the frame it occupies.
type ClassCoverage struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
	Class   int     `json:"class"`
}

// Coverage builds the per-class coverage list from the final class
// stats: every class with a non-zero pixel count, as a percentage of
// all classified pixels, sorted by descending percentage. Class names
// come from the label table, trimmed of metadata artifacts; indices
// beyond the table get the synthetic fallback name.
func Coverage(stats *l1tensor.ClassStats, labels *l1tensor.LabelTable) []ClassCoverage {
	if stats == nil {
		return nil
	}
	total := stats.TotalPixels()
	if total == 0 {
		return nil
	}
	list := make([]ClassCoverage, 0, 8)
	for class, count := range stats.Counts {
		if count == 0 {
			continue
		}
		list = append(list, ClassCoverage{
			Name:    l1tensor.CleanLabel(labels.Name(class)),
			Percent: 100 * float64(count) / float64(total),
			Class:   class,
		})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Percent > list[j].Percent })
	return list
}
