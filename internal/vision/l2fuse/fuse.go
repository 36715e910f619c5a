package l2fuse

import (
	"fmt"

	"github.com/kestrel-optics/exposure.report/internal/vision/l1tensor"
)

// FusePolicy selects how the two augmentation passes are combined when
// they disagree on a pixel.
type FusePolicy string

const (
	// PolicyPreferFirst keeps the original-orientation class whenever
	// the two passes disagree. This is the canonical policy: the
	// mirrored pass only ever confirms, it never overrides. Whether
	// that is the intended behavior is an open product question; the
	// policy is kept explicit here rather than silently changed.
	PolicyPreferFirst FusePolicy = "prefer_first"
)

// MirrorOutput returns a horizontally mirrored copy of the raw model
// output, so a second decode pass sees the mirrored orientation. The
// mirrored copy is materialized contiguously.
func MirrorOutput(out l1tensor.ModelOutput) (l1tensor.ModelOutput, error) {
	switch {
	case out.Raster != nil:
		return l1tensor.ModelOutput{Raster: mirrorRaster(out.Raster)}, nil
	case out.Tensor != nil:
		m, err := mirrorTensor(out.Tensor)
		if err != nil {
			return l1tensor.ModelOutput{}, err
		}
		return l1tensor.ModelOutput{Tensor: m}, nil
	default:
		return l1tensor.ModelOutput{}, fmt.Errorf("model output has neither tensor nor raster")
	}
}

func mirrorRaster(r *l1tensor.ByteRaster) *l1tensor.ByteRaster {
	stride := r.Stride
	if stride == 0 {
		stride = r.Width
	}
	out := &l1tensor.ByteRaster{
		Width:  r.Width,
		Height: r.Height,
		Stride: r.Width,
		Data:   make([]byte, r.Width*r.Height),
	}
	for y := 0; y < r.Height; y++ {
		src := r.Data[y*stride:]
		dst := out.Data[y*r.Width:]
		for x := 0; x < r.Width; x++ {
			dst[x] = src[r.Width-1-x]
		}
	}
	return out
}

// mirrorTensor flips the last (width) axis of a rank-2 or rank-3 tensor.
// The copy is element-wise so non-contiguous source strides are honored.
func mirrorTensor(t *l1tensor.Tensor) (*l1tensor.Tensor, error) {
	rank := len(t.Shape)
	if rank != 2 && rank != 3 {
		return nil, fmt.Errorf("unsupported tensor rank %d (want 2 or 3)", rank)
	}
	if len(t.Strides) != rank {
		return nil, fmt.Errorf("stride count %d does not match rank %d", len(t.Strides), rank)
	}
	var size int
	switch t.Scalar {
	case l1tensor.ScalarFloat32:
		size = 4
	case l1tensor.ScalarFloat64:
		size = 8
	case l1tensor.ScalarFloat16:
		size = 2
	default:
		return nil, fmt.Errorf("unrecognized scalar type %d", int(t.Scalar))
	}

	out := &l1tensor.Tensor{
		Shape:   append([]int(nil), t.Shape...),
		Strides: l1tensor.ContiguousStrides(t.Shape),
		Scalar:  t.Scalar,
		Data:    make([]byte, elemCount(t.Shape)*size),
	}

	// Treat rank 2 as a single-channel rank 3 to share the copy loop.
	classes, height, width := 1, t.Shape[0], t.Shape[1]
	srcC, srcH, srcW := 0, t.Strides[0], t.Strides[1]
	dstC, dstH, dstW := 0, out.Strides[0], out.Strides[1]
	if rank == 3 {
		classes, height, width = t.Shape[0], t.Shape[1], t.Shape[2]
		srcC, srcH, srcW = t.Strides[0], t.Strides[1], t.Strides[2]
		dstC, dstH, dstW = out.Strides[0], out.Strides[1], out.Strides[2]
	}
	for c := 0; c < classes; c++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				srcOff := (c*srcC + y*srcH + (width-1-x)*srcW) * size
				dstOff := (c*dstC + y*dstH + x*dstW) * size
				copy(out.Data[dstOff:dstOff+size], t.Data[srcOff:srcOff+size])
			}
		}
	}
	return out, nil
}

func elemCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// UnmirrorIndex swaps column x with column width-1-x, row by row,
// in place. Applying it to the mirrored pass's index map brings it back
// into the original orientation.
func UnmirrorIndex(index []int32, width, height int) {
	for y := 0; y < height; y++ {
		row := index[y*width : (y+1)*width]
		for x := 0; x < width/2; x++ {
			row[x], row[width-1-x] = row[width-1-x], row[x]
		}
	}
}

// Fuse combines the original-orientation decode with the un-mirrored
// second pass, pixel-wise, under the given policy. The result is a new
// index map; neither input is modified. Returns an error when the two
// maps disagree on dimensions.
func Fuse(first, second *l1tensor.Decoded, policy FusePolicy) ([]int32, error) {
	if first == nil || second == nil {
		return nil, fmt.Errorf("both decode passes are required for fusion")
	}
	if first.Width != second.Width || first.Height != second.Height {
		return nil, fmt.Errorf("pass dimensions disagree: %dx%d vs %dx%d",
			first.Width, first.Height, second.Width, second.Height)
	}
	fused := make([]int32, len(first.Index))
	switch policy {
	case PolicyPreferFirst, "":
		// The second pass only matters where it agrees with the first,
		// so the fused map is the first map. Kept as an explicit copy
		// so later stages can mutate it freely.
		copy(fused, first.Index)
	default:
		return nil, fmt.Errorf("unknown fuse policy %q", policy)
	}
	return fused, nil
}

// Denoise3x3 applies a majority filter over the 3x3 neighborhood of
// every interior pixel (self included). Ties go to the class first
// encountered during the frequency scan. Border pixels are copied
// unmodified. The input is not modified.
func Denoise3x3(index []int32, width, height int) []int32 {
	out := make([]int32, len(index))
	copy(out, index)
	if width < 3 || height < 3 {
		return out
	}

	// Scratch for the neighborhood tally; 9 distinct classes at most.
	var tallyClass [9]int32
	var tallyCount [9]int

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				base := (y + dy) * width
				for dx := -1; dx <= 1; dx++ {
					c := index[base+x+dx]
					found := false
					for i := 0; i < n; i++ {
						if tallyClass[i] == c {
							tallyCount[i]++
							found = true
							break
						}
					}
					if !found {
						tallyClass[n] = c
						tallyCount[n] = 1
						n++
					}
				}
			}
			best := 0
			for i := 1; i < n; i++ {
				// strict > keeps the first-encountered class on ties
				if tallyCount[i] > tallyCount[best] {
					best = i
				}
			}
			out[y*width+x] = tallyClass[best]
		}
	}
	return out
}

// RecomputeStats rebuilds per-class aggregates from a (possibly fused
// and denoised) index map, so the subject selector and the rasterizer
// see counts and centroids that match the final map.
func RecomputeStats(index []int32, width, height int, saliency *l1tensor.SaliencySampler) *l1tensor.ClassStats {
	stats := l1tensor.NewClassStats(0)
	for y := 0; y < height; y++ {
		row := index[y*width:]
		for x := 0; x < width; x++ {
			stats.Add(int(row[x]), x, y, saliency.At(x, y))
		}
	}
	return stats
}
