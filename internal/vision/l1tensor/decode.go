package l1tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// scalarSize returns the byte width of one element.
func scalarSize(s ScalarType) int {
	switch s {
	case ScalarFloat32:
		return 4
	case ScalarFloat64:
		return 8
	case ScalarFloat16:
		return 2
	default:
		return 0
	}
}

// elementReader returns a function reading the element at a flat element
// index as float64. Half precision is widened through its bit pattern
// before use so comparisons happen at full precision.
func elementReader(t *Tensor) (func(elem int) float64, error) {
	switch t.Scalar {
	case ScalarFloat32:
		return func(elem int) float64 {
			bits := binary.LittleEndian.Uint32(t.Data[elem*4:])
			return float64(math.Float32frombits(bits))
		}, nil
	case ScalarFloat64:
		return func(elem int) float64 {
			bits := binary.LittleEndian.Uint64(t.Data[elem*8:])
			return math.Float64frombits(bits)
		}, nil
	case ScalarFloat16:
		return func(elem int) float64 {
			bits := binary.LittleEndian.Uint16(t.Data[elem*2:])
			return float64(float16.Frombits(bits).Float32())
		}, nil
	default:
		return nil, fmt.Errorf("unrecognized scalar type %d", int(t.Scalar))
	}
}

// maxElemIndex returns the largest flat element index addressable by the
// shape/stride combination, for a bounds check before the pixel loops.
func maxElemIndex(shape, strides []int) int {
	max := 0
	for i := range shape {
		if shape[i] > 0 {
			max += (shape[i] - 1) * strides[i]
		}
	}
	return max
}

// Decode turns a raw model output into an index map with class stats.
//
// A Tensor output is classified by rank: rank 3 is a logit volume
// [C,H,W] reduced by per-pixel argmax (ties resolved to the first-seen
// class in a stable forward scan over C); rank 2 is a label plane [H,W]
// whose values are class indices, rounded to nearest and clamped to >= 0.
// A ByteRaster output maps each byte directly to its class index.
//
// Saliency may be nil, in which case all per-class saliency sums are 0.
// After decoding, the label table is grown per the session policy.
//
// Decode returns an error for unsupported ranks or scalar encodings.
// Callers treat that as "no segmentation this frame", not as fatal.
func Decode(out ModelOutput, saliency *SaliencySampler, labels *LabelTable) (*Decoded, error) {
	switch {
	case out.Raster != nil:
		return decodeRaster(out.Raster, saliency, labels)
	case out.Tensor != nil:
		t := out.Tensor
		switch len(t.Shape) {
		case 3:
			return decodeVolume(t, saliency, labels)
		case 2:
			return decodePlane(t, saliency, labels)
		default:
			return nil, fmt.Errorf("unsupported tensor rank %d (want 2 or 3)", len(t.Shape))
		}
	default:
		return nil, fmt.Errorf("model output has neither tensor nor raster")
	}
}

func checkTensor(t *Tensor, rank int) error {
	if len(t.Strides) != rank {
		return fmt.Errorf("stride count %d does not match rank %d", len(t.Strides), rank)
	}
	size := scalarSize(t.Scalar)
	if size == 0 {
		return fmt.Errorf("unrecognized scalar type %d", int(t.Scalar))
	}
	need := (maxElemIndex(t.Shape, t.Strides) + 1) * size
	if len(t.Data) < need {
		return fmt.Errorf("tensor data too short: have %d bytes, need %d", len(t.Data), need)
	}
	return nil
}

// decodeVolume reduces a [C,H,W] logit volume by argmax over C.
func decodeVolume(t *Tensor, saliency *SaliencySampler, labels *LabelTable) (*Decoded, error) {
	if err := checkTensor(t, 3); err != nil {
		return nil, err
	}
	classes, height, width := t.Shape[0], t.Shape[1], t.Shape[2]
	if classes <= 0 || height <= 0 || width <= 0 {
		return nil, fmt.Errorf("degenerate volume shape %v", t.Shape)
	}
	read, err := elementReader(t)
	if err != nil {
		return nil, err
	}
	strideC, strideH, strideW := t.Strides[0], t.Strides[1], t.Strides[2]

	dec := &Decoded{
		Width:  width,
		Height: height,
		Index:  make([]int32, width*height),
		Stats:  NewClassStats(classes),
	}
	maxIdx := 0
	for y := 0; y < height; y++ {
		rowBase := y * strideH
		for x := 0; x < width; x++ {
			base := rowBase + x*strideW
			best := 0
			bestScore := read(base)
			for c := 1; c < classes; c++ {
				// strict > keeps the first-seen class on exact ties
				if score := read(base + c*strideC); score > bestScore {
					bestScore = score
					best = c
				}
			}
			dec.Index[y*width+x] = int32(best)
			dec.Stats.Add(best, x, y, saliency.At(x, y))
			if best > maxIdx {
				maxIdx = best
			}
		}
	}
	labels.EnsureCovers(maxIdx)
	return dec, nil
}

// decodePlane reads a [H,W] label plane whose values are class indices.
func decodePlane(t *Tensor, saliency *SaliencySampler, labels *LabelTable) (*Decoded, error) {
	if err := checkTensor(t, 2); err != nil {
		return nil, err
	}
	height, width := t.Shape[0], t.Shape[1]
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("degenerate plane shape %v", t.Shape)
	}
	read, err := elementReader(t)
	if err != nil {
		return nil, err
	}
	strideH, strideW := t.Strides[0], t.Strides[1]

	dec := &Decoded{
		Width:  width,
		Height: height,
		Index:  make([]int32, width*height),
		Stats:  NewClassStats(0),
	}
	maxIdx := 0
	for y := 0; y < height; y++ {
		rowBase := y * strideH
		for x := 0; x < width; x++ {
			v := read(rowBase + x*strideW)
			class := int(math.Round(v))
			if class < 0 {
				class = 0
			}
			dec.Index[y*width+x] = int32(class)
			dec.Stats.Add(class, x, y, saliency.At(x, y))
			if class > maxIdx {
				maxIdx = class
			}
		}
	}
	labels.EnsureCovers(maxIdx)
	return dec, nil
}

// decodeRaster reads a single-byte-per-pixel index raster.
func decodeRaster(r *ByteRaster, saliency *SaliencySampler, labels *LabelTable) (*Decoded, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("degenerate raster %dx%d", r.Width, r.Height)
	}
	stride := r.Stride
	if stride == 0 {
		stride = r.Width
	}
	if stride < r.Width {
		return nil, fmt.Errorf("raster stride %d smaller than width %d", stride, r.Width)
	}
	if need := (r.Height-1)*stride + r.Width; len(r.Data) < need {
		return nil, fmt.Errorf("raster data too short: have %d bytes, need %d", len(r.Data), need)
	}

	dec := &Decoded{
		Width:  r.Width,
		Height: r.Height,
		Index:  make([]int32, r.Width*r.Height),
		Stats:  NewClassStats(0),
	}
	maxIdx := 0
	for y := 0; y < r.Height; y++ {
		row := r.Data[y*stride:]
		for x := 0; x < r.Width; x++ {
			class := int(row[x])
			dec.Index[y*r.Width+x] = int32(class)
			dec.Stats.Add(class, x, y, saliency.At(x, y))
			if class > maxIdx {
				maxIdx = class
			}
		}
	}
	labels.EnsureCovers(maxIdx)
	return dec, nil
}
