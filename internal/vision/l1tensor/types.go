package l1tensor

import "fmt"

// ScalarType identifies the numeric encoding of tensor elements.
type ScalarType int

const (
	// ScalarFloat32 is IEEE 754 single precision, little endian.
	ScalarFloat32 ScalarType = iota
	// ScalarFloat64 is IEEE 754 double precision, little endian.
	ScalarFloat64
	// ScalarFloat16 is IEEE 754 half precision, widened to float32
	// before any comparison.
	ScalarFloat16
)

// String returns the string representation of the scalar type.
func (s ScalarType) String() string {
	switch s {
	case ScalarFloat32:
		return "float32"
	case ScalarFloat64:
		return "float64"
	case ScalarFloat16:
		return "float16"
	default:
		return "unknown"
	}
}

// Tensor is a raw model output tensor as handed over by the inference
// collaborator: flat little-endian bytes plus shape and per-dimension
// element strides read from the tensor metadata. Strides are in elements,
// not bytes, and must not be assumed contiguous.
type Tensor struct {
	Shape   []int
	Strides []int
	Scalar  ScalarType
	Data    []byte
}

// ContiguousStrides fills in row-major strides for the given shape.
// Convenience for tests and synthetic producers; real outputs carry
// their own stride metadata.
func ContiguousStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// ByteRaster is the single-byte-per-pixel index raster encoding: each
// byte is a class index 0-255. Stride is in bytes and may exceed Width.
type ByteRaster struct {
	Width  int
	Height int
	Stride int
	Data   []byte
}

// ModelOutput is the tagged union of the three possible raw model output
// encodings. Exactly one of Tensor or Raster is set per inference pass;
// a Tensor is classified as logit volume or label plane by its rank at
// decode time.
type ModelOutput struct {
	Tensor *Tensor
	Raster *ByteRaster
}

// GridSize reports the segmentation grid dimensions the output will
// decode to, without decoding. Callers use it to size the saliency
// sampler ahead of the decode pass.
func (o ModelOutput) GridSize() (w, h int, err error) {
	switch {
	case o.Raster != nil:
		return o.Raster.Width, o.Raster.Height, nil
	case o.Tensor != nil:
		switch len(o.Tensor.Shape) {
		case 3: // [C,H,W]
			return o.Tensor.Shape[2], o.Tensor.Shape[1], nil
		case 2: // [H,W]
			return o.Tensor.Shape[1], o.Tensor.Shape[0], nil
		}
		return 0, 0, fmt.Errorf("unsupported tensor rank %d", len(o.Tensor.Shape))
	}
	return 0, 0, fmt.Errorf("model output has neither tensor nor raster")
}

// Decoded is the result of one decode pass: a flat class index map at
// the model's grid resolution plus per-class aggregates.
type Decoded struct {
	Width  int
	Height int
	// Index is the per-pixel class index map, length Width*Height,
	// row major. All values are non-negative.
	Index []int32
	Stats *ClassStats
}

// ClassStats holds per-class aggregates accumulated during a decode
// pass: pixel count, summed saliency weight, and summed x/y coordinates
// for centroid computation. The arrays grow to cover the maximum class
// index observed and never shrink within a pass.
type ClassStats struct {
	Counts   []int
	Saliency []float64
	SumX     []float64
	SumY     []float64
}

// NewClassStats returns stats with capacity for the given initial class
// count. The arrays grow on demand as higher indices are observed.
func NewClassStats(initial int) *ClassStats {
	if initial < 0 {
		initial = 0
	}
	return &ClassStats{
		Counts:   make([]int, initial),
		Saliency: make([]float64, initial),
		SumX:     make([]float64, initial),
		SumY:     make([]float64, initial),
	}
}

// grow extends the dense arrays so that class is a valid index.
func (s *ClassStats) grow(class int) {
	if class < len(s.Counts) {
		return
	}
	n := class + 1
	counts := make([]int, n)
	copy(counts, s.Counts)
	s.Counts = counts
	sal := make([]float64, n)
	copy(sal, s.Saliency)
	s.Saliency = sal
	sx := make([]float64, n)
	copy(sx, s.SumX)
	s.SumX = sx
	sy := make([]float64, n)
	copy(sy, s.SumY)
	s.SumY = sy
}

// Add records one pixel of the given class at (x, y) with the given
// saliency weight.
func (s *ClassStats) Add(class, x, y int, saliency float64) {
	s.grow(class)
	s.Counts[class]++
	s.Saliency[class] += saliency
	s.SumX[class] += float64(x)
	s.SumY[class] += float64(y)
}

// NumClasses returns the length of the dense arrays (max observed class
// index plus one).
func (s *ClassStats) NumClasses() int { return len(s.Counts) }

// TotalPixels returns the sum of all class counts.
func (s *ClassStats) TotalPixels() int {
	total := 0
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// Centroid returns the mean (x, y) of the class in index-map pixel
// coordinates, or (0, 0) when the class has no pixels.
func (s *ClassStats) Centroid(class int) (x, y float64) {
	if class < 0 || class >= len(s.Counts) || s.Counts[class] == 0 {
		return 0, 0
	}
	n := float64(s.Counts[class])
	return s.SumX[class] / n, s.SumY[class] / n
}
