// Package vision holds the shared data model for the camera analysis
// pipeline: captured frame buffers, device exposure state, and the
// normalized crop rectangle describing the analyzed portion of a frame.
//
// Layer packages (l1tensor .. l5meter) may import vision; vision imports
// none of them. No SQL/database code is allowed in this package.
package vision

import "math"

// FrameBuffer is a read-only view of one captured camera frame.
// Pixels are 4 bytes each, ordered blue, green, red, alpha. Stride is the
// byte distance between rows and may exceed Width*4 on padded buffers.
// The capture collaborator owns the backing array; the pipeline only reads
// it for the duration of one analysis pass.
type FrameBuffer struct {
	Width  int
	Height int
	Stride int
	Pixels []byte
}

// PixelOffset returns the byte offset of pixel (x, y).
func (f *FrameBuffer) PixelOffset(x, y int) int { return y*f.Stride + x*4 }

// BGRA returns the blue, green, red, alpha bytes at (x, y).
// Callers are responsible for bounds; the hot sampling loops in the
// metering engine pre-clamp their coordinates instead of checking here.
func (f *FrameBuffer) BGRA(x, y int) (b, g, r, a byte) {
	off := f.PixelOffset(x, y)
	return f.Pixels[off], f.Pixels[off+1], f.Pixels[off+2], f.Pixels[off+3]
}

// Valid reports whether the buffer describes a readable pixel grid.
func (f *FrameBuffer) Valid() bool {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return false
	}
	if f.Stride < f.Width*4 {
		return false
	}
	return len(f.Pixels) >= (f.Height-1)*f.Stride+f.Width*4
}

// ExposureTriple is the device's instantaneous exposure setting:
// aperture N (f-number), shutter time T in seconds, and ISO sensitivity.
type ExposureTriple struct {
	ApertureN float64
	ShutterS  float64
	ISO       float64
}

// Positive reports whether all three components are positive reals.
// EV algebra is undefined otherwise.
func (e ExposureTriple) Positive() bool {
	return e.ApertureN > 0 && e.ShutterS > 0 && e.ISO > 0
}

// CropRect is a normalized center-crop rectangle in [0,1] frame
// coordinates, supplied by the capture collaborator to describe which
// portion of the FrameBuffer is being analyzed.
type CropRect struct {
	X float64
	Y float64
	W float64
	H float64
}

// FullFrame is the identity crop.
func FullFrame() CropRect { return CropRect{X: 0, Y: 0, W: 1, H: 1} }

// PixelBounds converts the normalized crop into pixel bounds on a
// width×height grid, clamped to the grid. Returns x0, y0, x1, y1 with the
// usual half-open convention [x0,x1)×[y0,y1).
func (c CropRect) PixelBounds(width, height int) (x0, y0, x1, y1 int) {
	cr := c
	if cr.W <= 0 || cr.H <= 0 {
		cr = FullFrame()
	}
	x0 = int(cr.X * float64(width))
	y0 = int(cr.Y * float64(height))
	x1 = int((cr.X + cr.W) * float64(width))
	y1 = int((cr.Y + cr.H) * float64(height))
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > width {
		x1 = width
	}
	if y1 > height {
		y1 = height
	}
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return x0, y0, x1, y1
}

// srgbDecode holds the sRGB-to-linear transfer function sampled at every
// 8-bit code value. Shared by the saliency sampler and the metering
// histograms so both agree on what "linear luminance" means.
var srgbDecode [256]float64

func init() {
	for i := 0; i < 256; i++ {
		c := float64(i) / 255.0
		if c <= 0.04045 {
			srgbDecode[i] = c / 12.92
		} else {
			srgbDecode[i] = math.Pow((c+0.055)/1.055, 2.4)
		}
	}
}

// SRGBToLinear decodes one 8-bit sRGB channel value to linear [0,1].
func SRGBToLinear(v byte) float64 { return srgbDecode[v] }

// LinearLuma computes BT.709 linear luminance from 8-bit sRGB blue,
// green, red channel values. Coefficients 0.2126/0.7152/0.0722.
func LinearLuma(b, g, r byte) float64 {
	return 0.2126*srgbDecode[r] + 0.7152*srgbDecode[g] + 0.0722*srgbDecode[b]
}
