// Package frame provides in-memory exposure frames and pixel access for the
// locator.
package frame

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/tiff"

	"mos-align/internal/centroid"
	"mos-align/pkg/geometry"
)

// Frame is a single exposure held as a float64 intensity grid.
//
// Image coordinates follow the detector convention the locator reports in:
// a feature centered at coordinate (x, y) peaks in the pixel with index
// (x+0.5, y+0.5), and the locator's half-pixel correction maps pixel
// indices back to coordinates.
type Frame struct {
	Data []float64 // row-major, stride W
	W, H int
}

// New returns a zero-filled frame of the given size.
func New(w, h int) *Frame {
	return &Frame{Data: make([]float64, w*h), W: w, H: h}
}

// At returns the intensity at pixel (x, y).
func (f *Frame) At(x, y int) float64 { return f.Data[y*f.W+x] }

// Set assigns the intensity at pixel (x, y).
func (f *Frame) Set(x, y int, v float64) { f.Data[y*f.W+x] = v }

// Load decodes a PNG, JPEG or TIFF exposure into a luminance frame.
// A missing or undecodable file is an error; there is no fallback frame.
func Load(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exposure: %w", err)
	}
	defer fh.Close()

	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage converts a decoded image into a luminance frame.
func FromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	f := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Fast luminance: (19595*R + 38470*G + 7471*B) >> 16
			f.Data[y*w+x] = float64((19595*(r>>8) + 38470*(g>>8) + 7471*(b>>8)) >> 16)
		}
	}
	return f
}

// AddBlob adds a 2-D Gaussian profile centered at image coordinate (cx, cy)
// with the given width and peak amplitude.
func (f *Frame) AddBlob(cx, cy, sigma, amp float64) {
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			dx := float64(x) - cx - 0.5
			dy := float64(y) - cy - 0.5
			f.Data[y*f.W+x] += amp * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
		}
	}
}

// AddDisk adds a flat-topped disk of the given radius centered at image
// coordinate (cx, cy). Mask holes image as disks rather than point spreads.
func (f *Frame) AddDisk(cx, cy, r, amp float64) {
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			dx := float64(x) - cx - 0.5
			dy := float64(y) - cy - 0.5
			if math.Hypot(dx, dy) <= r {
				f.Data[y*f.W+x] += amp
			}
		}
	}
}

// Cutout returns the pixel data for the given box, clamped to the frame.
// It implements centroid.Source. The cutout carries its effective absolute
// origin so callers can translate local coordinates back.
func (f *Frame) Cutout(box geometry.Box) (*centroid.Cutout, error) {
	box = box.Normalize()
	x1 := clamp(int(math.Floor(box.X1)), 0, f.W)
	x2 := clamp(int(math.Ceil(box.X2)), 0, f.W)
	y1 := clamp(int(math.Floor(box.Y1)), 0, f.H)
	y2 := clamp(int(math.Ceil(box.Y2)), 0, f.H)
	if x2 <= x1 || y2 <= y1 {
		return nil, fmt.Errorf("cutout (%g,%g)-(%g,%g) outside %dx%d frame",
			box.X1, box.Y1, box.X2, box.Y2, f.W, f.H)
	}

	w := x2 - x1
	h := y2 - y1
	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		copy(data[y*w:(y+1)*w], f.Data[(y1+y)*f.W+x1:(y1+y)*f.W+x2])
	}
	return &centroid.Cutout{Data: data, W: w, H: h, X0: x1, Y0: y1}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
