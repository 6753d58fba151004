// Package centroid locates the sub-pixel center of mass of a calibration
// target inside a masked search region.
package centroid

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"mos-align/internal/history"
	"mos-align/pkg/geometry"
)

// Source supplies pixel data for a rectangular region of the exposure in
// absolute image coordinates. The returned cutout may be smaller than the
// requested box if the box extends past the frame edge.
type Source interface {
	Cutout(box geometry.Box) (*Cutout, error)
}

// Cutout is a rectangular view of intensity data. Data is row-major with
// stride W; (X0, Y0) is the absolute pixel index of the first element, used
// to translate local centroid coordinates back to image coordinates.
type Cutout struct {
	Data []float64
	W, H int
	X0   int
	Y0   int
}

// At returns the intensity at local pixel (x, y).
func (c *Cutout) At(x, y int) float64 { return c.Data[y*c.W+x] }

// Result is a located target: center and effective radius in absolute image
// coordinates. A not-found result has all fields NaN.
type Result struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"`
}

// NotFound returns the sentinel result for a failed or skipped localization.
func NotFound() Result {
	nan := math.NaN()
	return Result{X: nan, Y: nan, R: nan}
}

// Found reports whether the result holds a usable position.
func (r Result) Found() bool {
	return !math.IsNaN(r.X) && !math.IsNaN(r.Y)
}

// Point returns the result's position.
func (r Result) Point() geometry.Point2D { return geometry.Point2D{X: r.X, Y: r.Y} }

// convergeDist is the fixed-point termination distance in pixels.
const convergeDist = 0.5

// Locate finds the intensity-weighted centroid of the object inside region,
// honoring the applied region edits. minRadius is the floor for the
// shrinking search radius; sigma sets the background threshold at
// mean + sigma*stddev of the unmasked pixels.
//
// A fully masked region or a region with no above-threshold signal yields
// the NotFound sentinel; an error is returned only when the source cannot
// supply pixels for the region at all.
func Locate(src Source, region geometry.Region, edits []history.Edit, minRadius, sigma float64) (Result, error) {
	cut, err := src.Cutout(region.Box)
	if err != nil {
		return NotFound(), err
	}
	w, h := cut.W, cut.H

	valid := buildMask(cut, region.Radius, edits)
	data := make([]float64, len(cut.Data))

	// Threshold statistics over the unmasked pixels only.
	var sample []float64
	for i, ok := range valid {
		if ok {
			sample = append(sample, cut.Data[i])
		}
	}
	if len(sample) == 0 {
		return NotFound(), nil
	}
	mean := stat.Mean(sample, nil)
	std := stat.PopStdDev(sample, nil)
	threshold := mean + sigma*std

	// Subtract the threshold and clip negatives to zero, so that pixels
	// contribute in proportion to how far above background they are.
	// Masked pixels stay zero and drop out of every moment sum.
	for i, ok := range valid {
		if ok && cut.Data[i] > threshold {
			data[i] = cut.Data[i] - threshold
		}
	}

	cx := float64(w) / 2
	cy := float64(h) / 2
	searchRadius := region.Radius
	radius := math.NaN()

	// Shrink the search radius toward minRadius, re-converging at each
	// step. The inner step always runs at least once, even if the initial
	// radius is already below the floor.
	first := true
	for searchRadius >= minRadius || first {
		first = false
		oldX, oldY := math.Inf(-1), math.Inf(-1)

		for math.Hypot(cx-oldX, cy-oldY) >= convergeDist {
			var mom0, mom1x, mom1y float64
			area := 0
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					v := data[y*w+x]
					if v <= 0 {
						continue
					}
					if math.Hypot(float64(x)-cx, float64(y)-cy) > searchRadius {
						continue
					}
					mom0 += v
					mom1x += v * float64(x)
					mom1y += v * float64(y)
					area++
				}
			}
			if mom0 == 0 {
				// No signal within reach; a silent NaN here would
				// poison the fit downstream.
				return NotFound(), nil
			}
			oldX, oldY = cx, cy
			cx = mom1x / mom0
			cy = mom1y / mom0
			radius = math.Sqrt(float64(area) / math.Pi)
		}

		searchRadius /= 2
	}

	// Half-pixel shift converts array indices to image coordinates.
	return Result{
		X: float64(cut.X0) + cx - 0.5,
		Y: float64(cut.Y0) + cy - 0.5,
		R: radius,
	}, nil
}

// buildMask computes per-pixel validity for the cutout. Pixels outside the
// search circle are invalid; each edit then invalidates the interior
// (Exclude) or exterior (Include) of its rectangle. Invalidity composes by
// OR, so the order of edits does not matter.
func buildMask(cut *Cutout, searchRadius float64, edits []history.Edit) []bool {
	w, h := cut.W, cut.H
	cx := float64(w) / 2
	cy := float64(h) / 2

	valid := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			valid[y*w+x] = math.Hypot(float64(x)-cx, float64(y)-cy) <= searchRadius
		}
	}

	for _, e := range edits {
		// Edit rectangles arrive in absolute image coordinates; map them
		// onto the cutout grid.
		x1 := clampInt(int(e.Rect.X1)-cut.X0, 0, w)
		x2 := clampInt(int(e.Rect.X2)-cut.X0, 0, w)
		y1 := clampInt(int(e.Rect.Y1)-cut.Y0, 0, h)
		y2 := clampInt(int(e.Rect.Y2)-cut.Y0, 0, h)

		switch e.Kind {
		case history.Exclude:
			for y := y1; y < y2; y++ {
				for x := x1; x < x2; x++ {
					valid[y*w+x] = false
				}
			}
		case history.Include:
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					if x < x1 || x >= x2 || y < y1 || y >= y2 {
						valid[y*w+x] = false
					}
				}
			}
		}
	}
	return valid
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
