// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// IsNaN reports whether either coordinate is NaN.
func (p Point2D) IsNaN() bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y)
}

// Box represents an axis-aligned rectangle in corner form.
// A normalized box has X1 <= X2 and Y1 <= Y2.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// NewBox creates a normalized box from two opposite corners.
func NewBox(x1, y1, x2, y2 float64) Box {
	return Box{X1: x1, Y1: y1, X2: x2, Y2: y2}.Normalize()
}

// Normalize returns the box with corners ordered so X1 <= X2 and Y1 <= Y2.
func (b Box) Normalize() Box {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return b
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Center returns the center point of the box.
func (b Box) Center() Point2D {
	return Point2D{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Contains returns true if the point is inside the box.
func (b Box) Contains(p Point2D) bool {
	return p.X >= b.X1 && p.X <= b.X2 && p.Y >= b.Y1 && p.Y <= b.Y2
}

// Empty reports whether the box has zero area.
func (b Box) Empty() bool {
	return b.X1 == b.X2 || b.Y1 == b.Y2
}

// ClampTo returns the box normalized and clamped into the given bounds.
func (b Box) ClampTo(bounds Box) Box {
	b = b.Normalize()
	bounds = bounds.Normalize()
	return Box{
		X1: math.Min(math.Max(b.X1, bounds.X1), bounds.X2),
		Y1: math.Min(math.Max(b.Y1, bounds.Y1), bounds.Y2),
		X2: math.Min(math.Max(b.X2, bounds.X1), bounds.X2),
		Y2: math.Min(math.Max(b.Y2, bounds.Y1), bounds.Y2),
	}
}

// Region is a search region: a bounding box plus a nominal search radius.
type Region struct {
	Box    Box     `json:"box"`
	Radius float64 `json:"radius"`
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}
