// Package target defines calibration targets and their per-kind search
// parameters.
package target

import (
	"math"

	"mos-align/pkg/geometry"
)

// Kind identifies what is being localized. The search box size and the
// threshold behavior differ between bright point sources and mask holes.
type Kind int

const (
	// Star is a bright point source on a sky exposure.
	Star Kind = iota
	// Hole is a slit or alignment hole on a mask exposure.
	Hole
	// StarHole is a star observed through its mask hole.
	StarHole
)

func (k Kind) String() string {
	switch k {
	case Star:
		return "star"
	case Hole:
		return "hole"
	case StarHole:
		return "starhole"
	default:
		return "unknown"
	}
}

// Spec is one calibration target: its offset relative to the anchor target
// and its expected radius. Radius may be NaN, meaning unknown; a default
// derived from the search box size is substituted. Immutable for a session.
type Spec struct {
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	Radius float64 `json:"radius"`
}

// defaultRadiusScale sets the fallback search radius as a fraction of the
// search box half-width when a target's expected radius is unknown. The box
// diagonal half-length is sqrt(2) times the apothem; 1.42 covers the corners.
const defaultRadiusScale = 1.42

// Normalize converts absolute target positions (x, y[, r]) into specs
// relative to the first target, and returns that first absolute position.
// The first target is the anchor; its spec is (0, 0, r0).
func Normalize(positions []geometry.Point2D, radii []float64) ([]Spec, geometry.Point2D) {
	if len(positions) == 0 {
		return nil, geometry.Point2D{}
	}
	anchor := positions[0]
	specs := make([]Spec, len(positions))
	for i, p := range positions {
		r := math.NaN()
		if i < len(radii) {
			r = radii[i]
		}
		specs[i] = Spec{DX: p.X - anchor.X, DY: p.Y - anchor.Y, Radius: r}
	}
	return specs, anchor
}

// Region computes the search region for a spec given the current anchor
// position and the per-kind parameters. The box is a square of apothem
// p.SearchHalf centered on anchor+offset; the radius falls back to
// defaultRadiusScale * SearchHalf when the expected radius is unknown.
func (s Spec) Region(anchor geometry.Point2D, p Params) geometry.Region {
	cx := anchor.X + s.DX
	cy := anchor.Y + s.DY
	half := p.SearchHalf
	r := s.Radius
	if math.IsNaN(r) {
		r = defaultRadiusScale * half
	}
	return geometry.Region{
		Box:    geometry.NewBox(cx-half, cy-half, cx+half, cy+half),
		Radius: r,
	}
}

// Known reports whether the relative offset is usable. Targets
// skipped in an earlier round carry NaN offsets and are passed over.
func (s Spec) Known() bool {
	return !math.IsNaN(s.DX) && !math.IsNaN(s.DY)
}
