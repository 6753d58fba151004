package alignment

import (
	"math"

	"mos-align/pkg/geometry"
)

// Noise floors for the reported corrections. Computed values below these
// magnitudes are reported as exactly zero: the telescope cannot usefully
// apply them and operators should not chase them.
const (
	shiftDeadband    = 0.5  // pixels
	rotationDeadband = 0.01 // degrees
)

// Offsets are the final operator-facing corrections in the instrument
// frame: translation in pixels and rotation in degrees.
type Offsets struct {
	DX  float64 `json:"dx"`
	DY  float64 `json:"dy"`
	DPA float64 `json:"dpa"`
}

// DeriveOffsets converts a fitted transform into instrument offsets about
// the rotation center (xc, yc). The axis swap between transform shifts and
// instrument dx/dy reflects the detector's orientation on the sky.
func DeriveOffsets(t Transform, center geometry.Point2D) Offsets {
	sin := math.Sin(t.Theta)
	cos := math.Cos(t.Theta)

	dx := -t.ShiftY + center.X*sin + center.Y*(1-cos)
	dy := t.ShiftX + center.X*(cos-1) + center.Y*sin
	dpa := normalizeDegrees(t.Theta * 180 / math.Pi)

	// Deadbands apply after unit conversion, not before.
	if math.Abs(dx) < shiftDeadband {
		dx = 0
	}
	if math.Abs(dy) < shiftDeadband {
		dy = 0
	}
	if math.Abs(dpa) < rotationDeadband {
		dpa = 0
	}
	return Offsets{DX: dx, DY: dy, DPA: dpa}
}

// normalizeDegrees wraps an angle into [-180, 180).
func normalizeDegrees(deg float64) float64 {
	m := math.Mod(deg+180, 360)
	if m < 0 {
		m += 360
	}
	return m - 180
}
