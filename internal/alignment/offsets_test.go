package alignment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"mos-align/pkg/geometry"
)

var instrumentCenter = geometry.Point2D{X: 1024, Y: 1750}

func TestDeriveOffsets_PureTranslation(t *testing.T) {
	got := DeriveOffsets(Transform{ShiftX: 3.2, ShiftY: -2.4}, instrumentCenter)
	require.Equal(t, 2.4, got.DX)
	require.Equal(t, 3.2, got.DY)
	require.Equal(t, 0.0, got.DPA)
}

func TestDeriveOffsets_RotationAboutCenter(t *testing.T) {
	theta := 0.001
	tr := Transform{Theta: theta}
	got := DeriveOffsets(tr, instrumentCenter)

	sin := math.Sin(theta)
	cos := math.Cos(theta)
	wantDX := instrumentCenter.X*sin + instrumentCenter.Y*(1-cos)
	wantDY := instrumentCenter.X*(cos-1) + instrumentCenter.Y*sin
	require.InDelta(t, wantDX, got.DX, 1e-12)
	require.InDelta(t, wantDY, got.DY, 1e-12)
	require.InDelta(t, theta*180/math.Pi, got.DPA, 1e-12)
}

func TestDeriveOffsets_ShiftDeadband(t *testing.T) {
	// Sub-half-pixel shifts are zeroed independently per axis.
	got := DeriveOffsets(Transform{ShiftX: 0.8, ShiftY: -0.3}, geometry.Point2D{})
	require.Equal(t, 0.0, got.DX) // |0.3| < 0.5
	require.Equal(t, 0.8, got.DY)
}

func TestDeriveOffsets_RotationDeadband(t *testing.T) {
	// 0.009 degrees is below the rotation deadband.
	theta := 0.009 * math.Pi / 180
	got := DeriveOffsets(Transform{Theta: theta}, geometry.Point2D{})
	require.Equal(t, 0.0, got.DPA)

	// 0.02 degrees is above it and survives.
	theta = 0.02 * math.Pi / 180
	got = DeriveOffsets(Transform{Theta: theta}, geometry.Point2D{})
	require.InDelta(t, 0.02, got.DPA, 1e-12)
}

func TestDeriveOffsets_DeadbandAfterConversion(t *testing.T) {
	// A rotation about a distant center moves the offsets above the pixel
	// deadband even though the raw shifts are zero.
	theta := 0.005
	got := DeriveOffsets(Transform{Theta: theta}, instrumentCenter)
	require.Greater(t, math.Abs(got.DX), shiftDeadband)
	require.Greater(t, math.Abs(got.DY), shiftDeadband)
}

func TestNormalizeDegrees(t *testing.T) {
	require.Equal(t, -180.0, normalizeDegrees(180))
	require.Equal(t, -180.0, normalizeDegrees(-180))
	require.Equal(t, 0.0, normalizeDegrees(360))
	require.InDelta(t, -170, normalizeDegrees(190), 1e-12)
	require.InDelta(t, 170, normalizeDegrees(-190), 1e-12)
	require.InDelta(t, 5, normalizeDegrees(365), 1e-12)
}
