// Package alignment fits the rigid transform between two matched sets of
// target centroids and derives instrument offset corrections.
package alignment

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"mos-align/internal/centroid"
	"mos-align/pkg/geometry"
)

// MinActivePoints is the smallest active set a rigid fit accepts. Two
// points determine translation and rotation; three or more make the fit
// stable against noise.
const MinActivePoints = 2

// ResidualTolerance is the largest residual magnitude, in pixels, an active
// correspondence may have after outlier rejection.
const ResidualTolerance = 1.0

var (
	// ErrTooFewPoints reports that fewer than MinActivePoints
	// correspondences are active.
	ErrTooFewPoints = errors.New("too few active correspondences for a rigid fit")
	// ErrDegenerate reports a singular or reflective cross-covariance,
	// typically from collinear or coincident points.
	ErrDegenerate = errors.New("degenerate point configuration")
)

// Correspondence pairs a reference point with its matched moving point.
// Inactive correspondences are excluded from the fit but kept for display
// and possible reactivation.
type Correspondence struct {
	Ref    geometry.Point2D `json:"ref"`
	Moving geometry.Point2D `json:"moving"`
	Active bool             `json:"active"`
}

// NewSet builds correspondences from parallel centroid result slices,
// dropping pairs where either side was not found. All returned
// correspondences start active.
func NewSet(ref, moving []centroid.Result) []Correspondence {
	n := len(ref)
	if len(moving) < n {
		n = len(moving)
	}
	var set []Correspondence
	for i := 0; i < n; i++ {
		if !ref[i].Found() || !moving[i].Found() {
			continue
		}
		set = append(set, Correspondence{
			Ref:    ref[i].Point(),
			Moving: moving[i].Point(),
			Active: true,
		})
	}
	return set
}

// Transform is a rigid map from moving-set to reference-set coordinates:
// a rotation by Theta followed by a shift.
type Transform struct {
	ShiftX float64 `json:"shift_x"`
	ShiftY float64 `json:"shift_y"`
	Theta  float64 `json:"theta"` // radians
}

// Apply maps a moving-set point into reference-set coordinates.
func (t Transform) Apply(p geometry.Point2D) geometry.Point2D {
	cos := math.Cos(t.Theta)
	sin := math.Sin(t.Theta)
	return geometry.Point2D{
		X: t.ShiftX + cos*p.X + sin*p.Y,
		Y: t.ShiftY - sin*p.X + cos*p.Y,
	}
}

// Residual is the per-axis misfit of one correspondence under a transform,
// plus its Euclidean magnitude.
type Residual struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Mag float64 `json:"mag"`
}

// Fit computes the least-squares rigid transform mapping the active moving
// points onto their reference points, using the SVD of the 2x2
// cross-covariance matrix. Collinear, coincident or reflective
// configurations are reported as errors rather than returning a nonsensical
// rotation.
func Fit(set []Correspondence) (Transform, error) {
	var refPts, movPts []geometry.Point2D
	for _, c := range set {
		if c.Active {
			refPts = append(refPts, c.Ref)
			movPts = append(movPts, c.Moving)
		}
	}
	if len(refPts) < MinActivePoints {
		return Transform{}, fmt.Errorf("%w: have %d, need %d",
			ErrTooFewPoints, len(refPts), MinActivePoints)
	}

	refC := geometry.Centroid(refPts)
	movC := geometry.Centroid(movPts)

	// Cross-covariance M = movingCentered^T * referenceCentered.
	var m00, m01, m10, m11 float64
	for i := range refPts {
		mx := movPts[i].X - movC.X
		my := movPts[i].Y - movC.Y
		rx := refPts[i].X - refC.X
		ry := refPts[i].Y - refC.Y
		m00 += mx * rx
		m01 += mx * ry
		m10 += my * rx
		m11 += my * ry
	}

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(2, 2, []float64{m00, m01, m10, m11}), mat.SVDFull); !ok {
		return Transform{}, fmt.Errorf("%w: SVD failed", ErrDegenerate)
	}
	sv := svd.Values(nil)
	if sv[0] <= 0 || sv[1]/sv[0] < 1e-12 {
		return Transform{}, fmt.Errorf("%w: singular cross-covariance", ErrDegenerate)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Optimal rotation R = U * V^T (Kabsch).
	var r mat.Dense
	r.Mul(&u, v.T())
	r00 := r.At(0, 0)
	r01 := r.At(0, 1)
	r10 := r.At(1, 0)
	r11 := r.At(1, 1)
	if r00*r11-r01*r10 < 0 {
		return Transform{}, fmt.Errorf("%w: reflection in optimal map", ErrDegenerate)
	}

	// Averaging the two extractions of the angle smooths small
	// asymmetries left in R by noisy input.
	theta := (math.Acos(clampUnit(r00)) + math.Asin(clampUnit(r10))) / 2

	// shift = refCentroid - movingCentroid * R (row-vector convention).
	shiftX := refC.X - (movC.X*r00 + movC.Y*r10)
	shiftY := refC.Y - (movC.X*r01 + movC.Y*r11)

	return Transform{ShiftX: shiftX, ShiftY: shiftY, Theta: theta}, nil
}

// Residuals evaluates every correspondence, active or not, under t.
// The residual is the transformed moving point minus the reference point.
func Residuals(set []Correspondence, t Transform) []Residual {
	res := make([]Residual, len(set))
	for i, c := range set {
		p := t.Apply(c.Moving)
		rx := p.X - c.Ref.X
		ry := p.Y - c.Ref.Y
		res[i] = Residual{X: rx, Y: ry, Mag: math.Hypot(rx, ry)}
	}
	return res
}

// RejectWorst deactivates the active correspondence with the largest
// residual magnitude. It returns the index of the rejected entry, or -1 if
// no active residual exceeds tol.
func RejectWorst(set []Correspondence, res []Residual, tol float64) int {
	worst := -1
	worstMag := tol
	for i, c := range set {
		if c.Active && res[i].Mag > worstMag {
			worst = i
			worstMag = res[i].Mag
		}
	}
	if worst >= 0 {
		set[worst].Active = false
	}
	return worst
}

// Solve fits the active set and repeatedly rejects the worst-fitting
// correspondence until every active residual is within tol. The loop
// terminates because each rejection shrinks the active set; shrinking below
// the fit minimum is an error, surfaced rather than ignored.
func Solve(set []Correspondence, tol float64) (Transform, []Residual, error) {
	for {
		t, err := Fit(set)
		if err != nil {
			return Transform{}, nil, err
		}
		res := Residuals(set, t)
		if RejectWorst(set, res, tol) < 0 {
			return t, res, nil
		}
	}
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
