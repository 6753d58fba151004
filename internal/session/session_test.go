package session_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"mos-align/internal/alignment"
	"mos-align/internal/frame"
	"mos-align/internal/history"
	"mos-align/internal/session"
	"mos-align/internal/target"
	"mos-align/pkg/geometry"
)

var fieldPositions = []geometry.Point2D{
	{X: 100, Y: 100}, // anchor
	{X: 220, Y: 90},
	{X: 110, Y: 220},
	{X: 230, Y: 230},
}

// starField renders blobs at the given positions on a blank exposure.
func starField(positions []geometry.Point2D) *frame.Frame {
	f := frame.New(320, 320)
	for _, p := range positions {
		f.AddBlob(p.X, p.Y, 2.5, 1000)
	}
	return f
}

func newStarSession(t *testing.T, f *frame.Frame, cfg session.Config) *session.Session {
	t.Helper()
	specs, _ := target.Normalize(fieldPositions, nil)
	s, err := session.New(cfg, f, specs)
	require.NoError(t, err)
	return s
}

func TestNew_NoTargets(t *testing.T) {
	_, err := session.New(session.Config{}, frame.New(10, 10), nil)
	require.Error(t, err)
}

func TestSession_RequiresAnchor(t *testing.T) {
	s := newStarSession(t, starField(fieldPositions), session.Config{})

	_, err := s.Region(1)
	require.ErrorIs(t, err, session.ErrNoAnchor)

	_, err = s.AddEdit(1, geometry.NewBox(0, 0, 10, 10), history.Exclude)
	require.ErrorIs(t, err, session.ErrNoAnchor)

	for _, c := range s.Centroids() {
		require.False(t, c.Found())
	}
}

func TestSession_PlaceAnchorLocatesAll(t *testing.T) {
	s := newStarSession(t, starField(fieldPositions), session.Config{})

	// The click only needs to land inside the anchor's search box.
	s.PlaceAnchor(geometry.Point2D{X: 101.7, Y: 98.4})

	got := s.Centroids()
	require.Len(t, got, len(fieldPositions))
	for i, c := range got {
		require.True(t, c.Found(), "target %d", i)
		require.InDelta(t, fieldPositions[i].X, c.X, 0.15)
		require.InDelta(t, fieldPositions[i].Y, c.Y, 0.15)
	}
}

func TestSession_ParallelMatchesSerial(t *testing.T) {
	f := starField(fieldPositions)
	serial := newStarSession(t, f, session.Config{})
	parallel := newStarSession(t, f, session.Config{Parallel: true})

	click := geometry.Point2D{X: 100.5, Y: 100.5}
	serial.PlaceAnchor(click)
	parallel.PlaceAnchor(click)

	require.Equal(t, serial.Centroids(), parallel.Centroids())
}

func TestSession_UndoRedoAnchor(t *testing.T) {
	s := newStarSession(t, starField(fieldPositions), session.Config{})

	good := geometry.Point2D{X: 100.5, Y: 100.5}
	bad := geometry.Point2D{X: 30, Y: 30} // empty sky
	s.PlaceAnchor(good)
	s.PlaceAnchor(bad)
	require.False(t, s.Centroids()[0].Found())

	s.UndoAnchor()
	require.True(t, s.Centroids()[0].Found())
	anchor, ok := s.Anchor()
	require.True(t, ok)
	require.Equal(t, good, anchor)

	// The first click is the floor; undoing past it is a no-op.
	s.UndoAnchor()
	anchor, _ = s.Anchor()
	require.Equal(t, good, anchor)

	s.RedoAnchor()
	require.False(t, s.Centroids()[0].Found())
}

func TestSession_EditUndoRedo(t *testing.T) {
	f := starField(fieldPositions)
	f.AddBlob(235, 78, 2.5, 2500) // contaminant near target 1
	s := newStarSession(t, f, session.Config{})
	s.PlaceAnchor(geometry.Point2D{X: 100, Y: 100})

	before := s.Centroids()[1]

	recorded, err := s.AddEdit(1, geometry.NewBox(225, 68, 248, 84), history.Exclude)
	require.NoError(t, err)
	require.True(t, recorded)

	edited := s.Centroids()[1]
	require.True(t, edited.Found())
	require.InDelta(t, 220, edited.X, 0.2)
	require.InDelta(t, 90, edited.Y, 0.2)
	require.NotEqual(t, before, edited)

	s.UndoEdit(1)
	require.Equal(t, before, s.Centroids()[1])

	s.RedoEdit(1)
	require.Equal(t, edited, s.Centroids()[1])
}

func TestSession_DegenerateDragIgnored(t *testing.T) {
	s := newStarSession(t, starField(fieldPositions), session.Config{})
	s.PlaceAnchor(geometry.Point2D{X: 100, Y: 100})
	before := s.Centroids()[2]

	recorded, err := s.AddEdit(2, geometry.NewBox(110, 220, 110, 220), history.Exclude)
	require.NoError(t, err)
	require.False(t, recorded)
	require.Equal(t, before, s.Centroids()[2])
}

func TestSession_SkipTarget(t *testing.T) {
	s := newStarSession(t, starField(fieldPositions), session.Config{})
	s.PlaceAnchor(geometry.Point2D{X: 100, Y: 100})

	require.ErrorIs(t, s.SkipTarget(0), session.ErrAnchorTarget)

	require.NoError(t, s.SkipTarget(2))
	require.False(t, s.Centroids()[2].Found())

	// A skipped target stays skipped across anchor changes.
	s.PlaceAnchor(geometry.Point2D{X: 100.8, Y: 99.5})
	require.False(t, s.Centroids()[2].Found())
	require.True(t, s.Centroids()[1].Found())
}

func TestSession_SolveRecoversTransform(t *testing.T) {
	known := alignment.Transform{ShiftX: 3.2, ShiftY: -2.4, Theta: 0.002}

	refPositions := make([]geometry.Point2D, len(fieldPositions))
	for i, p := range fieldPositions {
		refPositions[i] = known.Apply(p)
	}

	moving := newStarSession(t, starField(fieldPositions), session.Config{})
	moving.PlaceAnchor(geometry.Point2D{X: 100.4, Y: 99.7})

	reference := newStarSession(t, starField(refPositions), session.Config{})
	reference.PlaceAnchor(refPositions[0])

	sol, err := moving.Solve(reference.Centroids())
	require.NoError(t, err)

	require.Len(t, sol.Set, 4)
	for _, c := range sol.Set {
		require.True(t, c.Active)
	}
	require.InDelta(t, known.ShiftX, sol.Transform.ShiftX, 0.2)
	require.InDelta(t, known.ShiftY, sol.Transform.ShiftY, 0.2)
	require.InDelta(t, known.Theta*180/math.Pi, sol.Transform.Theta*180/math.Pi, 0.05)

	center := moving.Config().InstrumentCenter
	want := alignment.DeriveOffsets(known, center)
	require.InDelta(t, want.DX, sol.Offsets.DX, 0.3)
	require.InDelta(t, want.DY, sol.Offsets.DY, 0.3)
	require.InDelta(t, want.DPA, sol.Offsets.DPA, 0.05)
}

func TestSession_SolveWithUnfoundReference(t *testing.T) {
	moving := newStarSession(t, starField(fieldPositions), session.Config{})
	moving.PlaceAnchor(geometry.Point2D{X: 100, Y: 100})

	// Reference round never located anything.
	blank := newStarSession(t, frame.New(320, 320), session.Config{})
	blank.PlaceAnchor(geometry.Point2D{X: 100, Y: 100})

	_, err := moving.Solve(blank.Centroids())
	require.ErrorIs(t, err, alignment.ErrTooFewPoints)
}

func TestSolution_SetActiveRefits(t *testing.T) {
	known := alignment.Transform{ShiftX: -1.5, ShiftY: 2.5, Theta: 0.001}
	refPositions := make([]geometry.Point2D, len(fieldPositions))
	for i, p := range fieldPositions {
		refPositions[i] = known.Apply(p)
	}

	moving := newStarSession(t, starField(fieldPositions), session.Config{})
	moving.PlaceAnchor(geometry.Point2D{X: 100, Y: 100})
	reference := newStarSession(t, starField(refPositions), session.Config{})
	reference.PlaceAnchor(refPositions[0])

	sol, err := moving.Solve(reference.Centroids())
	require.NoError(t, err)

	require.NoError(t, sol.SetActive(3, false))
	require.False(t, sol.Set[3].Active)
	require.InDelta(t, known.ShiftX, sol.Transform.ShiftX, 0.3)

	require.NoError(t, sol.SetActive(3, true))
	require.True(t, sol.Set[3].Active)
	require.Len(t, sol.Residuals, 4)
}
