// Package session coordinates one acquisition round: anchor placement,
// per-target region edits, localization, and the rigid fit against a
// reference round.
package session

import (
	"errors"
	"fmt"
	"sync"

	"mos-align/internal/alignment"
	"mos-align/internal/centroid"
	"mos-align/internal/history"
	"mos-align/internal/target"
	"mos-align/pkg/geometry"
)

// Default rotation center of the instrument on the detector.
const (
	defaultCenterX = 1024
	defaultCenterY = 1750
)

var (
	// ErrNoAnchor reports an operation that needs target positions before
	// the anchor has been placed.
	ErrNoAnchor = errors.New("anchor not placed")
	// ErrAnchorTarget reports an attempt to skip the anchor target. Every
	// other target position derives from it, so it cannot be passed over.
	ErrAnchorTarget = errors.New("anchor target cannot be skipped")
)

// Config holds the knobs for one acquisition round. The zero value of each
// field selects the instrument default.
type Config struct {
	// Kind selects the per-target localization defaults.
	Kind target.Kind
	// Params overrides the localization parameters; the zero value means
	// target.DefaultParams(Kind).
	Params target.Params
	// InstrumentCenter is the rotation center used when deriving offsets;
	// the zero value means the detector default.
	InstrumentCenter geometry.Point2D
	// ResidualTolerance bounds active residuals after outlier rejection;
	// zero means alignment.ResidualTolerance.
	ResidualTolerance float64
	// Parallel localizes all targets concurrently after an anchor change.
	Parallel bool
	// Debug prints per-target localization results.
	Debug bool
}

func (c Config) withDefaults() Config {
	if c.Params == (target.Params{}) {
		c.Params = target.DefaultParams(c.Kind)
	}
	if c.InstrumentCenter == (geometry.Point2D{}) {
		c.InstrumentCenter = geometry.Point2D{X: defaultCenterX, Y: defaultCenterY}
	}
	if c.ResidualTolerance == 0 {
		c.ResidualTolerance = alignment.ResidualTolerance
	}
	return c
}

// Session is the mutable state of one acquisition round. All methods are
// safe for concurrent use.
type Session struct {
	mu  sync.RWMutex
	cfg Config
	src centroid.Source

	targets   []target.Spec
	clicks    *history.ClickLog
	edits     []*history.EditLog
	centroids []centroid.Result
	skipped   []bool
}

// New builds a session over the given exposure source and target list.
// The first target is the anchor.
func New(cfg Config, src centroid.Source, targets []target.Spec) (*Session, error) {
	if len(targets) == 0 {
		return nil, errors.New("session needs at least one target")
	}
	s := &Session{
		cfg:       cfg.withDefaults(),
		src:       src,
		targets:   targets,
		clicks:    history.NewClickLog(),
		edits:     history.NewEditLogs(len(targets)),
		centroids: make([]centroid.Result, len(targets)),
		skipped:   make([]bool, len(targets)),
	}
	for i := range s.centroids {
		s.centroids[i] = centroid.NotFound()
	}
	return s, nil
}

// Config returns the resolved session configuration.
func (s *Session) Config() Config { return s.cfg }

// NumTargets returns the number of targets in the session.
func (s *Session) NumTargets() int { return len(s.targets) }

// PlaceAnchor records an operator click on the anchor target and relocates
// every target relative to it.
func (s *Session) PlaceAnchor(p geometry.Point2D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks.Record(p)
	s.locateAllLocked()
}

// UndoAnchor steps back to the previous anchor click and relocates all
// targets. The first click is never undone.
func (s *Session) UndoAnchor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks.Undo()
	s.locateAllLocked()
}

// RedoAnchor reapplies an undone anchor click and relocates all targets.
func (s *Session) RedoAnchor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks.Redo()
	s.locateAllLocked()
}

// Anchor returns the current anchor click, if one has been placed.
func (s *Session) Anchor() (geometry.Point2D, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clicks.Current()
}

// LocateAll relocates every target against the current anchor. Anchor and
// edit changes already relocate affected targets; LocateAll re-runs the
// whole round explicitly, for example after the exposure source updated in
// place.
func (s *Session) LocateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locateAllLocked()
}

// Region returns the current search region for target i.
func (s *Session) Region(i int) (geometry.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	anchor, ok := s.clicks.Current()
	if !ok {
		return geometry.Region{}, ErrNoAnchor
	}
	return s.targets[i].Region(anchor, s.cfg.Params), nil
}

// AddEdit records a region edit for target i and relocates it. The rectangle
// is clamped into the target's search box; recorded is false for degenerate
// drags, which leave the target untouched.
func (s *Session) AddEdit(i int, rect geometry.Box, kind history.EditKind) (recorded bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	anchor, ok := s.clicks.Current()
	if !ok {
		return false, ErrNoAnchor
	}
	bounds := s.targets[i].Region(anchor, s.cfg.Params).Box
	if !s.edits[i].Record(rect, kind, bounds) {
		return false, nil
	}
	s.locateLocked(i)
	return true, nil
}

// UndoEdit unapplies the most recent edit on target i and relocates it.
func (s *Session) UndoEdit(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits[i].Undo()
	s.locateLocked(i)
}

// RedoEdit reapplies the most recently undone edit on target i and
// relocates it.
func (s *Session) RedoEdit(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits[i].Redo()
	s.locateLocked(i)
}

// SkipTarget marks target i as passed over for this round; its centroid
// becomes the not-found sentinel. The anchor target cannot be skipped.
func (s *Session) SkipTarget(i int) error {
	if i == 0 {
		return ErrAnchorTarget
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped[i] = true
	s.centroids[i] = centroid.NotFound()
	return nil
}

// Centroids returns a copy of the current localization results, one per
// target, in target order. Skipped and failed targets hold the not-found
// sentinel.
func (s *Session) Centroids() []centroid.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]centroid.Result, len(s.centroids))
	copy(out, s.centroids)
	return out
}

// locateAllLocked relocates every target. Targets are independent, so with
// Parallel set each gets its own goroutine; each writes only its own slot.
func (s *Session) locateAllLocked() {
	if !s.cfg.Parallel {
		for i := range s.targets {
			s.locateLocked(i)
		}
		return
	}
	var wg sync.WaitGroup
	for i := range s.targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.locateLocked(i)
		}(i)
	}
	wg.Wait()
}

// locateLocked relocates target i against the current anchor and edits.
// Callers hold the write lock.
func (s *Session) locateLocked(i int) {
	anchor, ok := s.clicks.Current()
	if !ok || s.skipped[i] || !s.targets[i].Known() {
		s.centroids[i] = centroid.NotFound()
		return
	}
	region := s.targets[i].Region(anchor, s.cfg.Params)
	res, err := centroid.Locate(s.src, region, s.edits[i].Applied(),
		s.cfg.Params.MinRadius, s.cfg.Params.ThresholdSigma)
	if err != nil {
		// Search box entirely off the frame. Treated like any other
		// localization failure for this target.
		res = centroid.NotFound()
	}
	s.centroids[i] = res
	if s.cfg.Debug {
		if res.Found() {
			fmt.Printf("target %d: (%.2f, %.2f) r=%.2f\n", i, res.X, res.Y, res.R)
		} else {
			fmt.Printf("target %d: not found\n", i)
		}
	}
}

// Solution is a solved alignment: the fitted transform, the derived
// instrument offsets, and the per-correspondence diagnostics.
type Solution struct {
	Transform alignment.Transform        `json:"transform"`
	Offsets   alignment.Offsets          `json:"offsets"`
	Set       []alignment.Correspondence `json:"correspondences"`
	Residuals []alignment.Residual       `json:"residuals"`

	center geometry.Point2D
}

// Solve fits this session's centroids (the moving set) against a reference
// round's centroids and derives instrument offsets. Pairs where either side
// is not found are dropped; outliers are rejected automatically.
func (s *Session) Solve(reference []centroid.Result) (*Solution, error) {
	s.mu.RLock()
	moving := make([]centroid.Result, len(s.centroids))
	copy(moving, s.centroids)
	cfg := s.cfg
	s.mu.RUnlock()

	set := alignment.NewSet(reference, moving)
	t, res, err := alignment.Solve(set, cfg.ResidualTolerance)
	if err != nil {
		return nil, fmt.Errorf("solve alignment: %w", err)
	}
	return &Solution{
		Transform: t,
		Offsets:   alignment.DeriveOffsets(t, cfg.InstrumentCenter),
		Set:       set,
		Residuals: res,
		center:    cfg.InstrumentCenter,
	}, nil
}

// SetActive toggles one correspondence and refits without further outlier
// rejection, so an operator override sticks.
func (sol *Solution) SetActive(i int, active bool) error {
	sol.Set[i].Active = active
	t, err := alignment.Fit(sol.Set)
	if err != nil {
		return err
	}
	sol.Transform = t
	sol.Residuals = alignment.Residuals(sol.Set, t)
	sol.Offsets = alignment.DeriveOffsets(t, sol.center)
	return nil
}
