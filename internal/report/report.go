// Package report provides acquisition report file handling and persistence.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"mos-align/internal/alignment"
	"mos-align/internal/centroid"
	"mos-align/internal/session"
	"mos-align/internal/target"
)

// Report is the persisted outcome of one solved acquisition round.
type Report struct {
	Version int       `json:"version"`
	Created time.Time `json:"created"`
	Kind    string    `json:"kind"`

	// Exposure paths, when the round came from files.
	RefFramePath string `json:"ref_frame,omitempty"`
	FramePath    string `json:"frame,omitempty"`

	Offsets   alignment.Offsets   `json:"offsets"`
	Transform alignment.Transform `json:"transform"`

	Correspondences []alignment.Correspondence `json:"correspondences"`
	Residuals       []alignment.Residual       `json:"residuals"`
	Targets         []TargetResult             `json:"targets"`
}

// TargetResult is one target's localization outcome. Coordinates are only
// meaningful when Found is set; the sentinel never reaches the file.
type TargetResult struct {
	Found bool    `json:"found"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	R     float64 `json:"r,omitempty"`
}

// New assembles a report from a solved round. centroids is the moving
// round's per-target results, in target order.
func New(kind target.Kind, sol *session.Solution, centroids []centroid.Result) *Report {
	targets := make([]TargetResult, len(centroids))
	for i, c := range centroids {
		if c.Found() {
			targets[i] = TargetResult{Found: true, X: c.X, Y: c.Y, R: c.R}
		}
	}
	return &Report{
		Version:         1,
		Created:         time.Now(),
		Kind:            kind.String(),
		Offsets:         sol.Offsets,
		Transform:       sol.Transform,
		Correspondences: sol.Set,
		Residuals:       sol.Residuals,
		Targets:         targets,
	}
}

// Load reads a report back from a file.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
