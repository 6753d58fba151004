// Command mesoffset runs a full acquisition round on a reference and a
// moving exposure and prints the telescope offset corrections.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"mos-align/internal/alignment"
	"mos-align/internal/centroid"
	"mos-align/internal/frame"
	"mos-align/internal/report"
	"mos-align/internal/session"
	"mos-align/internal/target"
	"mos-align/internal/version"
	"mos-align/pkg/geometry"
)

func main() {
	refPath := flag.String("ref", "", "Path to reference exposure (mask frame)")
	framePath := flag.String("f", "", "Path to moving exposure (sky frame)")
	sbrPath := flag.String("sbr", "", "Path to mask design .sbr file with hole positions")
	kindName := flag.String("kind", "star", "Target kind on the moving frame: star, hole or starhole")
	anchorX := flag.Float64("x", -1, "Anchor click x on the moving frame")
	anchorY := flag.Float64("y", -1, "Anchor click y on the moving frame")
	refX := flag.Float64("rx", -1, "Anchor click x on the reference frame (default: same as -x)")
	refY := flag.Float64("ry", -1, "Anchor click y on the reference frame (default: same as -y)")
	out := flag.String("o", "", "Write the acquisition report to this JSON file")
	parallel := flag.Bool("parallel", false, "Localize targets concurrently")
	debug := flag.Bool("debug", false, "Print per-target localization results")
	demo := flag.Bool("demo", false, "Run on synthetic exposures with a known transform")
	flag.Parse()

	fmt.Printf("mesoffset %s\n", version.Version)

	if *demo {
		runDemo(*kindName, *parallel, *debug, *out)
		return
	}

	if *refPath == "" || *framePath == "" || *sbrPath == "" || *anchorX < 0 || *anchorY < 0 {
		fmt.Println("Usage: mesoffset -ref <mask> -f <sky> -sbr <mask.sbr> -x <x> -y <y> [-kind star] [-o report.json]")
		fmt.Println("       mesoffset -demo [-kind star]")
		os.Exit(1)
	}

	kind, err := parseKind(*kindName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== Targets: %s ===\n", *sbrPath)
	positions, err := target.ReadSBR(*sbrPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read targets: %v\n", err)
		os.Exit(1)
	}
	specs, first := target.Normalize(positions, nil)
	fmt.Printf("%d targets, anchor at design position (%.1f, %.1f)\n", len(specs), first.X, first.Y)

	refFrame, err := frame.Load(*refPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load reference: %v\n", err)
		os.Exit(1)
	}
	movFrame, err := frame.Load(*framePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load frame: %v\n", err)
		os.Exit(1)
	}

	if *refX < 0 {
		*refX = *anchorX
	}
	if *refY < 0 {
		*refY = *anchorY
	}

	// Reference round localizes mask holes; the moving round localizes the
	// requested kind.
	fmt.Printf("\n=== Locating reference (%s): %s ===\n", target.Hole, *refPath)
	refCentroids, err := locateRound(session.Config{Kind: target.Hole, Parallel: *parallel, Debug: *debug},
		refFrame, specs, geometry.Point2D{X: *refX, Y: *refY})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reference round failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== Locating frame (%s): %s ===\n", kind, *framePath)
	cfg := session.Config{Kind: kind, Parallel: *parallel, Debug: *debug}
	sess, err := session.New(cfg, movFrame, specs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Session setup failed: %v\n", err)
		os.Exit(1)
	}
	sess.PlaceAnchor(geometry.Point2D{X: *anchorX, Y: *anchorY})

	sol, err := sess.Solve(refCentroids)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Alignment failed: %v\n", err)
		os.Exit(1)
	}
	printSolution(sol)

	if *out != "" {
		r := report.New(kind, sol, sess.Centroids())
		r.RefFramePath = *refPath
		r.FramePath = *framePath
		if err := r.Save(*out); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nReport written to %s\n", *out)
	}
}

// locateRound runs one throwaway session to collect a round's centroids.
func locateRound(cfg session.Config, f *frame.Frame, specs []target.Spec, click geometry.Point2D) ([]centroid.Result, error) {
	s, err := session.New(cfg, f, specs)
	if err != nil {
		return nil, err
	}
	s.PlaceAnchor(click)
	return s.Centroids(), nil
}

func printSolution(sol *session.Solution) {
	fmt.Printf("\n=== Solution ===\n")
	fmt.Printf("shift: (%.3f, %.3f) px, rotation: %.5f rad\n",
		sol.Transform.ShiftX, sol.Transform.ShiftY, sol.Transform.Theta)
	fmt.Printf("offsets: dx=%.2f px  dy=%.2f px  dpa=%.4f deg\n",
		sol.Offsets.DX, sol.Offsets.DY, sol.Offsets.DPA)

	fmt.Printf("\n%-4s %-10s %-10s %-8s %s\n", "#", "res_x", "res_y", "mag", "active")
	for i, c := range sol.Set {
		fmt.Printf("%-4d %-10.3f %-10.3f %-8.3f %v\n",
			i, sol.Residuals[i].X, sol.Residuals[i].Y, sol.Residuals[i].Mag, c.Active)
	}
}

// runDemo exercises the full pipeline on synthetic exposures with a known
// transform, so the tool can be smoke tested without instrument data.
func runDemo(kindName string, parallel, debug bool, out string) {
	kind, err := parseKind(kindName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	known := alignment.Transform{ShiftX: 3.2, ShiftY: -2.4, Theta: 0.002}
	positions := []geometry.Point2D{
		{X: 400, Y: 400}, {X: 1400, Y: 420}, {X: 450, Y: 1600}, {X: 1500, Y: 1550},
	}
	specs, _ := target.Normalize(positions, nil)

	movFrame := frame.New(2048, 2048)
	refFrame := frame.New(2048, 2048)
	for _, p := range positions {
		movFrame.AddBlob(p.X, p.Y, 2.5, 1000)
		q := known.Apply(p)
		refFrame.AddBlob(q.X, q.Y, 2.5, 1000)
	}

	fmt.Printf("\n=== Demo: known transform shift (%.1f, %.1f), theta %.4f rad ===\n",
		known.ShiftX, known.ShiftY, known.Theta)

	refCentroids, err := locateRound(session.Config{Kind: kind, Parallel: parallel, Debug: debug},
		refFrame, specs, known.Apply(positions[0]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reference round failed: %v\n", err)
		os.Exit(1)
	}

	sess, err := session.New(session.Config{Kind: kind, Parallel: parallel, Debug: debug}, movFrame, specs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Session setup failed: %v\n", err)
		os.Exit(1)
	}
	sess.PlaceAnchor(positions[0])

	sol, err := sess.Solve(refCentroids)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Alignment failed: %v\n", err)
		os.Exit(1)
	}
	printSolution(sol)

	if out != "" {
		if err := report.New(kind, sol, sess.Centroids()).Save(out); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nReport written to %s\n", out)
	}
}

func parseKind(name string) (target.Kind, error) {
	switch strings.ToLower(name) {
	case "star":
		return target.Star, nil
	case "hole", "mask":
		return target.Hole, nil
	case "starhole":
		return target.StarHole, nil
	default:
		return 0, fmt.Errorf("unknown target kind %q (want star, hole or starhole)", name)
	}
}
