// Command locatetest localizes a single target in one exposure and prints
// the centroid. Useful for tuning search parameters against real frames.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"mos-align/internal/centroid"
	"mos-align/internal/frame"
	"mos-align/internal/target"
	"mos-align/pkg/geometry"
)

func main() {
	framePath := flag.String("f", "", "Path to exposure")
	kindName := flag.String("kind", "star", "Target kind: star, hole or starhole")
	x := flag.Float64("x", -1, "Search center x")
	y := flag.Float64("y", -1, "Search center y")
	half := flag.Float64("half", 0, "Search box half-width override")
	sigma := flag.Float64("sigma", 0, "Threshold sigma override")
	flag.Parse()

	if *framePath == "" || *x < 0 || *y < 0 {
		fmt.Println("Usage: locatetest -f <exposure> -x <x> -y <y> [-kind star] [-half N] [-sigma S]")
		os.Exit(1)
	}

	var kind target.Kind
	switch strings.ToLower(*kindName) {
	case "star":
		kind = target.Star
	case "hole", "mask":
		kind = target.Hole
	case "starhole":
		kind = target.StarHole
	default:
		fmt.Fprintf(os.Stderr, "Unknown target kind %q\n", *kindName)
		os.Exit(1)
	}

	params := target.DefaultParams(kind)
	if *half > 0 {
		params = params.WithSearchHalf(*half)
	}
	if *sigma != 0 {
		params = params.WithThreshold(*sigma)
	}

	f, err := frame.Load(*framePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load exposure: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %s: %dx%d\n", *framePath, f.W, f.H)

	spec := target.Spec{Radius: math.NaN()}
	region := spec.Region(geometry.Point2D{X: *x, Y: *y}, params)
	fmt.Printf("Search box (%.1f, %.1f)-(%.1f, %.1f), radius %.1f, sigma %.2f\n",
		region.Box.X1, region.Box.Y1, region.Box.X2, region.Box.Y2,
		region.Radius, params.ThresholdSigma)

	res, err := centroid.Locate(f, region, nil, params.MinRadius, params.ThresholdSigma)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Localization failed: %v\n", err)
		os.Exit(1)
	}
	if !res.Found() {
		fmt.Println("No object found in the search region")
		os.Exit(1)
	}
	fmt.Printf("Centroid: (%.3f, %.3f), radius %.2f px\n", res.X, res.Y, res.R)
}
