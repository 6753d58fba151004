package target

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"mos-align/pkg/geometry"
)

// Detector plate-scale constants for converting mask-design (SBR)
// coordinates into detector pixels. Inherited from the instrument's
// acquisition software; the hole-frame offsets account for the detector
// mosaic geometry.
const (
	sbrPlateScale = 17.57789
	sbrOriginX    = 1078.0
	sbrOriginY    = 1857.0
	holeFrameX    = 365.0
	holeFrameY    = 2580.0
	holeRefX      = 300.0
	holeRefY      = 2660.0
)

// ImageFromSBR converts a mask-design coordinate pair into detector pixels.
func ImageFromSBR(sbrX, sbrY float64) geometry.Point2D {
	fx := sbrOriginX - sbrX*sbrPlateScale
	fy := sbrOriginY + sbrY*sbrPlateScale
	return geometry.Point2D{
		X: holeFrameX + (fx - holeRefX),
		Y: holeFrameY + (fy - holeRefY),
	}
}

// ReadSBR reads the hole positions from a mask-design .sbr file and returns
// them in detector pixel coordinates. Only "C" (circle) records carry hole
// positions; other record types are skipped. A missing or unreadable file is
// an error; there is no fallback target list.
func ReadSBR(path string) ([]geometry.Point2D, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sbr file: %w", err)
	}
	defer f.Close()

	var positions []geometry.Point2D
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Split(scanner.Text(), ",")
		if len(fields) < 3 || strings.TrimSpace(fields[0]) != "C" {
			continue
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad x value: %w", path, lineNo, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad y value: %w", path, lineNo, err)
		}
		positions = append(positions, ImageFromSBR(x, y))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sbr file: %w", err)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%s: no hole records found", path)
	}
	return positions, nil
}
