package target

// Params holds the per-kind localization parameters, resolved once at
// session start. These are configuration: the defaults match the
// instrument's acquisition software, but callers may override any field.
type Params struct {
	// SearchHalf is the apothem of the square search region in pixels.
	SearchHalf float64
	// MinRadius is the floor for the shrinking search radius; the locator
	// never searches below it. It approximates the largest expected
	// object radius.
	MinRadius float64
	// ThresholdSigma is the number of standard deviations above the mean
	// separating signal from background. Bright point sources want a tight
	// positive value; faint or extended sources a small negative one.
	ThresholdSigma float64
}

// DefaultParams returns default localization parameters for a target kind.
func DefaultParams(k Kind) Params {
	switch k {
	case Star:
		return Params{SearchHalf: 30, MinRadius: 4, ThresholdSigma: 3}
	case Hole:
		// Holes are large and flat-topped; a slightly negative threshold
		// keeps the full aperture instead of only the brightest pixels.
		return Params{SearchHalf: 60, MinRadius: 20, ThresholdSigma: -0.2}
	case StarHole:
		return Params{SearchHalf: 20, MinRadius: 4, ThresholdSigma: -0.2}
	default:
		return Params{SearchHalf: 30, MinRadius: 4, ThresholdSigma: 3}
	}
}

// WithThreshold returns a copy of params with a custom threshold sigma.
func (p Params) WithThreshold(sigma float64) Params {
	p.ThresholdSigma = sigma
	return p
}

// WithSearchHalf returns a copy of params with a custom search box apothem.
func (p Params) WithSearchHalf(half float64) Params {
	p.SearchHalf = half
	return p
}
