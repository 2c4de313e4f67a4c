package compress

import "math"

// FitDimensions returns the largest size with the aspect ratio of
// width x height that fits inside maxWidth x maxHeight. Images that already
// fit are returned unchanged; nothing is ever upscaled. A non-positive bound
// leaves that side unconstrained.
//
// The longer side is fitted first (width when width >= height), then the
// other side if it still overflows. Both sides are derived from the source
// dimensions so rounding error never compounds.
func FitDimensions(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}
	if maxWidth <= 0 {
		maxWidth = width
	}
	if maxHeight <= 0 {
		maxHeight = height
	}
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}

	w, h := width, height
	fitWidth := func() {
		if w > maxWidth {
			w, h = maxWidth, scaleSide(height, maxWidth, width)
		}
	}
	fitHeight := func() {
		if h > maxHeight {
			w, h = scaleSide(width, maxHeight, height), maxHeight
		}
	}
	if width >= height {
		fitWidth()
		fitHeight()
	} else {
		fitHeight()
		fitWidth()
	}
	return w, h
}

// scaleSide returns round(side * num / den), at least 1.
func scaleSide(side, num, den int) int {
	v := int(math.Round(float64(side) * float64(num) / float64(den)))
	if v < 1 {
		return 1
	}
	return v
}
