package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	hueStart = 236.0
	hueEnd   = 0.0
)

// groundContactColor marks track samples at or below ground level
var groundContactColor = color.Black

// heightBounds is the range of altitudes above ground along the track
type heightBounds struct {
	Min float64
	Max float64
}

func newHeightBounds(track []TrackPoint) heightBounds {
	b := heightBounds{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, p := range track {
		if p.AGL <= 0 {
			continue
		}
		b.Min = math.Min(b.Min, p.AGL)
		b.Max = math.Max(b.Max, p.AGL)
	}
	return b
}

// heightColor maps an altitude above ground onto a blue (low) to red (high)
// hue ramp
func heightColor(agl float64, bounds heightBounds) color.Color {
	if agl <= 0 || math.IsNaN(agl) {
		return groundContactColor
	}

	span := bounds.Max - bounds.Min
	if span <= 0 {
		return colorful.Hsv(hueStart, 1, 0.90)
	}

	hPerMeter := (hueStart - hueEnd) / span
	hue := hueStart - (agl-bounds.Min)*hPerMeter
	hue = math.Min(math.Max(hue, hueEnd), hueStart)

	return colorful.Hsv(hue, 1, 0.90)
}
