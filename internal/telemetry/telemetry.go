package telemetry

import (
	"errors"
	"fmt"

	"github.com/roman-kulish/swath-footprint/internal/geodesy"
)

// ErrEmptySeries is returned when a telemetry series holds no samples
var ErrEmptySeries = errors.New("empty telemetry series")

// Pose is one telemetry sample: the platform position and attitude at the
// moment a scan line was acquired
type Pose struct {
	Position    geodesy.Coordinate `json:"position"`    // Platform position
	AltitudeMSL float64            `json:"altitudeMSL"` // Altitude above mean sea level in meters
	Roll        float64            `json:"roll"`        // Roll angle in degrees
	Pitch       float64            `json:"pitch"`       // Pitch angle in degrees, positive nose up
	Yaw         float64            `json:"yaw"`         // Yaw (heading) angle in degrees, clockwise from north
}

// Series is an ordered sequence of poses. The order is the acquisition
// order, which is also the along-track order of the scan lines.
type Series []Pose

// Coordinates returns the positions of the samples at the given indices
func (s Series) Coordinates(indices ...int) []geodesy.Coordinate {
	coords := make([]geodesy.Coordinate, len(indices))
	for i, idx := range indices {
		coords[i] = s[idx].Position
	}
	return coords
}

// Midpoint returns the index and pose of the middle sample
func (s Series) Midpoint() (int, Pose, error) {
	if len(s) == 0 {
		return 0, Pose{}, ErrEmptySeries
	}
	mid := len(s) / 2
	return mid, s[mid], nil
}

// MalformedError reports a telemetry row that cannot be turned into a pose
type MalformedError struct {
	Row    int    // 1-based row (line) number in the source
	Column string // Offending column, empty when the whole row is wrong
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("malformed telemetry row %d, column %s: %s", e.Row, e.Column, e.Reason)
	}
	return fmt.Sprintf("malformed telemetry row %d: %s", e.Row, e.Reason)
}
