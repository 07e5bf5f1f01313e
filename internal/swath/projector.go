package swath

import (
	"math"

	"github.com/roman-kulish/swath-footprint/internal/geodesy"
)

const (
	// DefaultFOV is the cross-track field of view of the instrument in degrees
	DefaultFOV = 17.0

	// MaxOffNadir is the largest off-nadir angle in degrees that is projected
	// onto the ground. Beyond it the tangent diverges and the ground offset
	// is no longer meaningful.
	MaxOffNadir = 89.0

	degToRad = math.Pi / 180
)

// GroundPoint returns the ground coordinate imaged along the boresight.
//
// Pitch is positive nose up: a positive pitch tilts the boresight forward
// and moves the ground point ahead of the platform along yaw, a negative
// pitch moves it behind. The altitude must already be above ground level.
func GroundPoint(position geodesy.Coordinate, altitude, pitch, yaw float64) (geodesy.Coordinate, error) {
	offset, err := groundOffset(altitude, pitch, AnglePitch)
	if err != nil {
		return geodesy.Coordinate{}, err
	}
	return geodesy.Destination(position, offset, yaw), nil
}

// ScanEdges returns the ground points bounding the cross-track field of view.
//
// Roll is positive when it widens the left side of the swath: the left edge
// lies fov/2+roll off nadir at bearing yaw-90, the right edge fov/2-roll off
// nadir at bearing yaw+90. Both are measured from the boresight ground point.
func ScanEdges(position geodesy.Coordinate, altitude, roll, pitch, yaw, fov float64) (left, right geodesy.Coordinate, err error) {
	ground, err := GroundPoint(position, altitude, pitch, yaw)
	if err != nil {
		return
	}

	dLeft, err := groundOffset(altitude, fov/2+roll, AngleLeft)
	if err != nil {
		return
	}
	dRight, err := groundOffset(altitude, fov/2-roll, AngleRight)
	if err != nil {
		return
	}

	left = geodesy.Destination(ground, dLeft, yaw-90)
	right = geodesy.Destination(ground, dRight, yaw+90)
	return left, right, nil
}

// groundOffset converts an off-nadir angle in degrees to a horizontal ground
// distance in meters
func groundOffset(altitude, angle float64, kind AngleKind) (float64, error) {
	if math.IsNaN(angle) || math.Abs(angle) >= MaxOffNadir {
		return 0, &DomainError{Index: -1, Kind: kind, Angle: angle}
	}
	return altitude * math.Tan(angle*degToRad), nil
}
