package geodesy

import (
	"math"
)

const (
	// EarthRadius is the mean Earth radius in meters used by all spherical
	// computations in this package
	EarthRadius = 6.3710088e6

	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// Coordinate is a geographic position on the spherical Earth
type Coordinate struct {
	Latitude  float64 `json:"latitude"`  // Latitude in degrees, [-90, 90]
	Longitude float64 `json:"longitude"` // Longitude in degrees, (-180, 180]
}

// NewCoordinate returns a coordinate with its longitude normalized
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Latitude: lat, Longitude: NormalizeLongitude(lon)}
}

// NormalizeLongitude wraps a longitude in degrees into (-180, 180].
// Values already in range are returned unchanged.
func NormalizeLongitude(lon float64) float64 {
	if lon > -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon <= 0 {
		lon += 360
	}
	return lon - 180
}

// Destination solves the direct geodetic problem on a sphere: it returns the
// point reached by travelling distance meters from start along the initial
// bearing (degrees clockwise from north).
//
// A negative distance travels in the reverse direction, so
// Destination(p, -d, b) equals Destination(p, d, b+180). Paths crossing a pole
// are not supported: the latitude is not clamped and the longitude of a point
// at a pole is meaningless.
func Destination(start Coordinate, distance, bearing float64) Coordinate {
	if distance == 0 {
		return NewCoordinate(start.Latitude, start.Longitude)
	}

	lat1 := start.Latitude * degToRad
	lon1 := start.Longitude * degToRad
	theta := bearing * degToRad
	delta := distance / EarthRadius

	sinLat1, cosLat1 := math.Sincos(lat1)
	sinDelta, cosDelta := math.Sincos(delta)
	sinTheta, cosTheta := math.Sincos(theta)

	sinLat2 := sinLat1*cosDelta + cosLat1*sinDelta*cosTheta
	lat2 := math.Asin(math.Max(-1, math.Min(1, sinLat2)))
	lon2 := lon1 + math.Atan2(sinTheta*sinDelta*cosLat1, cosDelta-sinLat1*sinLat2)

	return NewCoordinate(lat2*radToDeg, lon2*radToDeg)
}

// Distance returns the great-circle (haversine) distance in meters between
// two coordinates.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Latitude * degToRad
	lat2 := b.Latitude * degToRad
	dLat := lat2 - lat1
	dLon := NormalizeLongitude(b.Longitude-a.Longitude) * degToRad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial bearing in degrees [0, 360) from a to b.
func Bearing(a, b Coordinate) float64 {
	lat1 := a.Latitude * degToRad
	lat2 := b.Latitude * degToRad
	dLon := NormalizeLongitude(b.Longitude-a.Longitude) * degToRad

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return math.Mod(math.Atan2(y, x)*radToDeg+360, 360)
}
