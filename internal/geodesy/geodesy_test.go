package geodesy

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func closeTo(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDestination_ZeroDistance(t *testing.T) {
	points := []Coordinate{
		{Latitude: 0, Longitude: 0},
		{Latitude: 51.4779, Longitude: -0.0015},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 64.1466, Longitude: 180},
	}

	for _, p := range points {
		for _, bearing := range []float64{0, 45, 90, 180, 271.5, -30} {
			got := Destination(p, 0, bearing)
			if !closeTo(got.Latitude, p.Latitude, tolerance) || !closeTo(got.Longitude, p.Longitude, tolerance) {
				t.Errorf("Destination(%v, 0, %.1f) = %v, want %v", p, bearing, got, p)
			}
		}
	}
}

func TestDestination_BearingSymmetry(t *testing.T) {
	start := Coordinate{Latitude: 47.3769, Longitude: 8.5417}

	for _, distance := range []float64{1, 150, 2_500, 40_000} {
		for _, bearing := range []float64{0, 33, 90, 145, 260, 359} {
			forward := Destination(start, distance, bearing)
			reversed := Destination(start, -distance, bearing+180)

			if !closeTo(forward.Latitude, reversed.Latitude, tolerance) ||
				!closeTo(forward.Longitude, reversed.Longitude, tolerance) {
				t.Errorf("d=%.0f b=%.0f: forward %v != reversed %v", distance, bearing, forward, reversed)
			}
		}
	}
}

func TestDestination_RoundTrip(t *testing.T) {
	start := Coordinate{Latitude: -12.5, Longitude: 130.8}

	for _, distance := range []float64{10, 1_000, 12_345} {
		for _, bearing := range []float64{0, 90, 180, 270, 17} {
			there := Destination(start, distance, bearing)
			back := Destination(there, distance, Bearing(there, start))

			if Distance(start, back) > 1e-3 {
				t.Errorf("d=%.0f b=%.0f: round trip ended %.6f m away from start", distance, bearing, Distance(start, back))
			}

			// the naive reverse bearing is only approximately right over short distances
			naive := Destination(there, distance, bearing+180)
			if Distance(start, naive) > distance*1e-3 {
				t.Errorf("d=%.0f b=%.0f: naive round trip ended %.3f m away", distance, bearing, Distance(start, naive))
			}
		}
	}
}

func TestDestination_LongitudeNormalized(t *testing.T) {
	tests := []struct {
		name     string
		start    Coordinate
		distance float64
		bearing  float64
	}{
		{"east across antimeridian", Coordinate{Latitude: 10, Longitude: 179.999}, 5_000, 90},
		{"west across antimeridian", Coordinate{Latitude: -10, Longitude: -179.999}, 5_000, 270},
		{"far east", Coordinate{Latitude: 0, Longitude: 170}, 3_000_000, 90},
		{"unnormalized start", Coordinate{Latitude: 20, Longitude: 540}, 100, 0},
		{"negative distance", Coordinate{Latitude: 0, Longitude: -180}, -1_000, 90},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Destination(tc.start, tc.distance, tc.bearing)
			if got.Longitude <= -180 || got.Longitude > 180 {
				t.Errorf("longitude %.6f outside (-180, 180]", got.Longitude)
			}
		})
	}
}

func TestDestination_OneDegreeNorth(t *testing.T) {
	got := Destination(Coordinate{}, 111_195, 0)

	if !closeTo(got.Latitude, 1.0, 1e-3) {
		t.Errorf("latitude = %.6f, want ~1.0", got.Latitude)
	}
	if !closeTo(got.Longitude, 0, 1e-3) {
		t.Errorf("longitude = %.6f, want ~0", got.Longitude)
	}
}

func TestNormalizeLongitude(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{360, 0},
		{725, 5},
		{-179.5, -179.5},
	}

	for _, tc := range tests {
		if got := NormalizeLongitude(tc.in); !closeTo(got, tc.want, tolerance) {
			t.Errorf("NormalizeLongitude(%.1f) = %.6f, want %.1f", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeLongitude_InRangeUnchanged(t *testing.T) {
	for _, lon := range []float64{0.3, 10.1, 151.22, -122.3, -179.999999, 180} {
		if got := NormalizeLongitude(lon); got != lon {
			t.Errorf("NormalizeLongitude(%v) = %v, want it unchanged", lon, got)
		}
		if c := NewCoordinate(47.6, lon); c.Longitude != lon {
			t.Errorf("NewCoordinate longitude %v, want %v", c.Longitude, lon)
		}
	}
}

func TestDistanceAndBearing(t *testing.T) {
	a := Coordinate{Latitude: 0, Longitude: 0}
	b := Destination(a, 10_000, 60)

	if d := Distance(a, b); !closeTo(d, 10_000, 1e-3) {
		t.Errorf("Distance = %.6f m, want 10000", d)
	}
	if brg := Bearing(a, b); !closeTo(brg, 60, 1e-6) {
		t.Errorf("Bearing = %.6f, want 60", brg)
	}
}
