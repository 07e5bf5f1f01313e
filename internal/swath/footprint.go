package swath

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/swath-footprint/internal/elevation"
	"github.com/roman-kulish/swath-footprint/internal/geodesy"
	"github.com/roman-kulish/swath-footprint/internal/telemetry"
)

const (
	Left Side = iota
	Right
)

// Side of the swath, looking along the direction of travel
type Side int

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// EdgePoint is a swath boundary point produced by one telemetry sample
type EdgePoint struct {
	geodesy.Coordinate
	Side  Side
	Index int // Index of the sample that produced the point
}

// Vertex is a ring vertex draped at the representative ground elevation
type Vertex struct {
	Longitude float64 `json:"x"`
	Latitude  float64 `json:"y"`
	Elevation float64 `json:"z"`
}

// Options controls footprint assembly
type Options struct {
	Label  string  // Identifying label of the footprint
	FOV    float64 // Cross-track field of view in degrees
	Smooth bool    // Ignore roll to suppress jagged edges caused by roll noise
}

// Footprint is the closed swath polygon of one flight line
type Footprint struct {
	Label     string
	Elevation float64 // Mean ground elevation of the flight line in meters
	FOV       float64
	Smooth    bool

	// Ring holds the left edge in sample order followed by the right edge in
	// reverse sample order. It is not explicitly closed: the last vertex
	// connects back to the first.
	Ring []Vertex

	Left  []EdgePoint
	Right []EdgePoint

	// BelowGround counts samples whose altitude above ground was not positive
	BelowGround int
}

// BuildFootprint projects the swath edges of every sample and assembles them
// into a single ring. It fails without a partial result if any sample cannot
// be projected.
func BuildFootprint(series telemetry.Series, profile elevation.Profile, opts Options) (*Footprint, error) {
	if len(series) == 0 {
		return nil, ErrEmptyTelemetry
	}
	if len(profile) != len(series) {
		return nil, fmt.Errorf("%w: %d elevations for %d samples", ErrProfileMismatch, len(profile), len(series))
	}
	if opts.FOV < 0 || math.IsNaN(opts.FOV) {
		return nil, fmt.Errorf("invalid field of view %.3f°", opts.FOV)
	}

	fp := Footprint{
		Label:     opts.Label,
		Elevation: stat.Mean(profile, nil),
		FOV:       opts.FOV,
		Smooth:    opts.Smooth,
		Left:      make([]EdgePoint, 0, len(series)),
		Right:     make([]EdgePoint, 0, len(series)),
	}

	for i, pose := range series {
		agl := pose.AltitudeMSL - profile[i]
		if agl <= 0 {
			fp.BelowGround++
		}

		roll := pose.Roll
		if opts.Smooth {
			roll = 0
		}

		left, right, err := ScanEdges(pose.Position, agl, roll, pose.Pitch, pose.Yaw, opts.FOV)
		if err != nil {
			var domainErr *DomainError
			if errors.As(err, &domainErr) {
				domainErr.Index = i
			}
			return nil, err
		}

		fp.Left = append(fp.Left, EdgePoint{Coordinate: left, Side: Left, Index: i})
		fp.Right = append(fp.Right, EdgePoint{Coordinate: right, Side: Right, Index: i})
	}

	fp.Ring = make([]Vertex, 0, 2*len(series))
	for _, p := range fp.Left {
		fp.Ring = append(fp.Ring, Vertex{Longitude: p.Longitude, Latitude: p.Latitude, Elevation: fp.Elevation})
	}
	for i := len(fp.Right) - 1; i >= 0; i-- {
		p := fp.Right[i]
		fp.Ring = append(fp.Ring, Vertex{Longitude: p.Longitude, Latitude: p.Latitude, Elevation: fp.Elevation})
	}

	return &fp, nil
}

// ClosedRing returns the ring as planar lon/lat points with the first point
// repeated at the end
func (f *Footprint) ClosedRing() orb.Ring {
	ring := make(orb.Ring, 0, len(f.Ring)+1)
	for _, v := range f.Ring {
		ring = append(ring, orb.Point{v.Longitude, v.Latitude})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring
}

// Polygon returns the footprint as a single-ring polygon
func (f *Footprint) Polygon() orb.Polygon {
	return orb.Polygon{f.ClosedRing()}
}

// Area returns the approximate area of the footprint in square meters
func (f *Footprint) Area() float64 {
	return math.Abs(geo.Area(f.Polygon()))
}
