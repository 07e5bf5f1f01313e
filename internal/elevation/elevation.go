package elevation

import (
	"context"
	"errors"

	"github.com/roman-kulish/swath-footprint/internal/geodesy"
)

// ErrUnavailable is returned when ground elevations cannot be obtained from
// the elevation source. A default elevation is never substituted.
var ErrUnavailable = errors.New("elevation unavailable")

// Source looks up ground elevations in meters for a batch of coordinates.
// The returned slice has the same length and order as coords.
type Source interface {
	Elevations(ctx context.Context, coords []geodesy.Coordinate) ([]float64, error)
}

// SourceFunc adapts a plain function to the Source interface
type SourceFunc func(ctx context.Context, coords []geodesy.Coordinate) ([]float64, error)

func (f SourceFunc) Elevations(ctx context.Context, coords []geodesy.Coordinate) ([]float64, error) {
	return f(ctx, coords)
}

// Profile holds one ground elevation per telemetry sample, in sample order
type Profile []float64
