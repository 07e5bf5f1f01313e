package elevation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/interp"

	"github.com/roman-kulish/swath-footprint/internal/geodesy"
	"github.com/roman-kulish/swath-footprint/internal/telemetry"
)

// Mode selects how the Resolver produces a profile
type Mode interface {
	resolve(ctx context.Context, r *Resolver, series telemetry.Series) (Profile, error)
}

// Constant assigns the same ground elevation to every sample
type Constant struct {
	Value float64 // Ground elevation in meters
}

func (m Constant) resolve(_ context.Context, _ *Resolver, series telemetry.Series) (Profile, error) {
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return nil, fmt.Errorf("constant elevation is not finite: %v", m.Value)
	}

	profile := make(Profile, len(series))
	for i := range profile {
		profile[i] = m.Value
	}
	return profile, nil
}

// Sampled queries the elevation source at Points sample indices strictly
// inside the series and interpolates linearly over the sample index in
// between. Indices before the first and after the last control point hold
// the nearest control value.
//
// With Points <= 1, or when the series is too short to have interior
// samples, the first sample is queried and its elevation used everywhere.
type Sampled struct {
	Points int
}

func (m Sampled) resolve(ctx context.Context, r *Resolver, series telemetry.Series) (Profile, error) {
	indices := []int{0}
	if m.Points > 1 {
		if interior := SampleIndices(len(series), m.Points); len(interior) > 0 {
			indices = interior
		}
	}

	r.logger.Debug("querying elevation source",
		slog.Int("controlPoints", len(indices)),
		slog.Int("samples", len(series)))

	elevations, err := r.query(ctx, series.Coordinates(indices...))
	if err != nil {
		return nil, err
	}

	return Interpolate(len(series), indices, elevations)
}

// WithLogger sets the logger for the resolver
func WithLogger(logger *slog.Logger) func(*Resolver) {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// Resolver turns a telemetry series into a per-sample ground elevation profile
type Resolver struct {
	source Source
	logger *slog.Logger
}

// NewResolver creates a Resolver. The source may be nil when only Constant
// mode is used.
func NewResolver(source Source, options ...func(*Resolver)) *Resolver {
	r := Resolver{
		source: source,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Resolve produces the elevation profile for series according to mode
func (r *Resolver) Resolve(ctx context.Context, series telemetry.Series, mode Mode) (Profile, error) {
	if len(series) == 0 {
		return nil, telemetry.ErrEmptySeries
	}
	if mode == nil {
		mode = Sampled{Points: 1}
	}
	return mode.resolve(ctx, r, series)
}

// query issues a single batched request for all coordinates
func (r *Resolver) query(ctx context.Context, coords []geodesy.Coordinate) ([]float64, error) {
	if r.source == nil {
		return nil, fmt.Errorf("%w: no elevation source configured", ErrUnavailable)
	}

	elevations, err := r.source.Elevations(ctx, coords)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(elevations) == 0 {
		return nil, fmt.Errorf("%w: source returned no results", ErrUnavailable)
	}
	if len(elevations) != len(coords) {
		return nil, fmt.Errorf("%w: source returned %d results for %d locations", ErrUnavailable, len(elevations), len(coords))
	}
	for i, e := range elevations {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return nil, fmt.Errorf("%w: non-finite elevation for %v", ErrUnavailable, coords[i])
		}
	}

	return elevations, nil
}

// SampleIndices returns up to n evenly spaced indices strictly inside
// [0, length-1]. Endpoints are excluded and duplicates produced by rounding
// on short series are removed, so fewer than n indices may be returned.
func SampleIndices(length, n int) []int {
	if n <= 0 || length < 3 {
		return nil
	}

	indices := make([]int, 0, n)
	step := float64(length-1) / float64(n+1)
	for i := 1; i <= n; i++ {
		idx := int(math.Round(float64(i) * step))
		if idx <= 0 || idx >= length-1 {
			continue
		}
		indices = append(indices, idx)
	}

	return slices.Compact(indices)
}

// Interpolate builds a profile of the given length from control points at
// strictly increasing sample indices. A single control point is broadcast.
func Interpolate(length int, indices []int, elevations []float64) (Profile, error) {
	if len(indices) != len(elevations) {
		return nil, fmt.Errorf("interpolating: %d indices for %d elevations", len(indices), len(elevations))
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("interpolating: no control points")
	}
	for i, idx := range indices {
		if idx < 0 || idx >= length {
			return nil, fmt.Errorf("interpolating: control index %d outside [0, %d)", idx, length)
		}
		if i > 0 && idx <= indices[i-1] {
			return nil, fmt.Errorf("interpolating: control indices not strictly increasing at %d", idx)
		}
	}

	profile := make(Profile, length)
	if len(indices) == 1 {
		for i := range profile {
			profile[i] = elevations[0]
		}
		return profile, nil
	}

	xs := make([]float64, len(indices))
	for i, idx := range indices {
		xs[i] = float64(idx)
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, elevations); err != nil {
		return nil, fmt.Errorf("fitting elevation profile: %w", err)
	}

	for i := range profile {
		profile[i] = pl.Predict(float64(i))
	}
	return profile, nil
}
