package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roman-kulish/swath-footprint/internal/elevation"
	"github.com/roman-kulish/swath-footprint/internal/geodesy"
	"github.com/roman-kulish/swath-footprint/internal/swath"
)

// runMetrics describes one batch run. It is written to a node_exporter
// textfile once the run is over.
type runMetrics struct {
	registry *prometheus.Registry

	lastRun            prometheus.Gauge
	duration           prometheus.Gauge
	success            prometheus.Gauge
	samples            prometheus.Gauge
	belowGround        prometheus.Gauge
	area               prometheus.Gauge
	groundElevation    prometheus.Gauge
	elevationQueries   prometheus.Counter
	elevationLocations prometheus.Counter

	start time.Time
}

func newRunMetrics() *runMetrics {
	m := runMetrics{
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swath_last_run_timestamp_seconds",
			Help: "Unix time the last footprint run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swath_run_duration_seconds",
			Help: "Duration of the last footprint run in seconds.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swath_run_success",
			Help: "1 if the last footprint run succeeded, 0 otherwise.",
		}),
		samples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swath_telemetry_samples",
			Help: "Number of telemetry samples in the last flight line.",
		}),
		belowGround: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swath_below_ground_samples",
			Help: "Number of samples whose altitude above ground was not positive.",
		}),
		area: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swath_footprint_area_square_meters",
			Help: "Approximate area of the last footprint.",
		}),
		groundElevation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swath_ground_elevation_meters",
			Help: "Representative ground elevation of the last footprint.",
		}),
		elevationQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swath_elevation_queries_total",
			Help: "Number of batched requests sent to the elevation source.",
		}),
		elevationLocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swath_elevation_locations_total",
			Help: "Number of locations sent to the elevation source.",
		}),
		start: time.Now(),
	}

	m.registry.MustRegister(
		m.lastRun,
		m.duration,
		m.success,
		m.samples,
		m.belowGround,
		m.area,
		m.groundElevation,
		m.elevationQueries,
		m.elevationLocations,
	)
	return &m
}

// instrument counts the requests and locations passed to source
func (m *runMetrics) instrument(source elevation.Source) elevation.Source {
	return elevation.SourceFunc(func(ctx context.Context, coords []geodesy.Coordinate) ([]float64, error) {
		m.elevationQueries.Inc()
		m.elevationLocations.Add(float64(len(coords)))
		return source.Elevations(ctx, coords)
	})
}

func (m *runMetrics) observeFootprint(fp *swath.Footprint) {
	m.samples.Set(float64(len(fp.Left)))
	m.belowGround.Set(float64(fp.BelowGround))
	m.area.Set(fp.Area())
	m.groundElevation.Set(fp.Elevation)
}

func (m *runMetrics) finish(runErr error) {
	now := time.Now()
	m.lastRun.Set(float64(now.Unix()))
	m.duration.Set(now.Sub(m.start).Seconds())
	if runErr == nil {
		m.success.Set(1)
	}
}

// writeTextfile writes the metrics atomically to path
func (m *runMetrics) writeTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
