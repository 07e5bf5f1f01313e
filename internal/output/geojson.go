package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roman-kulish/swath-footprint/internal/swath"
)

// GeoJSONSink writes the footprint as a FeatureCollection holding one
// Polygon feature. GeoJSON positions carry no elevation here: it is written
// to the "elevation" property instead.
type GeoJSONSink struct {
	path string
}

// NewGeoJSONSink returns a sink writing to path, adding the .geojson
// extension when the path has none
func NewGeoJSONSink(path string) *GeoJSONSink {
	if filepath.Ext(path) == "" {
		path += ".geojson"
	}
	return &GeoJSONSink{path: path}
}

// Path returns the output file path
func (s *GeoJSONSink) Path() string {
	return s.path
}

func (s *GeoJSONSink) Write(_ context.Context, fp *swath.Footprint) error {
	p, err := MarshalGeoJSON(fp)
	if err != nil {
		return err
	}
	if err = os.WriteFile(s.path, p, 0o644); err != nil {
		return fmt.Errorf("writing geojson: %w", err)
	}
	return nil
}

// MarshalGeoJSON encodes the footprint with a counter-clockwise exterior
// ring as RFC 7946 requires
func MarshalGeoJSON(fp *swath.Footprint) ([]byte, error) {
	if len(fp.Ring) == 0 {
		return nil, ErrEmptyFootprint
	}

	ring := fp.ClosedRing()
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}

	f := geojson.NewFeature(orb.Polygon{ring})
	if fp.Label != "" {
		f.ID = fp.Label
	}
	f.Properties["name"] = fp.Label
	f.Properties["elevation"] = fp.Elevation
	f.Properties["fov"] = fp.FOV
	f.Properties["smooth"] = fp.Smooth
	f.Properties["samples"] = len(fp.Left)
	f.Properties["area"] = fp.Area()

	p, err := geojson.NewFeatureCollection().Append(f).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshaling geojson: %w", err)
	}
	return p, nil
}
