package output

import (
	"context"
	"errors"

	"github.com/roman-kulish/swath-footprint/internal/swath"
)

const (
	FormatShapefile Format = "shp"
	FormatGeoJSON   Format = "geojson"
)

// ErrEmptyFootprint is returned when a footprint has no ring to write
var ErrEmptyFootprint = errors.New("footprint has no vertices")

// Format of the footprint output file
type Format string

// Extension returns the file name extension of the format, with the dot
func (f Format) Extension() string {
	if f == FormatGeoJSON {
		return ".geojson"
	}
	return ".shp"
}

// Sink writes a finished footprint to its destination
type Sink interface {
	Write(ctx context.Context, fp *swath.Footprint) error
}

// NewSink returns the file sink for format writing to path
func NewSink(format Format, path string) (Sink, error) {
	switch format {
	case FormatShapefile:
		return NewShapefileSink(path), nil
	case FormatGeoJSON:
		return NewGeoJSONSink(path), nil
	default:
		return nil, errors.New("unsupported output format: " + string(format))
	}
}
