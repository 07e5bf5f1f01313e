package output

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/roman-kulish/swath-footprint/internal/elevation"
	"github.com/roman-kulish/swath-footprint/internal/telemetry"
)

// MetadataHeader is the header row of the metadata log
var MetadataHeader = []string{"ImgName", "CtrLon", "CtrLat", "GndDEMm", "SensorMSLm", "SensorAGLm", "ImgFOV"}

// MetadataRecord describes one flight line by its midpoint sample
type MetadataRecord struct {
	Name   string
	Index  int // Index of the midpoint sample
	Center telemetry.Pose
	Ground float64 // Ground elevation below the midpoint in meters
	FOV    float64 // Field of view in degrees
}

// NewMetadataRecord builds the record for the midpoint sample of a series
func NewMetadataRecord(name string, series telemetry.Series, profile elevation.Profile, fov float64) (MetadataRecord, error) {
	idx, pose, err := series.Midpoint()
	if err != nil {
		return MetadataRecord{}, err
	}
	if len(profile) != len(series) {
		return MetadataRecord{}, fmt.Errorf("%d elevations for %d samples", len(profile), len(series))
	}

	return MetadataRecord{
		Name:   name,
		Index:  idx,
		Center: pose,
		Ground: profile[idx],
		FOV:    fov,
	}, nil
}

// AGL returns the sensor altitude above ground at the midpoint
func (r MetadataRecord) AGL() float64 {
	return r.Center.AltitudeMSL - r.Ground
}

func (r MetadataRecord) row() []string {
	f := func(v float64, prec int) string {
		return strconv.FormatFloat(v, 'f', prec, 64)
	}
	return []string{
		r.Name,
		f(r.Center.Position.Longitude, 7),
		f(r.Center.Position.Latitude, 7),
		f(r.Ground, 2),
		f(r.Center.AltitudeMSL, 2),
		f(r.AGL(), 2),
		f(r.FOV, 2),
	}
}

// MetadataLog is an append-only CSV log with one record per processed
// flight line
type MetadataLog struct {
	path string
}

func NewMetadataLog(path string) *MetadataLog {
	return &MetadataLog{path: path}
}

// Append adds a record to the log. The header is written only when the log
// file is created.
func (l *MetadataLog) Append(record MetadataRecord) (err error) {
	writeHeader := false
	if _, err = os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		writeHeader = true
	} else if err != nil {
		return fmt.Errorf("checking metadata log: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening metadata log: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	bw := bufio.NewWriter(f)
	cw := csv.NewWriter(bw)

	if writeHeader {
		if err = cw.Write(MetadataHeader); err != nil {
			return fmt.Errorf("writing metadata header: %w", err)
		}
	}
	if err = cw.Write(record.row()); err != nil {
		return fmt.Errorf("writing metadata record: %w", err)
	}

	cw.Flush()
	if err = cw.Error(); err != nil {
		return fmt.Errorf("flushing metadata log: %w", err)
	}
	return bw.Flush()
}
