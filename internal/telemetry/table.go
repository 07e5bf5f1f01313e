package telemetry

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/roman-kulish/swath-footprint/internal/geodesy"
)

const (
	// TableColumns is the number of columns every table row must carry:
	// index, longitude, latitude, altitude MSL, roll, pitch, yaw
	TableColumns = 7

	// Some recorders append one trailing column which is ignored
	maxTableColumns = TableColumns + 1
)

var tableColumnNames = [maxTableColumns]string{"index", "longitude", "latitude", "altitude", "roll", "pitch", "yaw", "trailing"}

// ReadTable parses a whitespace separated numeric telemetry table. Blank
// lines and lines starting with '#' are skipped. The leading index column
// and an optional trailing column are validated as numbers but otherwise
// ignored.
func ReadTable(r io.Reader) (Series, error) {
	var series Series

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	columns := 0
	row := 0
	for scanner.Scan() {
		row++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < TableColumns || len(fields) > maxTableColumns {
			return nil, &MalformedError{
				Row:    row,
				Reason: fmt.Sprintf("expected %d or %d columns, got %d", TableColumns, maxTableColumns, len(fields)),
			}
		}
		if columns == 0 {
			columns = len(fields)
		} else if len(fields) != columns {
			return nil, &MalformedError{
				Row:    row,
				Reason: fmt.Sprintf("column count changed from %d to %d", columns, len(fields)),
			}
		}

		pose, err := parseRow(row, fields)
		if err != nil {
			return nil, err
		}
		series = append(series, pose)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading telemetry table: %w", err)
	}

	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	return series, nil
}

func parseRow(row int, fields []string) (Pose, error) {
	var values [maxTableColumns]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Pose{}, &MalformedError{Row: row, Column: tableColumnNames[i], Reason: fmt.Sprintf("not a number: %q", field)}
		}
		if i > 0 && i < TableColumns && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return Pose{}, &MalformedError{Row: row, Column: tableColumnNames[i], Reason: "value is not finite"}
		}
		values[i] = v
	}

	lon, lat := values[1], values[2]
	if lat < -90 || lat > 90 {
		return Pose{}, &MalformedError{Row: row, Column: "latitude", Reason: fmt.Sprintf("%.6f outside [-90, 90]", lat)}
	}

	return Pose{
		Position:    geodesy.NewCoordinate(lat, lon),
		AltitudeMSL: values[3],
		Roll:        values[4],
		Pitch:       values[5],
		Yaw:         values[6],
	}, nil
}

// TableFile is a telemetry Source backed by a table file on disk
type TableFile struct {
	Path string
}

// Series reads and parses the table file
func (f TableFile) Series(_ context.Context) (series Series, err error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening telemetry table: %w", err)
	}
	defer func() {
		if cErr := file.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing telemetry table: %w", cErr)
		}
	}()

	return ReadTable(file)
}
