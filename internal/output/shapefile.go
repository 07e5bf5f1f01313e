package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/roman-kulish/swath-footprint/internal/swath"
)

// wgs84 is the projection written next to every shapefile
const wgs84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// Attribute table of the footprint shapefile
const (
	fieldID = iota
	fieldElevation
	fieldName
)

const nameLength = 80

var shapefileFields = []shp.Field{
	shp.NumberField("ID", 10),
	shp.FloatField("ELEV", 12, 2),
	shp.StringField("NAME", nameLength),
}

// ShapefileSink writes the footprint as a single PolygonZ record. Every
// vertex carries the representative elevation as its Z value.
type ShapefileSink struct {
	path string
}

// NewShapefileSink returns a sink writing to path. The .shp extension is
// added when missing; the .shx, .dbf and .prj companions share the name.
func NewShapefileSink(path string) *ShapefileSink {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		path += ".shp"
	}
	return &ShapefileSink{path: path}
}

// Path returns the .shp file path
func (s *ShapefileSink) Path() string {
	return s.path
}

func (s *ShapefileSink) Write(_ context.Context, fp *swath.Footprint) error {
	if len(fp.Ring) == 0 {
		return ErrEmptyFootprint
	}

	if err := s.writeShape(fp); err != nil {
		return err
	}

	// go-shp names the attribute table "<base>dbf", without the dot
	base := strings.TrimSuffix(s.path, filepath.Ext(s.path))
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return fmt.Errorf("renaming attribute table: %w", err)
	}

	if err := os.WriteFile(base+".prj", []byte(wgs84), 0o644); err != nil {
		return fmt.Errorf("writing projection: %w", err)
	}
	return nil
}

// writeShape writes the .shp, .shx and attribute files. They are flushed
// when the writer is closed on return.
func (s *ShapefileSink) writeShape(fp *swath.Footprint) error {
	w, err := shp.Create(s.path, shp.POLYGONZ)
	if err != nil {
		return fmt.Errorf("creating shapefile: %w", err)
	}
	defer w.Close()

	if err = w.SetFields(shapefileFields); err != nil {
		return fmt.Errorf("setting shapefile fields: %w", err)
	}

	row := int(w.Write(toPolygonZ(fp)))

	attrs := []struct {
		field int
		value any
	}{
		{fieldID, row + 1},
		{fieldElevation, fp.Elevation},
		{fieldName, truncate(fp.Label, nameLength)},
	}
	for _, a := range attrs {
		if err = w.WriteAttribute(row, a.field, a.value); err != nil {
			return fmt.Errorf("writing attribute %s: %w", shapefileFields[a.field].String(), err)
		}
	}
	return nil
}

// toPolygonZ builds a closed, clockwise exterior ring as the shapefile
// format requires for outer rings
func toPolygonZ(fp *swath.Footprint) *shp.PolygonZ {
	ring := fp.ClosedRing()
	if ring.Orientation() == orb.CCW {
		ring.Reverse()
	}

	points := make([]shp.Point, len(ring))
	z := make([]float64, len(ring))
	for i, p := range ring {
		points[i] = shp.Point{X: p.X(), Y: p.Y()}
		z[i] = fp.Elevation
	}

	return &shp.PolygonZ{
		Box:       shp.BBoxFromPoints(points),
		NumParts:  1,
		NumPoints: int32(len(points)),
		Parts:     []int32{0},
		Points:    points,
		ZRange:    [2]float64{fp.Elevation, fp.Elevation},
		ZArray:    z,
		MRange:    [2]float64{0, 0},
		MArray:    make([]float64, len(points)),
	}
}

// truncate shortens s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
