package output

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roman-kulish/swath-footprint/internal/elevation"
	"github.com/roman-kulish/swath-footprint/internal/geodesy"
	"github.com/roman-kulish/swath-footprint/internal/swath"
	"github.com/roman-kulish/swath-footprint/internal/telemetry"
)

func testFootprint(t *testing.T, yaw float64) *swath.Footprint {
	t.Helper()

	series := make(telemetry.Series, 4)
	for i := range series {
		series[i] = telemetry.Pose{
			Position:    geodesy.Destination(geodesy.Coordinate{Latitude: 47.6, Longitude: -122.3}, float64(i)*50, yaw),
			AltitudeMSL: 1200,
			Yaw:         yaw,
		}
	}

	fp, err := swath.BuildFootprint(series, elevation.Profile{150, 152, 154, 156}, swath.Options{Label: "line-12", FOV: swath.DefaultFOV})
	if err != nil {
		t.Fatalf("BuildFootprint: %v", err)
	}
	return fp
}

func TestShapefileSink(t *testing.T) {
	fp := testFootprint(t, 0)

	dir := t.TempDir()
	sink := NewShapefileSink(filepath.Join(dir, "line-12"))
	if !strings.HasSuffix(sink.Path(), ".shp") {
		t.Fatalf("expected .shp path, got %s", sink.Path())
	}
	if err := sink.Write(context.Background(), fp); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"line-12.dbf", "line-12.prj", "line-12.shp", "line-12.shx"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("shapefile files mismatch (-want +got):\n%s", diff)
	}

	r, err := shp.Open(sink.Path())
	if err != nil {
		t.Fatalf("opening shapefile: %v", err)
	}
	defer r.Close()

	if !r.Next() {
		t.Fatal("expected one shape")
	}
	_, shape := r.Shape()
	poly, ok := shape.(*shp.PolygonZ)
	if !ok {
		t.Fatalf("expected PolygonZ, got %T", shape)
	}

	if int(poly.NumPoints) != len(fp.Ring)+1 {
		t.Errorf("expected %d points, got %d", len(fp.Ring)+1, poly.NumPoints)
	}
	if poly.Points[0] != poly.Points[len(poly.Points)-1] {
		t.Error("ring is not closed")
	}
	for i, z := range poly.ZArray {
		if z != fp.Elevation {
			t.Errorf("point %d: z = %f, want %f", i, z, fp.Elevation)
		}
	}

	ring := make(orb.Ring, len(poly.Points))
	for i, p := range poly.Points {
		ring[i] = orb.Point{p.X, p.Y}
	}
	if ring.Orientation() != orb.CW {
		t.Error("exterior ring should be clockwise")
	}

	if got := r.ReadAttribute(0, fieldName); got != "line-12" {
		t.Errorf("NAME = %q", got)
	}
	if got, _ := strconv.ParseFloat(strings.TrimSpace(r.ReadAttribute(0, fieldElevation)), 64); got != 153 {
		t.Errorf("ELEV = %v, want 153", got)
	}
	if got := strings.TrimSpace(r.ReadAttribute(0, fieldID)); got != "1" {
		t.Errorf("ID = %q", got)
	}

	if r.Next() {
		t.Error("expected a single shape")
	}
}

func TestGeoJSONSink(t *testing.T) {
	// flying south produces a counter-clockwise ring before reorientation
	for _, yaw := range []float64{0, 180} {
		fp := testFootprint(t, yaw)

		sink := NewGeoJSONSink(filepath.Join(t.TempDir(), "line-12"))
		if err := sink.Write(context.Background(), fp); err != nil {
			t.Fatalf("Write: %v", err)
		}

		p, err := os.ReadFile(sink.Path())
		if err != nil {
			t.Fatal(err)
		}
		fc, err := geojson.UnmarshalFeatureCollection(p)
		if err != nil {
			t.Fatalf("unmarshaling: %v", err)
		}
		if len(fc.Features) != 1 {
			t.Fatalf("expected one feature, got %d", len(fc.Features))
		}

		f := fc.Features[0]
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			t.Fatalf("expected polygon, got %T", f.Geometry)
		}
		if len(poly) != 1 || len(poly[0]) != len(fp.Ring)+1 {
			t.Fatalf("unexpected polygon shape %v", poly)
		}
		if poly[0].Orientation() != orb.CCW {
			t.Errorf("yaw %.0f: exterior ring should be counter-clockwise", yaw)
		}

		if f.Properties.MustString("name") != "line-12" {
			t.Errorf("unexpected name %v", f.Properties["name"])
		}
		if f.Properties.MustFloat64("elevation") != 153 {
			t.Errorf("unexpected elevation %v", f.Properties["elevation"])
		}
	}
}

func TestNewSink(t *testing.T) {
	dir := t.TempDir()

	s, err := NewSink(FormatGeoJSON, filepath.Join(dir, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*GeoJSONSink); !ok {
		t.Errorf("expected GeoJSONSink, got %T", s)
	}

	if _, err = NewSink("kml", filepath.Join(dir, "a")); err == nil {
		t.Error("expected error for unsupported format")
	}

	if err = NewShapefileSink(filepath.Join(dir, "b")).Write(context.Background(), &swath.Footprint{}); !errors.Is(err, ErrEmptyFootprint) {
		t.Errorf("expected ErrEmptyFootprint, got %v", err)
	}
	if _, err = MarshalGeoJSON(&swath.Footprint{}); !errors.Is(err, ErrEmptyFootprint) {
		t.Errorf("expected ErrEmptyFootprint, got %v", err)
	}
}

func TestMarshalGeoJSON_Properties(t *testing.T) {
	fp := testFootprint(t, 90)

	p, err := MarshalGeoJSON(fp)
	if err != nil {
		t.Fatal(err)
	}

	var doc struct {
		Features []struct {
			ID         string         `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err = json.Unmarshal(p, &doc); err != nil {
		t.Fatal(err)
	}

	want := map[string]any{
		"name":      "line-12",
		"elevation": 153.0,
		"fov":       swath.DefaultFOV,
		"smooth":    false,
		"samples":   4.0,
		"area":      fp.Area(),
	}
	if diff := cmp.Diff(want, doc.Features[0].Properties, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
	if doc.Features[0].ID != "line-12" {
		t.Errorf("unexpected id %q", doc.Features[0].ID)
	}
}

func TestMetadataLog(t *testing.T) {
	series := telemetry.Series{
		{Position: geodesy.Coordinate{Latitude: 1, Longitude: 2}, AltitudeMSL: 500},
		{Position: geodesy.Coordinate{Latitude: 1.5, Longitude: 2.5}, AltitudeMSL: 510},
		{Position: geodesy.Coordinate{Latitude: 2, Longitude: 3}, AltitudeMSL: 520},
		{Position: geodesy.Coordinate{Latitude: 2.5, Longitude: 3.5}, AltitudeMSL: 530},
	}
	profile := elevation.Profile{100, 110, 120.5, 130}

	record, err := NewMetadataRecord("line-3", series, profile, 17)
	if err != nil {
		t.Fatalf("NewMetadataRecord: %v", err)
	}
	if record.Index != 2 {
		t.Errorf("expected midpoint index 2, got %d", record.Index)
	}

	path := filepath.Join(t.TempDir(), "meta.csv")
	log := NewMetadataLog(path)
	for i := 0; i < 2; i++ {
		if err = log.Append(record); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	p, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	want := "ImgName,CtrLon,CtrLat,GndDEMm,SensorMSLm,SensorAGLm,ImgFOV\n" +
		"line-3,3.0000000,2.0000000,120.50,520.00,399.50,17.00\n" +
		"line-3,3.0000000,2.0000000,120.50,520.00,399.50,17.00\n"
	if diff := cmp.Diff(want, string(p)); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}

	if _, err = NewMetadataRecord("x", nil, nil, 17); !errors.Is(err, telemetry.ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}
	if _, err = NewMetadataRecord("x", series, profile[:2], 17); err == nil {
		t.Error("expected profile mismatch error")
	}
}
