package app

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/swath-footprint/internal/elevation"
	"github.com/roman-kulish/swath-footprint/internal/output"
	"github.com/roman-kulish/swath-footprint/internal/swath"
)

func parseArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	fs := flag.NewFlagSet("swath", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return NewConfigFromArgs(fs, args)
}

func TestNewConfigFromArgs_Defaults(t *testing.T) {
	c, err := parseArgs(t, "-i", "flights/line-4.txt")
	if err != nil {
		t.Fatalf("NewConfigFromArgs: %v", err)
	}

	if c.FOV != swath.DefaultFOV || c.Points != 1 || c.Smooth {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.ConstantElevation != nil {
		t.Error("constant elevation should be unset")
	}
	if c.OutputName != "flights/line-4" || c.Label != "line-4" {
		t.Errorf("unexpected output name %q, label %q", c.OutputName, c.Label)
	}
	if c.OutputPath() != "flights/line-4.shp" {
		t.Errorf("unexpected output path %q", c.OutputPath())
	}
	if c.Elevation.KeyFile != defaultKeyFile || time.Duration(c.Elevation.Timeout) != defaultTimeout {
		t.Errorf("unexpected elevation config %+v", c.Elevation)
	}
	if _, ok := c.ElevationMode().(elevation.Sampled); !ok {
		t.Errorf("expected sampled mode, got %T", c.ElevationMode())
	}
}

func TestNewConfigFromArgs_Flags(t *testing.T) {
	c, err := parseArgs(t,
		"-i", "line.txt",
		"-o", "out/fp",
		"-fov", "20",
		"-elevation", "0",
		"-smooth",
		"-format", "GeoJSON",
		"-log", "meta.csv",
		"-preview", "fp.png",
		"-metrics", "swath.prom",
	)
	if err != nil {
		t.Fatalf("NewConfigFromArgs: %v", err)
	}

	mode, ok := c.ElevationMode().(elevation.Constant)
	if !ok || mode.Value != 0 {
		t.Errorf("expected constant elevation 0, got %#v", c.ElevationMode())
	}
	if c.Output.Format != output.FormatGeoJSON || c.OutputPath() != "out/fp.geojson" {
		t.Errorf("unexpected output %q %q", c.Output.Format, c.OutputPath())
	}
	if c.Output.MetadataLog != "meta.csv" || c.Output.Preview != "fp.png" || c.Output.Metrics != "swath.prom" {
		t.Errorf("unexpected output config %+v", c.Output)
	}
	if c.FOV != 20 || !c.Smooth || c.Label != "fp" {
		t.Errorf("unexpected config %+v", c)
	}
}

func TestNewConfigFromArgs_Import(t *testing.T) {
	c, err := parseArgs(t, "-i", "flights/line-4.txt", "-db", "flights/flight.db")
	if err != nil {
		t.Fatalf("NewConfigFromArgs: %v", err)
	}
	if c.InputFile != "flights/line-4.txt" || c.DBPath != "flights/flight.db" || c.SessionID != 0 {
		t.Errorf("unexpected inputs %+v", c)
	}
	if c.OutputName != "flights/line-4" {
		t.Errorf("expected output named after the table, got %q", c.OutputName)
	}
}

func TestNewConfigFromArgs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", nil, "telemetry input is required"},
		{"table with session", []string{"-i", "a.txt", "-db", "a.db", "-session", "1"}, "cannot be combined with -i"},
		{"session without database", []string{"-i", "a.txt", "-session", "1"}, "cannot be combined with -i"},
		{"negative session", []string{"-db", "a.db", "-session", "-2"}, "session id is required"},
		{"missing session", []string{"-db", "a.db"}, "session id is required"},
		{"zero fov", []string{"-i", "a.txt", "-fov", "0"}, "invalid field of view"},
		{"too many points", []string{"-i", "a.txt", "-points", "513"}, "points must be between"},
		{"no points", []string{"-i", "a.txt", "-points", "0"}, "points must be between"},
		{"elevation with points", []string{"-i", "a.txt", "-points", "5", "-elevation", "120"}, "-elevation and -points"},
		{"bad format", []string{"-i", "a.txt", "-format", "kml"}, "invalid output format"},
		{"missing config file", []string{"-i", "a.txt", "-c", "does-not-exist.yaml"}, "opening config file"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseArgs(t, tc.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %q", tc.want, err)
			}
		})
	}
}

func TestNewConfigFromArgs_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swath.yaml")
	err := os.WriteFile(path, []byte(`
settings:
  logLevel: debug
elevation:
  url: http://localhost:8080/elevation
  keyFile: /etc/swath/key.txt
  timeout: 30s
  maxTries: 5
  retryInterval: 250ms
  cacheDB: /var/cache/swath.db
output:
  format: geojson
  metadataLog: /var/log/swath/meta.csv
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	c, err := parseArgs(t, "-c", path, "-i", "line.txt", "-format", "shp")
	if err != nil {
		t.Fatalf("NewConfigFromArgs: %v", err)
	}

	if level, err := c.Settings.Level(); err != nil || level != slog.LevelDebug {
		t.Errorf("unexpected log level %v (%v)", level, err)
	}
	want := ElevationConfig{
		URL:           "http://localhost:8080/elevation",
		KeyFile:       "/etc/swath/key.txt",
		Timeout:       Duration(30 * time.Second),
		MaxTries:      5,
		RetryInterval: Duration(250 * time.Millisecond),
		CacheDB:       "/var/cache/swath.db",
	}
	if c.Elevation != want {
		t.Errorf("elevation config = %+v, want %+v", c.Elevation, want)
	}

	// flags override the file
	if c.Output.Format != output.FormatShapefile {
		t.Errorf("expected -format to override the file, got %q", c.Output.Format)
	}
	if c.Output.MetadataLog != "/var/log/swath/meta.csv" {
		t.Errorf("unexpected metadata log %q", c.Output.MetadataLog)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(empty)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Elevation.URL != elevation.DefaultGoogleURL {
		t.Errorf("expected defaults to survive an empty file, got %q", c.Elevation.URL)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err = os.WriteFile(bad, []byte("elevation:\n  timeout: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err = LoadConfig(bad); err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("expected invalid duration error, got %v", err)
	}
}

func TestSettings_Level(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"chatty", slog.LevelInfo, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Settings{LogLevel: tc.in}.Level()
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
