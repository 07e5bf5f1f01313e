package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/swath-footprint/internal/elevation"
	"github.com/roman-kulish/swath-footprint/internal/output"
	"github.com/roman-kulish/swath-footprint/internal/swath"
)

const (
	defaultKeyFile  = "key.txt"
	defaultMaxTries = 3
	defaultTimeout  = 10 * time.Second
)

// Duration is a time.Duration read from YAML as a string such as "15s"
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config represents the application configuration. The YAML sections are
// read from the optional configuration file; command line flags override
// them.
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Elevation ElevationConfig `yaml:"elevation"`
	Output    OutputConfig    `yaml:"output"`

	InputFile  string `yaml:"-"` // Telemetry table
	DBPath     string `yaml:"-"` // Session database; InputFile is imported into it when both are set
	SessionID  int64  `yaml:"-"`
	OutputName string `yaml:"-"` // Output path without extension
	Label      string `yaml:"-"`

	FOV               float64  `yaml:"-"`
	Points            int      `yaml:"-"`
	ConstantElevation *float64 `yaml:"-"`
	Smooth            bool     `yaml:"-"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level returns the configured log level, Info when unset
func (s Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

// ElevationConfig represents the elevation service settings
type ElevationConfig struct {
	URL           string   `yaml:"url"`
	KeyFile       string   `yaml:"keyFile"`
	Timeout       Duration `yaml:"timeout"`
	MaxTries      uint     `yaml:"maxTries"`
	RetryInterval Duration `yaml:"retryInterval"`
	CacheDB       string   `yaml:"cacheDB"` // Sqlite elevation cache, disabled when empty
}

// OutputConfig represents the output settings
type OutputConfig struct {
	Format      output.Format `yaml:"format"`
	MetadataLog string        `yaml:"metadataLog"`
	Preview     string        `yaml:"preview"` // PNG preview path, disabled when empty
	Metrics     string        `yaml:"metrics"` // Prometheus textfile path, disabled when empty
}

func NewConfig() *Config {
	return &Config{
		Elevation: ElevationConfig{
			URL:      elevation.DefaultGoogleURL,
			KeyFile:  defaultKeyFile,
			Timeout:  Duration(defaultTimeout),
			MaxTries: defaultMaxTries,
		},
		Output: OutputConfig{
			Format: output.FormatShapefile,
		},
		FOV:    swath.DefaultFOV,
		Points: 1,
	}
}

// LoadConfig reads the YAML configuration file at path over the defaults
func LoadConfig(path string) (*Config, error) {
	c := NewConfig()
	if err := c.load(path); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) load(path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if err = yaml.NewDecoder(f).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding config file: %w", err)
	}
	return nil
}

func NewConfigFromCLI() (*Config, error) {
	c, err := NewConfigFromArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}

// NewConfigFromArgs parses args with fs. Values from the -c configuration
// file are applied first and flags that were set explicitly override them.
func NewConfigFromArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var (
		configPath  string
		format      string
		elev        float64
		metadataLog string
		preview     string
		metrics     string
	)
	fs.StringVar(&configPath, "c", "", "Path to the optional configuration file")
	fs.StringVar(&c.InputFile, "i", "", "Path to the telemetry table")
	fs.StringVar(&c.DBPath, "db", "", "Path to the session database. With -i the table is imported as a new session")
	fs.Int64Var(&c.SessionID, "session", 0, "Session ID to read telemetry from, with -db")
	fs.StringVar(&c.OutputName, "o", "", "Output path without extension (default: input base name)")
	fs.StringVar(&c.Label, "label", "", "Footprint label (default: output base name)")
	fs.Float64Var(&c.FOV, "fov", swath.DefaultFOV, "Cross-track field of view in degrees")
	fs.IntVar(&c.Points, "points", 1, "Number of elevation sample points")
	fs.Float64Var(&elev, "elevation", 0, "Constant ground elevation in meters, skips the elevation service")
	fs.BoolVar(&c.Smooth, "smooth", false, "Ignore roll to suppress jagged edges")
	fs.StringVar(&format, "format", string(output.FormatShapefile), "Output format. [shp, geojson]")
	fs.StringVar(&metadataLog, "log", "", "Path to the metadata log")
	fs.StringVar(&preview, "preview", "", "Path to the PNG preview")
	fs.StringVar(&metrics, "metrics", "", "Path to the Prometheus textfile")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := c.load(configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "elevation":
			c.ConstantElevation = &elev
		case "format":
			c.Output.Format = output.Format(strings.ToLower(format))
		case "log":
			c.Output.MetadataLog = metadataLog
		case "preview":
			c.Output.Preview = preview
		case "metrics":
			c.Output.Metrics = metrics
		}
	})

	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.OutputName == "" {
		c.OutputName = c.defaultOutputName()
	}
	if c.Label == "" {
		c.Label = filepath.Base(c.OutputName)
	}
	return c, nil
}

// Validate checks the configuration for conflicting or missing values
func (c *Config) Validate() error {
	switch {
	case c.InputFile == "" && c.DBPath == "":
		return errors.New("telemetry input is required: -i or -db")
	case c.InputFile != "" && c.SessionID != 0:
		return errors.New("-session reads a stored session and cannot be combined with -i")
	case c.InputFile == "" && c.SessionID <= 0:
		return errors.New("session id is required with -db")
	case c.FOV <= 0 || c.FOV >= 180:
		return fmt.Errorf("invalid field of view: %.2f", c.FOV)
	case c.Points < 1 || c.Points > elevation.MaxLocationsPerRequest:
		return fmt.Errorf("points must be between 1 and %d", elevation.MaxLocationsPerRequest)
	case c.ConstantElevation != nil && c.Points > 1:
		return errors.New("-elevation and -points are mutually exclusive")
	case c.Output.Format != output.FormatShapefile && c.Output.Format != output.FormatGeoJSON:
		return fmt.Errorf("invalid output format: %s", c.Output.Format)
	case c.Elevation.MaxTries == 0:
		return errors.New("elevation maxTries must be positive")
	}
	return nil
}

// OutputPath returns the footprint file path including its extension
func (c *Config) OutputPath() string {
	return c.OutputName + c.Output.Format.Extension()
}

// ElevationMode returns the elevation resolution mode selected by the flags
func (c *Config) ElevationMode() elevation.Mode {
	if c.ConstantElevation != nil {
		return elevation.Constant{Value: *c.ConstantElevation}
	}
	return elevation.Sampled{Points: c.Points}
}

func (c *Config) defaultOutputName() string {
	if c.InputFile != "" {
		return strings.TrimSuffix(c.InputFile, filepath.Ext(c.InputFile))
	}
	return fmt.Sprintf("session-%d", c.SessionID)
}
