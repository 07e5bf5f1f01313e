package app

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/swath-footprint/internal/elevation"
	"github.com/roman-kulish/swath-footprint/internal/output"
	"github.com/roman-kulish/swath-footprint/internal/storage"
	"github.com/roman-kulish/swath-footprint/internal/swath"
	"github.com/roman-kulish/swath-footprint/internal/telemetry"
)

// tableDeviceType is the device type of sessions imported from a table
const tableDeviceType = "table"

// Run builds the footprint of one flight line and writes it to the
// configured outputs. No output is written unless the footprint was built.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	metrics := newRunMetrics()
	if config.Output.Metrics != "" {
		defer func() {
			metrics.finish(err)
			if mErr := metrics.writeTextfile(config.Output.Metrics); mErr != nil {
				logger.Warn("failed to write metrics", slog.String("error", mErr.Error()))
			}
		}()
	}

	stores := make(map[string]storage.Store)
	openStore := func(path string) storage.Store {
		if s, ok := stores[path]; ok {
			return s
		}
		s := storage.NewSqliteStore(path)
		stores[path] = s
		return s
	}
	defer func() {
		for path, s := range stores {
			if cErr := s.Close(); cErr != nil {
				logger.Warn("failed to close database", slog.String("path", path), slog.String("error", cErr.Error()))
			}
		}
	}()

	var (
		source    telemetry.Source
		sessionID *int64
		runStore  storage.Store
	)
	switch {
	case config.DBPath != "" && config.InputFile != "":
		runStore = openStore(config.DBPath)
		if sessionID, err = importTable(ctx, runStore, config.InputFile, logger); err != nil {
			return err
		}
		source = runStore.SessionTelemetry(*sessionID)

	case config.DBPath != "":
		if _, err = os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
			return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
		}

		runStore = openStore(config.DBPath)
		session, err := runStore.Session(ctx, config.SessionID)
		if err != nil {
			return fmt.Errorf("loading session: %w", err)
		}

		logger.Info("reading session telemetry",
			slog.Group("session",
				slog.Int64("id", session.ID),
				slog.String("deviceType", session.DeviceType),
				slog.String("deviceID", session.DeviceID),
				slog.String("startTime", session.StartTime.Local().Format(time.DateTime)),
			))

		source = runStore.SessionTelemetry(session.ID)
		sessionID = &session.ID

	default:
		logger.Info("reading telemetry table", slog.String("path", config.InputFile))
		source = telemetry.TableFile{Path: config.InputFile}
	}

	series, err := source.Series(ctx)
	if err != nil {
		return fmt.Errorf("reading telemetry: %w", err)
	}

	var elevSource elevation.Source
	if config.ConstantElevation == nil {
		if elevSource, err = newElevationSource(config, openStore, metrics, logger); err != nil {
			return err
		}
	}
	if runStore == nil && config.Elevation.CacheDB != "" {
		runStore = openStore(config.Elevation.CacheDB)
	}

	resolver := elevation.NewResolver(elevSource, elevation.WithLogger(logger))
	profile, err := resolver.Resolve(ctx, series, config.ElevationMode())
	if err != nil {
		return fmt.Errorf("resolving elevation: %w", err)
	}

	fp, err := swath.BuildFootprint(series, profile, swath.Options{
		Label:  config.Label,
		FOV:    config.FOV,
		Smooth: config.Smooth,
	})
	if err != nil {
		return fmt.Errorf("building footprint: %w", err)
	}
	metrics.observeFootprint(fp)

	if fp.BelowGround > 0 {
		logger.Warn("sensor at or below ground level",
			slog.Int("samples", fp.BelowGround),
			slog.Int("total", len(series)))
	}

	// stored before any output is written
	if runStore != nil {
		run, err := runStore.StoreFootprint(ctx, sessionID, fp)
		if err != nil {
			return fmt.Errorf("storing footprint: %w", err)
		}
		logger.Info("footprint stored", slog.String("run", run.ID.String()))
	}

	if err = writeOutputs(ctx, config, series, profile, fp, logger); err != nil {
		return err
	}

	logger.Info("footprint complete",
		slog.Group("stats",
			slog.String("label", fp.Label),
			slog.String("samples", humanize.Comma(int64(len(series)))),
			slog.String("vertices", humanize.Comma(int64(len(fp.Ring)))),
			slog.String("elevation", fmt.Sprintf("%0.2fm", fp.Elevation)),
			slog.String("area", fmt.Sprintf("%s ha", humanize.FormatFloat("#,###.##", fp.Area()/1e4))),
			slog.String("output", config.OutputPath()),
		))

	return nil
}

// importTable records a telemetry table as a new session. Rows share the
// import time and keep their table order.
func importTable(ctx context.Context, store storage.Store, path string, logger *slog.Logger) (*int64, error) {
	series, err := telemetry.TableFile{Path: path}.Series(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading telemetry: %w", err)
	}

	id, err := store.CreateSession(ctx, tableDeviceType, filepath.Base(path), nil)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	recorded := time.Now().UTC()
	for i, pose := range series {
		if _, err = store.StoreTelemetry(ctx, id, recorded, pose); err != nil {
			return nil, fmt.Errorf("storing telemetry sample %d: %w", i, err)
		}
	}

	logger.Info("telemetry table imported",
		slog.Group("session",
			slog.Int64("id", id),
			slog.String("path", path),
			slog.String("samples", humanize.Comma(int64(len(series)))),
		))

	return &id, nil
}

func newElevationSource(config *Config, openStore func(string) storage.Store, metrics *runMetrics, logger *slog.Logger) (elevation.Source, error) {
	opts := []func(*elevation.GoogleSource){
		elevation.WithBaseURL(config.Elevation.URL),
		elevation.WithTimeout(time.Duration(config.Elevation.Timeout)),
		elevation.WithMaxTries(config.Elevation.MaxTries),
		elevation.WithRequestLogger(logger),
	}
	if config.Elevation.RetryInterval > 0 {
		opts = append(opts, elevation.WithRetryInterval(time.Duration(config.Elevation.RetryInterval)))
	}

	google, err := elevation.NewGoogleSource(config.Elevation.KeyFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating elevation source: %w", err)
	}

	source := metrics.instrument(google)
	if config.Elevation.CacheDB == "" {
		return source, nil
	}

	logger.Debug("using elevation cache", slog.String("path", config.Elevation.CacheDB))
	return elevation.NewCachedSource(source, openStore(config.Elevation.CacheDB), elevation.WithCacheLogger(logger)), nil
}

func writeOutputs(ctx context.Context, config *Config, series telemetry.Series, profile elevation.Profile, fp *swath.Footprint, logger *slog.Logger) error {
	sink, err := output.NewSink(config.Output.Format, config.OutputPath())
	if err != nil {
		return err
	}

	logger.Info("writing footprint",
		slog.Group("output",
			slog.String("destination", config.OutputPath()),
			slog.String("format", string(config.Output.Format)),
		))

	if err = sink.Write(ctx, fp); err != nil {
		return fmt.Errorf("writing footprint: %w", err)
	}

	if config.Output.MetadataLog != "" {
		record, err := output.NewMetadataRecord(fp.Label, series, profile, fp.FOV)
		if err != nil {
			return fmt.Errorf("building metadata record: %w", err)
		}
		if err = output.NewMetadataLog(config.Output.MetadataLog).Append(record); err != nil {
			return err
		}
		logger.Debug("metadata logged", slog.String("path", config.Output.MetadataLog), slog.Int("sample", record.Index))
	}

	if config.Output.Preview != "" {
		if err = writePreview(config.Output.Preview, series, profile, fp); err != nil {
			return fmt.Errorf("writing preview: %w", err)
		}
		logger.Info("preview rendered", slog.String("path", config.Output.Preview))
	}

	return nil
}

func writePreview(path string, series telemetry.Series, profile elevation.Profile, fp *swath.Footprint) (err error) {
	track := make([]TrackPoint, len(series))
	for i, pose := range series {
		track[i] = TrackPoint{Coordinate: pose.Position, AGL: pose.AltitudeMSL - profile[i]}
	}

	img, err := NewPreviewRenderer(PreviewConfig{}).Render(fp, track)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	return png.Encode(out, img)
}
