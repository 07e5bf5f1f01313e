package elevation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roman-kulish/swath-footprint/internal/geodesy"
)

// cacheResolution is the grid used to key cached elevations: 1e-5 degrees,
// roughly one meter at the equator
const cacheResolution = 1e5

// CacheKey identifies a cached elevation by its coordinate rounded to the
// cache grid
type CacheKey struct {
	Lat int64
	Lon int64
}

// NewCacheKey rounds a coordinate to the cache grid
func NewCacheKey(c geodesy.Coordinate) CacheKey {
	return CacheKey{
		Lat: int64(math.Round(c.Latitude * cacheResolution)),
		Lon: int64(math.Round(c.Longitude * cacheResolution)),
	}
}

// Cache persists elevations between runs
type Cache interface {
	LookupElevations(ctx context.Context, keys []CacheKey) (map[CacheKey]float64, error)
	StoreElevations(ctx context.Context, elevations map[CacheKey]float64) error
}

// WithCacheLogger sets the logger used to report cache failures
func WithCacheLogger(logger *slog.Logger) func(*CachedSource) {
	return func(s *CachedSource) {
		s.logger = logger
	}
}

// CachedSource answers from the cache where possible and forwards all
// misses to the wrapped source in a single batch. Cache failures are logged
// and treated as misses.
type CachedSource struct {
	source Source
	cache  Cache
	logger *slog.Logger
}

// NewCachedSource wraps source with cache
func NewCachedSource(source Source, cache Cache, options ...func(*CachedSource)) *CachedSource {
	s := CachedSource{
		source: source,
		cache:  cache,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Elevations implements Source
func (s *CachedSource) Elevations(ctx context.Context, coords []geodesy.Coordinate) ([]float64, error) {
	keys := make([]CacheKey, len(coords))
	for i, c := range coords {
		keys[i] = NewCacheKey(c)
	}

	cached, err := s.cache.LookupElevations(ctx, keys)
	if err != nil {
		s.logger.Warn("elevation cache lookup failed", slog.String("error", err.Error()))
		cached = nil
	}

	var missKeys []CacheKey
	var missCoords []geodesy.Coordinate
	seen := make(map[CacheKey]struct{})
	for i, key := range keys {
		if _, ok := cached[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		missKeys = append(missKeys, key)
		missCoords = append(missCoords, coords[i])
	}

	s.logger.Debug("elevation cache",
		slog.Int("hits", len(coords)-len(missKeys)),
		slog.Int("misses", len(missKeys)))

	if len(missCoords) > 0 {
		fetched, err := s.source.Elevations(ctx, missCoords)
		if err != nil {
			return nil, err
		}
		if len(fetched) != len(missCoords) {
			return nil, fmt.Errorf("source returned %d results for %d locations", len(fetched), len(missCoords))
		}

		fresh := make(map[CacheKey]float64, len(fetched))
		for i, e := range fetched {
			fresh[missKeys[i]] = e
		}
		if err = s.cache.StoreElevations(ctx, fresh); err != nil {
			s.logger.Warn("storing elevations in cache failed", slog.String("error", err.Error()))
		}

		if cached == nil {
			cached = make(map[CacheKey]float64, len(fresh))
		}
		for k, v := range fresh {
			cached[k] = v
		}
	}

	elevations := make([]float64, len(keys))
	for i, key := range keys {
		elevations[i] = cached[key]
	}
	return elevations, nil
}
