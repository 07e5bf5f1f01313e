package elevation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roman-kulish/swath-footprint/internal/geodesy"
)

const (
	// DefaultGoogleURL is the Google Maps Elevation API endpoint
	DefaultGoogleURL = "https://maps.googleapis.com/maps/api/elevation/json"

	// MaxLocationsPerRequest is the largest batch the Elevation API accepts
	MaxLocationsPerRequest = 512

	defaultRequestTimeout = 30 * time.Second
	defaultMaxTries       = 3
	defaultRetryInterval  = 500 * time.Millisecond
)

// Elevation API response statuses, see
// https://developers.google.com/maps/documentation/elevation/requests-elevation
const (
	statusOK             = "OK"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusUnknownError   = "UNKNOWN_ERROR"
)

// WithBaseURL overrides the Elevation API endpoint
func WithBaseURL(u string) func(*GoogleSource) {
	return func(g *GoogleSource) {
		g.baseURL = u
	}
}

// WithTimeout sets the timeout of a single HTTP request
func WithTimeout(d time.Duration) func(*GoogleSource) {
	return func(g *GoogleSource) {
		g.httpClient.Timeout = d
	}
}

// WithMaxTries sets how many times a transiently failed request is attempted
func WithMaxTries(n uint) func(*GoogleSource) {
	return func(g *GoogleSource) {
		g.maxTries = max(n, 1)
	}
}

// WithRetryInterval sets the initial back-off between attempts
func WithRetryInterval(d time.Duration) func(*GoogleSource) {
	return func(g *GoogleSource) {
		g.retryInterval = d
	}
}

// WithRequestLogger sets the logger used to report retried requests
func WithRequestLogger(logger *slog.Logger) func(*GoogleSource) {
	return func(g *GoogleSource) {
		g.logger = logger
	}
}

// GoogleSource queries the Google Maps Elevation API. All coordinates of a
// call are sent in one request.
type GoogleSource struct {
	baseURL string
	apiKey  string

	httpClient    *http.Client
	maxTries      uint
	retryInterval time.Duration

	logger *slog.Logger
}

// NewGoogleSource creates a GoogleSource using the API key stored in keyFile
func NewGoogleSource(keyFile string, options ...func(*GoogleSource)) (*GoogleSource, error) {
	p, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("reading API key: %w", err)
	}

	key := strings.TrimSpace(string(p))
	if key == "" {
		return nil, fmt.Errorf("API key file '%s' is empty", keyFile)
	}

	return NewGoogleSourceWithKey(key, options...), nil
}

// NewGoogleSourceWithKey creates a GoogleSource with an explicit API key
func NewGoogleSourceWithKey(apiKey string, options ...func(*GoogleSource)) *GoogleSource {
	g := GoogleSource{
		baseURL:       DefaultGoogleURL,
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: defaultRequestTimeout},
		maxTries:      defaultMaxTries,
		retryInterval: defaultRetryInterval,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&g)
	}

	return &g
}

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Results      []struct {
		Elevation float64 `json:"elevation"`
		Location  struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		Resolution float64 `json:"resolution"`
	} `json:"results"`
}

// Elevations implements Source
func (g *GoogleSource) Elevations(ctx context.Context, coords []geodesy.Coordinate) ([]float64, error) {
	if len(coords) == 0 {
		return nil, nil
	}
	if len(coords) > MaxLocationsPerRequest {
		return nil, fmt.Errorf("%d locations exceed the limit of %d per request", len(coords), MaxLocationsPerRequest)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retryInterval

	notify := func(err error, next time.Duration) {
		g.logger.Warn("elevation request failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("backoff", next))
	}

	return backoff.Retry(ctx, func() ([]float64, error) {
		return g.fetch(ctx, coords)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(g.maxTries), backoff.WithNotify(notify))
}

func (g *GoogleSource) fetch(ctx context.Context, coords []geodesy.Coordinate) ([]float64, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parsing elevation API URL: %w", err))
	}

	q := u.Query()
	q.Set("locations", encodeLocations(coords))
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("requesting elevations: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	var body googleResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}

	switch body.Status {
	case statusOK:
	case statusOverQueryLimit, statusUnknownError:
		return nil, newAPIError(body)
	default:
		return nil, backoff.Permanent(newAPIError(body))
	}

	if len(body.Results) != len(coords) {
		return nil, backoff.Permanent(fmt.Errorf("got %d results for %d locations", len(body.Results), len(coords)))
	}

	elevations := make([]float64, len(body.Results))
	for i, r := range body.Results {
		elevations[i] = r.Elevation
	}
	return elevations, nil
}

func newAPIError(body googleResponse) error {
	if body.ErrorMessage != "" {
		return fmt.Errorf("elevation API status %s: %s", body.Status, body.ErrorMessage)
	}
	return errors.New("elevation API status " + body.Status)
}

func encodeLocations(coords []geodesy.Coordinate) string {
	var sb strings.Builder
	for i, c := range coords {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(strconv.FormatFloat(c.Latitude, 'f', 7, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(c.Longitude, 'f', 7, 64))
	}
	return sb.String()
}
