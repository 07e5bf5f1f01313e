package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/swath-footprint/internal/elevation"
	"github.com/roman-kulish/swath-footprint/internal/swath"
	"github.com/roman-kulish/swath-footprint/internal/telemetry"
)

// Store provides an interface for managing flight telemetry, reconstructed
// footprints and cached ground elevations. All operations that write to the
// database should be considered atomic.
type Store interface {
	elevation.Cache

	// CreateSession initializes a new flight session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - deviceType: Type of platform (e.g., "multirotor", "fixed-wing")
	//   - deviceID: Unique identifier of the platform (e.g., serial number)
	//   - config: Optional instrument configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, deviceType, deviceID string, config any) (sessionID int64, err error)

	// Session retrieves a specific flight session by its ID.
	//
	// Returns:
	//   - session: Pointer to session data
	//   - error: ErrSessionNotFound if the ID is unknown, or if retrieval fails
	Session(ctx context.Context, id int64) (session *Session, err error)

	// StoreTelemetry saves one pose sample of a session.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session this sample belongs to
	//   - timestamp: Time the sample was taken; samples are read back in this order
	//   - pose: Position and attitude of the platform
	//
	// Returns:
	//   - telemetryID: Unique identifier for the stored telemetry record
	//   - error: If storage fails or context is cancelled
	StoreTelemetry(ctx context.Context, sessionID int64, timestamp time.Time, pose telemetry.Pose) (telemetryID int64, err error)

	// SessionTelemetry returns a telemetry source reading the samples of a
	// session in time order.
	SessionTelemetry(sessionID int64) telemetry.Source

	// StoreFootprint persists a reconstructed footprint as a new run.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: Optional session the telemetry was read from
	//   - fp: Footprint to store
	//
	// Returns:
	//   - run: The stored run including its generated ID
	//   - error: If storage fails or context is cancelled
	StoreFootprint(ctx context.Context, sessionID *int64, fp *swath.Footprint) (run *Run, err error)

	// Run retrieves a stored footprint run, or ErrRunNotFound.
	Run(ctx context.Context, id uuid.UUID) (run *Run, err error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
