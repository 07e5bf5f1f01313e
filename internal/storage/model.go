package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/swath-footprint/internal/swath"
)

// Session is a recording session of the drone. Its telemetry is one flight
// line.
type Session struct {
	ID         int64     `json:"ID"`                      // Unique identifier for the session
	StartTime  time.Time `json:"startTime"`               // When the recording began
	DeviceType string    `json:"deviceType"`              // Type of the recording device
	DeviceID   string    `json:"deviceID"`                // Unique identifier of the device
	Config     *string   `json:"config,string,omitempty"` // Optional device configuration in JSON format
}

// Run is a persisted footprint
type Run struct {
	ID        uuid.UUID      `json:"ID"`
	CreatedAt time.Time      `json:"createdAt"`
	SessionID *int64         `json:"sessionID,omitempty"` // Session the telemetry came from, nil for table input
	Label     string         `json:"label"`
	Elevation float64        `json:"elevation"` // Representative ground elevation in meters
	FOV       float64        `json:"fov"`       // Field of view in degrees
	Smooth    bool           `json:"smooth"`
	Samples   int            `json:"samples"`
	Area      float64        `json:"area"` // Square meters
	Ring      []swath.Vertex `json:"ring"`
}

type telemetryData struct {
	ID        int64
	SessionID int64
	Timestamp time.Time
	Latitude  sql.NullFloat64
	Longitude sql.NullFloat64
	Altitude  sql.NullFloat64
	Roll      sql.NullFloat64
	Pitch     sql.NullFloat64
	Yaw       sql.NullFloat64
}
