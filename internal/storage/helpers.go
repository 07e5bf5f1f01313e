package storage

import (
	"database/sql"
	"strings"

	"github.com/roman-kulish/swath-footprint/internal/geodesy"
	"github.com/roman-kulish/swath-footprint/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && cErr != sql.ErrTxDone && *err == nil {
		*err = cErr
	}
}

// placeholders returns n comma separated copies of group, e.g. "(?, ?), (?, ?)"
func placeholders(group string, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(group)
	}
	return sb.String()
}

func toTelemetryData(sessionID int64, p telemetry.Pose) *telemetryData {
	valid := func(f float64) sql.NullFloat64 {
		return sql.NullFloat64{Float64: f, Valid: true}
	}

	return &telemetryData{
		SessionID: sessionID,
		Latitude:  valid(p.Position.Latitude),
		Longitude: valid(p.Position.Longitude),
		Altitude:  valid(p.AltitudeMSL),
		Roll:      valid(p.Roll),
		Pitch:     valid(p.Pitch),
		Yaw:       valid(p.Yaw),
	}
}

// toPose converts a stored telemetry row into a pose. Row is the 1-based
// position of the row within the session.
func toPose(row int, data *telemetryData) (telemetry.Pose, error) {
	columns := []struct {
		name  string
		value sql.NullFloat64
	}{
		{"latitude", data.Latitude},
		{"longitude", data.Longitude},
		{"altitude", data.Altitude},
		{"roll", data.Roll},
		{"pitch", data.Pitch},
		{"yaw", data.Yaw},
	}
	for _, c := range columns {
		if !c.value.Valid {
			return telemetry.Pose{}, &telemetry.MalformedError{Row: row, Column: c.name, Reason: "missing value"}
		}
	}

	if lat := data.Latitude.Float64; lat < -90 || lat > 90 {
		return telemetry.Pose{}, &telemetry.MalformedError{Row: row, Column: "latitude", Reason: "out of range"}
	}

	return telemetry.Pose{
		Position:    geodesy.NewCoordinate(data.Latitude.Float64, data.Longitude.Float64),
		AltitudeMSL: data.Altitude.Float64,
		Roll:        data.Roll.Float64,
		Pitch:       data.Pitch.Float64,
		Yaw:         data.Yaw.Float64,
	}, nil
}
