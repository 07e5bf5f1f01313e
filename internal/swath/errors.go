package swath

import (
	"errors"
	"fmt"

	"github.com/roman-kulish/swath-footprint/internal/telemetry"
)

const (
	AnglePitch AngleKind = "pitch"
	AngleLeft  AngleKind = "left half-angle"
	AngleRight AngleKind = "right half-angle"
)

var (
	// ErrEmptyTelemetry is returned when there are no samples to build a
	// footprint from
	ErrEmptyTelemetry = telemetry.ErrEmptySeries

	// ErrProfileMismatch is returned when the elevation profile does not
	// match the telemetry series
	ErrProfileMismatch = errors.New("elevation profile does not match telemetry")
)

// AngleKind names the angle that left the projection domain
type AngleKind string

// DomainError reports an off-nadir angle whose tangent diverges
type DomainError struct {
	Index int // Sample index, -1 when not known
	Kind  AngleKind
	Angle float64 // Offending angle in degrees
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("%s %.3f° outside the projectable range ±%.0f°", e.Kind, e.Angle, MaxOffNadir)
	if e.Index >= 0 {
		return fmt.Sprintf("sample %d: %s", e.Index, msg)
	}
	return msg
}
