package telemetry

import (
	"context"
)

// Source provides a complete telemetry series for one flight line
type Source interface {
	Series(ctx context.Context) (Series, error)
}
