package types

import (
	"context"
	"time"
)

// ReadingSource supplies the raw sensor readings the pipeline aggregates.
// Implementations live in the readings and db packages.
type ReadingSource interface {
	// Name identifies the source in logs and health output.
	Name() string

	// Load returns every reading the source holds. The returned slice is
	// treated as read-only by callers and may be shared between requests.
	Load(ctx context.Context) ([]SensorReading, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// RangeSource is implemented by sources that can filter readings by
// observation time themselves, typically by pushing the filter into a query.
type RangeSource interface {
	ReadingSource

	// LoadRange returns readings observed in [from, to).
	LoadRange(ctx context.Context, from, to time.Time) ([]SensorReading, error)
}
