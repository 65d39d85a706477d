package readings

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"fieldmap/internal/types"
)

// BreakerSettings configures a Breaker.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker when exceeded.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns the settings used for remote sources.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: 30 * time.Second}
}

// Breaker guards a remote reading source with a circuit breaker so that an
// unreachable backend fails fast instead of stalling every request.
type Breaker struct {
	src types.ReadingSource
	cb  *gobreaker.CircuitBreaker[[]types.SensorReading]
}

// NewBreaker wraps src.
func NewBreaker(src types.ReadingSource, settings BreakerSettings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[[]types.SensorReading](gobreaker.Settings{
		Name:        src.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > settings.ConsecutiveFailures
		},
		// Caller cancellation says nothing about the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{src: src, cb: cb}
}

// Name implements types.ReadingSource.
func (b *Breaker) Name() string { return b.src.Name() }

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Load implements types.ReadingSource.
func (b *Breaker) Load(ctx context.Context) ([]types.SensorReading, error) {
	return b.execute(func() ([]types.SensorReading, error) {
		return b.src.Load(ctx)
	})
}

// LoadRange implements types.RangeSource. Sources without range support
// fall back to a full load.
func (b *Breaker) LoadRange(ctx context.Context, from, to time.Time) ([]types.SensorReading, error) {
	rs, ok := b.src.(types.RangeSource)
	if !ok {
		return b.Load(ctx)
	}
	return b.execute(func() ([]types.SensorReading, error) {
		return rs.LoadRange(ctx, from, to)
	})
}

func (b *Breaker) execute(fn func() ([]types.SensorReading, error)) ([]types.SensorReading, error) {
	readings, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeDataUnavailableSource,
			"reading source is temporarily unavailable",
			err,
			map[string]any{"source": b.src.Name(), "breaker": b.cb.State().String()},
		)
	}
	return readings, err
}
