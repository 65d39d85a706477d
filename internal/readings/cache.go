package readings

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"fieldmap/internal/types"
)

type snapshot struct {
	readings []types.SensorReading
	loadedAt time.Time
}

// Cache keeps the last successful load of a source in memory and shares it
// read-only between requests. Concurrent misses trigger a single load.
type Cache struct {
	src     types.ReadingSource
	ttl     time.Duration
	clock   types.Clock
	timeout time.Duration

	current atomic.Pointer[snapshot]
	group   singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLoadTimeout bounds each load of the underlying source.
func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *Cache) { c.timeout = d }
}

// NewCache wraps src. A zero ttl keeps a snapshot until Refresh replaces it.
func NewCache(src types.ReadingSource, ttl time.Duration, clock types.Clock, opts ...CacheOption) *Cache {
	if clock == nil {
		clock = types.RealClock{}
	}
	c := &Cache{src: src, ttl: ttl, clock: clock}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements types.ReadingSource.
func (c *Cache) Name() string { return "cache(" + c.src.Name() + ")" }

// Load implements types.ReadingSource.
func (c *Cache) Load(ctx context.Context) ([]types.SensorReading, error) {
	if snap := c.current.Load(); snap != nil && !c.expired(snap) {
		return snap.readings, nil
	}
	return c.load(ctx)
}

// Refresh reloads the source. On failure the previous snapshot stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err := c.load(ctx)
	return err
}

// LoadedAt reports when the current snapshot was taken.
func (c *Cache) LoadedAt() (time.Time, bool) {
	snap := c.current.Load()
	if snap == nil {
		return time.Time{}, false
	}
	return snap.loadedAt, true
}

// Len returns the number of cached readings.
func (c *Cache) Len() int {
	if snap := c.current.Load(); snap != nil {
		return len(snap.readings)
	}
	return 0
}

func (c *Cache) expired(snap *snapshot) bool {
	return c.ttl > 0 && c.clock.Now().Sub(snap.loadedAt) > c.ttl
}

func (c *Cache) load(ctx context.Context) ([]types.SensorReading, error) {
	// The shared load outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan("load", func() (any, error) {
		loadCtx := shared
		if c.timeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(shared, c.timeout)
			defer cancel()
		}
		readings, err := c.src.Load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.current.Store(&snapshot{readings: readings, loadedAt: c.clock.Now()})
		return readings, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]types.SensorReading), nil
	}
}
