package readings

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// DefaultRefreshInterval is used when the configured interval is not positive.
const DefaultRefreshInterval = 15 * time.Minute

// Refresher periodically reloads a Cache in the background.
type Refresher struct {
	scheduler *gocron.Scheduler
	cache     *Cache
	interval  time.Duration
	logger    *slog.Logger
}

// NewRefresher creates a Refresher for cache.
func NewRefresher(cache *Cache, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		scheduler: gocron.NewScheduler(time.UTC),
		cache:     cache,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the refresh job. The first run happens one interval from
// now, so callers warm the cache with Cache.Refresh beforehand.
func (r *Refresher) Start() error {
	_, err := r.scheduler.Every(r.interval).WaitForSchedule().SingletonMode().Do(r.run)
	if err != nil {
		return err
	}
	r.scheduler.StartAsync()
	r.logger.Info("reading refresher started",
		slog.String("source", r.cache.Name()),
		slog.Duration("interval", r.interval),
	)
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (r *Refresher) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
}

func (r *Refresher) run() {
	// The cache bounds the load with its own timeout.
	ctx := context.Background()

	start := time.Now()
	if err := r.cache.Refresh(ctx); err != nil {
		r.logger.Error("reading refresh failed",
			slog.String("source", r.cache.Name()),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Info("readings refreshed",
		slog.String("source", r.cache.Name()),
		slog.Int("readings", r.cache.Len()),
		slog.Duration("duration", time.Since(start)),
	)
}
