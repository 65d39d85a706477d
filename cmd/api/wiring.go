package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"fieldmap/internal/config"
	"fieldmap/internal/db"
	"fieldmap/internal/readings"
	"fieldmap/internal/types"
)

// readingStack is the reading source handed to the pipeline together with
// the pieces main needs for health checks and shutdown.
type readingStack struct {
	// source is what the service loads from: the raw source, optionally
	// behind a circuit breaker and a cache.
	source types.ReadingSource
	// ping checks the underlying source without going through the cache.
	ping      func(ctx context.Context) error
	cache     *readings.Cache
	refresher *readings.Refresher
	cleanups  []func(ctx context.Context) error
}

// buildReadingStack selects the source named by READINGS_SOURCE. Remote
// sources are wrapped in a circuit breaker; every source can be cached and
// refreshed in the background.
func buildReadingStack(ctx context.Context, cfg *config.Config, awsCfg func() (aws.Config, error), logger *slog.Logger) (*readingStack, error) {
	stack := &readingStack{}

	switch cfg.Readings.Source {
	case config.SourceFile:
		stack.source = readings.NewFileSource(cfg.Readings.Path)
		stack.ping = func(context.Context) error {
			_, err := os.Stat(cfg.Readings.Path)
			return err
		}

	case config.SourceS3:
		ac, err := awsCfg()
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(ac, func(o *s3.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				o.UsePathStyle = true
			}
		})
		src := readings.NewS3Source(client, cfg.Readings.Bucket, cfg.Readings.Key)
		stack.source = src
		stack.ping = func(ctx context.Context) error {
			_, err := client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(cfg.Readings.Bucket),
				Key:    aws.String(cfg.Readings.Key),
			})
			return err
		}

	case config.SourcePostgres:
		pool, err := db.NewPool(ctx, cfg.Readings.DatabaseURL.Unmask())
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		repo := db.NewReadingRepository(pool)
		stack.source = repo
		stack.ping = repo.Ping
		stack.cleanups = append(stack.cleanups, func(context.Context) error {
			pool.Close()
			return nil
		})

	case config.SourceSQLite:
		conn, err := db.OpenSQLite(cfg.Readings.SQLitePath)
		if err != nil {
			return nil, err
		}
		src := db.NewSQLiteReadingSource(conn)
		stack.source = src
		stack.ping = src.Ping
		stack.cleanups = append(stack.cleanups, func(context.Context) error {
			return conn.Close()
		})

	default:
		return nil, fmt.Errorf("unknown reading source %q", cfg.Readings.Source)
	}

	if cfg.Readings.Remote() {
		stack.source = readings.NewBreaker(stack.source, readings.BreakerSettings{
			ConsecutiveFailures: cfg.Readings.BreakerFailures,
			OpenTimeout:         cfg.Readings.BreakerTimeout,
		})
	}

	if cfg.Readings.Cache {
		stack.cache = readings.NewCache(stack.source, cfg.Readings.RefreshInterval, types.RealClock{},
			readings.WithLoadTimeout(cfg.Readings.LoadTimeout))
		stack.source = stack.cache

		if cfg.Readings.RefreshInterval > 0 {
			stack.refresher = readings.NewRefresher(stack.cache, cfg.Readings.RefreshInterval, logger)
		}
	}

	logger.Info("reading source configured",
		"source", stack.source.Name(),
		"cache", cfg.Readings.Cache,
		"breaker", cfg.Readings.Remote(),
	)
	return stack, nil
}

// warm fills the cache before the first request. A failure is logged and
// left to the first request to retry, so a briefly unreachable source does
// not block startup.
func (s *readingStack) warm(ctx context.Context, logger *slog.Logger) {
	if s.cache == nil {
		return
	}
	start := time.Now()
	if err := s.cache.Refresh(ctx); err != nil {
		logger.Warn("initial reading load failed",
			"source", s.cache.Name(),
			"error", err,
		)
		return
	}
	logger.Info("reading cache warmed",
		"source", s.cache.Name(),
		"readings", s.cache.Len(),
		"duration", time.Since(start),
	)
}

// report describes the cache for the health endpoint.
func (s *readingStack) report() map[string]any {
	info := map[string]any{"source": s.source.Name()}
	if s.cache == nil {
		return info
	}
	loadedAt, ok := s.cache.LoadedAt()
	if !ok {
		info["cache"] = "empty"
		return info
	}
	info["cache"] = "loaded"
	info["cached_readings"] = s.cache.Len()
	info["loaded_at"] = loadedAt.Format(time.RFC3339)
	info["age_seconds"] = int64(time.Since(loadedAt).Seconds())
	return info
}

// lazyAWSConfig loads the SDK configuration on first use so that processes
// reading local files never resolve AWS credentials.
func lazyAWSConfig(ctx context.Context, cfg *config.Config) func() (aws.Config, error) {
	var (
		loaded aws.Config
		err    error
		done   bool
	)
	return func() (aws.Config, error) {
		if done {
			return loaded, err
		}
		done = true

		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWS.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
		}
		loaded, err = awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			err = fmt.Errorf("loading AWS config: %w", err)
		}
		return loaded, err
	}
}

// newCloudWatchClient builds the CloudWatch client used by the metrics collector.
func newCloudWatchClient(cfg *config.Config, awsCfg func() (aws.Config, error)) (*cloudwatch.Client, error) {
	ac, err := awsCfg()
	if err != nil {
		return nil, err
	}
	return cloudwatch.NewFromConfig(ac, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	}), nil
}
