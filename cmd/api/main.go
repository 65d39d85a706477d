// Package main is the entry point for the FieldMap API server.
//
// It loads the configuration, the geometry template and the reading source,
// builds the interpolation service and serves it through the core HTTP
// chassis.
//
// Outside Lambda it runs as a standard HTTP server on the configured port.
// Inside the Lambda runtime it serves API Gateway HTTP API (payload v2)
// events through chiadapter.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"

	"fieldmap/internal/api/handlers"
	"fieldmap/internal/config"
	"fieldmap/internal/core"
	"fieldmap/internal/fieldmap"
	"fieldmap/internal/interpolation"
	"fieldmap/internal/logging"
	"fieldmap/internal/metrics"
	"fieldmap/internal/spatial"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(cfg)
	logger.Info("fieldmap API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"readings_source", cfg.Readings.Source,
	)

	srv, err := buildServer(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		return runLambda(srv, logger)
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires every dependency of the API and mounts its routes.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	template, err := spatial.LoadTemplateFile(cfg.Geometry.Path)
	if err != nil {
		return nil, fmt.Errorf("loading geometry template: %w", err)
	}
	logger.Info("geometry template loaded", "path", cfg.Geometry.Path, "units", template.Len())

	awsCfg := lazyAWSConfig(ctx, cfg)

	stack, err := buildReadingStack(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building reading source: %w", err)
	}

	idw, err := interpolation.New(cfg.Interpolation.Power, cfg.Interpolation.Workers)
	if err != nil {
		return nil, fmt.Errorf("configuring interpolator: %w", err)
	}

	stack.warm(ctx, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	var opts []fieldmap.Option
	if cfg.Observability.MetricsEnabled {
		client, err := newCloudWatchClient(cfg, awsCfg)
		if err != nil {
			return nil, err
		}
		collector := metrics.NewCloudWatchCollector(client, cfg.Observability.MetricNamespace, logger)
		collector.Start(cfg.Observability.FlushInterval)
		srv.Metrics = collector
		srv.OnShutdown(collector.Close)
		opts = append(opts, fieldmap.WithRecorder(collector))
	}

	svc, err := fieldmap.NewService(stack.source, template, idw, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating map service: %w", err)
	}

	if stack.refresher != nil {
		if err := stack.refresher.Start(); err != nil {
			return nil, fmt.Errorf("starting reading refresher: %w", err)
		}
		srv.OnShutdown(func(context.Context) error {
			stack.refresher.Stop()
			return nil
		})
	}
	for _, fn := range stack.cleanups {
		srv.OnShutdown(fn)
	}

	srv.HealthProbes = []core.HealthProbe{
		core.NewProbe("readings", stack.ping).WithInfo(stack.report),
		core.NewProbe("template", func(context.Context) error {
			if template.Len() == 0 {
				return errors.New("geometry template has no units")
			}
			return nil
		}),
	}

	mapHandler := handlers.NewMapHandler(svc, srv.Validator, logger)
	fieldsHandler := handlers.NewFieldsHandler()

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		mapHandler.RegisterRoutes,
		fieldsHandler.RegisterRoutes,
	)
	// GET /map predates the versioned API and stays for existing clients.
	srv.RootRouteRegistrars = append(srv.RootRouteRegistrars, func(r chi.Router) {
		r.Get("/map", mapHandler.HandleGetMap)
	})

	srv.MountRoutes()
	return srv, nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	return hasRuntimeAPI
}

// runLambda serves API Gateway HTTP API events until the runtime stops the process.
func runLambda(srv *core.Server, logger *slog.Logger) error {
	logger.Info("starting in Lambda mode")
	lambda.Start(lambdaHandler(srv))
	return nil
}

// lambdaHandler bridges API Gateway HTTP API events to the server's router.
func lambdaHandler(srv *core.Server) func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return chiadapter.NewV2(srv.Router()).ProxyWithContextV2
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
