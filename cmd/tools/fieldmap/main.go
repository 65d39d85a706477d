// Package main implements the fieldmap CLI for running an interpolation
// locally, without the HTTP server.
//
// Usage:
//
//	go run ./cmd/tools/fieldmap --geometry=data/districts.geojson --readings=data/readings.csv
//	go run ./cmd/tools/fieldmap --param=aqi --start=2024-01-08 --end=2024-01-31 --out=aqi.geojson
//	go run ./cmd/tools/fieldmap --sqlite=readings.db --import=data/readings.csv
//	go run ./cmd/tools/fieldmap --fields
//
// GEOMETRY_PATH and READINGS_PATH are read from the environment (or a .env
// file via godotenv) when the matching flags are not given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"fieldmap/internal/db"
	"fieldmap/internal/fieldmap"
	"fieldmap/internal/interpolation"
	"fieldmap/internal/readings"
	"fieldmap/internal/spatial"
	"fieldmap/internal/types"
)

// exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitNotReady = 3
)

type options struct {
	geometry  string
	readings  string
	sqlite    string
	importCSV string
	start     string
	end       string
	param     string
	power     string
	workers   int
	out       string
	fields    bool
	verbose   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "warning: could not load .env: %v\n", err)
	}

	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(stderr, &tint.Options{Level: level}))

	if opts.fields {
		printFields(stdout)
		return exitOK
	}

	if opts.importCSV != "" {
		if err := importReadings(ctx, opts, logger); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	if err := buildMap(ctx, opts, stdout, logger); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Kind() == types.KindNotImplemented {
			return exitNotReady
		}
		return exitFailure
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("fieldmap", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.geometry, "geometry", os.Getenv("GEOMETRY_PATH"), "GeoJSON feature collection of spatial units")
	fs.StringVar(&opts.readings, "readings", os.Getenv("READINGS_PATH"), "CSV (optionally gzip or zstd compressed) reading table")
	fs.StringVar(&opts.sqlite, "sqlite", "", "read readings from this SQLite database instead of --readings")
	fs.StringVar(&opts.importCSV, "import", "", "import this CSV into the --sqlite database and exit")
	fs.StringVar(&opts.start, "start", "", "window start date (YYYY-MM-DD), default "+fieldmap.DefaultStartDate)
	fs.StringVar(&opts.end, "end", "", "window end date (YYYY-MM-DD, inclusive), default "+fieldmap.DefaultEndDate)
	fs.StringVar(&opts.param, "param", "", "field label, default "+fieldmap.DefaultParam)
	fs.StringVar(&opts.power, "power", "", "IDW power override")
	fs.IntVar(&opts.workers, "workers", 0, "interpolation workers (0 uses GOMAXPROCS)")
	fs.StringVar(&opts.out, "out", "", "write the GeoJSON to this file instead of stdout")
	fs.BoolVar(&opts.fields, "fields", false, "list known fields and exit")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: fieldmap [flags]\n\n")
		fmt.Fprintf(stderr, "Interpolate station readings onto spatial units and print GeoJSON.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "error: unexpected arguments %v\n\n", fs.Args())
		fs.Usage()
		return opts, errors.New("unexpected arguments")
	}
	if opts.importCSV != "" && opts.sqlite == "" {
		fmt.Fprintf(stderr, "error: --import requires --sqlite\n\n")
		fs.Usage()
		return opts, errors.New("missing --sqlite")
	}
	if !opts.fields && opts.importCSV == "" && opts.geometry == "" {
		fmt.Fprintf(stderr, "error: --geometry (or GEOMETRY_PATH) is required\n\n")
		fs.Usage()
		return opts, errors.New("missing --geometry")
	}
	if !opts.fields && opts.importCSV == "" && opts.sqlite == "" && opts.readings == "" {
		fmt.Fprintf(stderr, "error: --readings (or READINGS_PATH) is required\n\n")
		fs.Usage()
		return opts, errors.New("missing --readings")
	}
	return opts, nil
}

func printFields(w io.Writer) {
	for _, f := range types.AllFields() {
		status := "implemented"
		if !f.Implemented() {
			status = "not implemented"
		}
		fmt.Fprintf(w, "  %-10s %-12s %s\n", f.Label(), f.DataColumn(), status)
	}
}

func importReadings(ctx context.Context, opts options, logger *slog.Logger) error {
	recs, err := readings.NewFileSource(opts.importCSV).Load(ctx)
	if err != nil {
		return err
	}

	conn, err := db.OpenSQLite(opts.sqlite)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.NewSQLiteReadingSource(conn).Insert(ctx, recs); err != nil {
		return err
	}
	logger.Info("imported readings", "count", len(recs), "database", opts.sqlite)
	return nil
}

func buildMap(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	tmpl, err := spatial.LoadTemplateFile(opts.geometry)
	if err != nil {
		return err
	}

	var source types.ReadingSource
	if opts.sqlite != "" {
		conn, err := db.OpenSQLite(opts.sqlite)
		if err != nil {
			return err
		}
		defer conn.Close()
		source = db.NewSQLiteReadingSource(conn)
	} else {
		source = readings.NewFileSource(opts.readings)
	}

	idw, err := interpolation.New(interpolation.DefaultPower, opts.workers)
	if err != nil {
		return err
	}

	svc, err := fieldmap.NewService(source, tmpl, idw, logger)
	if err != nil {
		return err
	}

	req := fieldmap.Request{StartDate: opts.start, EndDate: opts.end, Param: opts.param}
	if opts.power != "" {
		p, err := strconv.ParseFloat(opts.power, 64)
		if err != nil {
			return types.NewAppError(types.ErrCodeValidationInvalidPower, fmt.Sprintf("invalid power %q", opts.power), err)
		}
		req.Power = &p
	}

	res, err := svc.BuildMap(ctx, req)
	if err != nil {
		return err
	}

	body, err := res.Set.FeatureCollection().MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode feature collection: %w", err)
	}

	w := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.out, err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(append(body, '\n')); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info("map built",
		"field", res.Field.Label(),
		"window", res.Window.String(),
		"stations", len(res.Observations),
		"units", res.Set.Len(),
		"duration", res.Duration,
	)
	return nil
}
