// Package fieldmap runs the interpolation pipeline end to end: resolve the
// requested field, load readings, aggregate them over the window, prepare a
// working copy of the template and interpolate onto it.
//
// BuildMap is the pipeline boundary. Every failure, including panics, leaves
// it as a *types.AppError carrying the operation that failed.
package fieldmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fieldmap/internal/aggregate"
	"fieldmap/internal/interpolation"
	"fieldmap/internal/spatial"
	"fieldmap/internal/types"
)

// Pipeline operation names used in errors and logs.
const (
	OpResolveParam = "resolve_param"
	OpParseWindow  = "parse_window"
	OpResolvePower = "resolve_power"
	OpLoadReadings = "load_readings"
	OpAggregate    = "aggregate"
	OpPrepare      = "prepare"
	OpInterpolate  = "interpolate"
	OpBuildMap     = "build_map"
)

// Defaults applied to empty request fields.
const (
	DefaultStartDate = "2024-01-08"
	DefaultEndDate   = "2024-02-28"
	DefaultParam     = "temp"
)

// Recorder receives one outcome per BuildMap call.
type Recorder interface {
	RecordMap(ctx context.Context, field string, stations int, duration time.Duration, err error)
}

// Request is one interpolation request. Empty strings select the defaults.
type Request struct {
	StartDate string
	EndDate   string
	Param     string
	// Power overrides the interpolator's exponent when non-nil.
	Power *float64
}

// Result is a filled working set plus the facts that produced it.
type Result struct {
	Field        types.Field
	Window       aggregate.Window
	Power        float64
	Readings     int
	Observations []types.StationObservation
	Set          *spatial.WorkingSet
	Duration     time.Duration
}

// Service wires a reading source, the template and the interpolator.
type Service struct {
	source   types.ReadingSource
	template *spatial.Template
	idw      *interpolation.Interpolator
	logger   *slog.Logger
	metrics  Recorder
	clock    types.Clock
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithClock overrides the clock used for durations.
func WithClock(c types.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService validates its dependencies and returns a ready Service.
func NewService(
	source types.ReadingSource,
	template *spatial.Template,
	idw *interpolation.Interpolator,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("reading source must not be nil")
	}
	if template == nil {
		return nil, fmt.Errorf("geometry template must not be nil")
	}
	if idw == nil {
		return nil, fmt.Errorf("interpolator must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		source:   source,
		template: template,
		idw:      idw,
		logger:   logger,
		clock:    types.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Source returns the configured reading source.
func (s *Service) Source() types.ReadingSource { return s.source }

// Template returns the shared geometry template.
func (s *Service) Template() *spatial.Template { return s.template }

// BuildMap runs the pipeline for req.
func (s *Service) BuildMap(ctx context.Context, req Request) (res *Result, err error) {
	start := s.clock.Now()
	op := OpResolveParam
	field := types.Field(0)
	stations := 0

	defer func() {
		if r := recover(); r != nil {
			err = types.NewOpError(op, types.ErrCodeComputationUnexpected,
				"unexpected failure while building map", fmt.Errorf("panic: %v", r))
			res = nil
		}
		if err != nil {
			err = s.fail(ctx, op, err)
		}
		if s.metrics != nil {
			label := req.Param
			if field != 0 {
				label = field.Label()
			}
			s.metrics.RecordMap(ctx, label, stations, s.clock.Now().Sub(start), err)
		}
	}()

	req = withDefaults(req)

	field, err = types.ParseField(req.Param)
	if err != nil {
		return nil, err
	}
	if _, err = field.Column(); err != nil {
		return nil, err
	}

	op = OpParseWindow
	window, err := aggregate.ParseWindow(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	op = OpResolvePower
	idw := s.idw
	if req.Power != nil {
		if idw, err = s.idw.WithPower(*req.Power); err != nil {
			return nil, err
		}
	}

	op = OpLoadReadings
	readings, err := s.load(ctx, window)
	if err != nil {
		return nil, asSourceError(s.source.Name(), err)
	}

	op = OpAggregate
	observations, err := aggregate.Aggregate(readings, window, field)
	if err != nil {
		return nil, err
	}
	stations = len(observations)

	op = OpPrepare
	ws, err := s.template.Prepare(field)
	if err != nil {
		return nil, err
	}

	op = OpInterpolate
	if err = idw.Interpolate(ctx, ws, observations); err != nil {
		return nil, err
	}

	res = &Result{
		Field:        field,
		Window:       window,
		Power:        idw.Power(),
		Readings:     len(readings),
		Observations: observations,
		Set:          ws,
		Duration:     s.clock.Now().Sub(start),
	}
	s.logger.InfoContext(ctx, "map built",
		slog.String("param", field.Label()),
		slog.String("window", window.String()),
		slog.Int("readings", len(readings)),
		slog.Int("stations", len(observations)),
		slog.Int("units", ws.Len()),
		slog.Float64("power", idw.Power()),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// load pushes the window down to sources that can filter by time. The
// aggregator still applies the window itself.
func (s *Service) load(ctx context.Context, w aggregate.Window) ([]types.SensorReading, error) {
	if rs, ok := s.source.(types.RangeSource); ok && !w.Empty() {
		return rs.LoadRange(ctx, w.Start, w.End.AddDate(0, 0, 1))
	}
	return s.source.Load(ctx)
}

// fail converts err into an AppError tagged with op and logs it.
func (s *Service) fail(ctx context.Context, op string, err error) *types.AppError {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		code := types.ErrCodeComputationUnexpected
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			code = types.ErrCodeComputationCancelled
		}
		appErr = types.NewAppError(code, err.Error(), err)
	}
	appErr = appErr.WithOp(op)

	level := slog.LevelError
	switch appErr.Kind() {
	case types.KindValidation, types.KindNotImplemented, types.KindDataUnavailable:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("op", appErr.Op),
		slog.String("code", string(appErr.Code)),
		slog.String("kind", string(appErr.Kind())),
		slog.String("error", appErr.Error()),
	}
	if cause := appErr.Unwrap(); cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	if id := types.GetRequestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	s.logger.LogAttrs(ctx, level, "map request failed", attrs...)
	return appErr
}

// asSourceError keeps typed source errors and classifies the rest as the
// source being unavailable.
func asSourceError(name string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewAppError(types.ErrCodeComputationCancelled, "loading readings cancelled", err)
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeDataUnavailableSource,
		"could not find specified data for the period mentioned",
		err,
		map[string]any{"source": name},
	)
}

func withDefaults(req Request) Request {
	if req.StartDate == "" {
		req.StartDate = DefaultStartDate
	}
	if req.EndDate == "" {
		req.EndDate = DefaultEndDate
	}
	if req.Param == "" {
		req.Param = DefaultParam
	}
	return req
}
