// Package interpolation implements inverse-distance-weighted estimation of
// station observations onto the centroids of a working set.
package interpolation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/sync/errgroup"

	"fieldmap/internal/spatial"
	"fieldmap/internal/types"
)

const (
	// DefaultPower is the weighting exponent used when none is configured.
	DefaultPower = 2.0

	// Epsilon is the distance below which a centroid is treated as
	// coinciding with a station.
	Epsilon = 1e-12

	opInterpolate = "interpolate"
)

// Station is a point with a known value. Coordinates are planar (lon, lat).
type Station struct {
	Point orb.Point
	Value float64
}

// StationsFromObservations converts aggregated observations to planar stations.
func StationsFromObservations(obs []types.StationObservation) []Station {
	out := make([]Station, len(obs))
	for i, o := range obs {
		out[i] = Station{Point: orb.Point{o.Station.Lon, o.Station.Lat}, Value: o.Value}
	}
	return out
}

// Interpolator fills working sets with IDW estimates. It holds no
// per-request state and is safe for concurrent use.
type Interpolator struct {
	power   float64
	workers int
}

// New creates an Interpolator. workers <= 0 selects GOMAXPROCS.
func New(power float64, workers int) (*Interpolator, error) {
	if err := ValidatePower(power); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Interpolator{power: power, workers: workers}, nil
}

// ValidatePower rejects exponents that are not positive finite numbers.
func ValidatePower(power float64) error {
	if power <= 0 || math.IsNaN(power) || math.IsInf(power, 0) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidPower,
			fmt.Sprintf("power must be a positive number, got %v", power),
			nil,
			map[string]any{"power": power},
		)
	}
	return nil
}

// Power returns the configured exponent.
func (ip *Interpolator) Power() float64 { return ip.power }

// WithPower returns a copy of the interpolator using a different exponent.
func (ip *Interpolator) WithPower(power float64) (*Interpolator, error) {
	if err := ValidatePower(power); err != nil {
		return nil, err
	}
	cp := *ip
	cp.power = power
	return &cp, nil
}

// Interpolate estimates a value for every unit of ws from obs. Units are
// evaluated in parallel and each goroutine writes only its own slot.
// Cancellation is checked before each unit.
func (ip *Interpolator) Interpolate(ctx context.Context, ws *spatial.WorkingSet, obs []types.StationObservation) error {
	if len(obs) == 0 {
		return types.NewOpError(opInterpolate, types.ErrCodeComputationNoStations,
			"no station observations to interpolate from", nil)
	}
	stations := StationsFromObservations(obs)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ip.workers)

	for i := 0; i < ws.Len(); i++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = types.NewOpError(opInterpolate, types.ErrCodeComputationUnexpected,
						fmt.Sprintf("panic while interpolating unit %d", i), fmt.Errorf("%v", r))
				}
			}()

			if cerr := gCtx.Err(); cerr != nil {
				return cerr
			}
			v, err := Estimate(ws.Centroid(i), stations, ip.power)
			if err != nil {
				return err
			}
			ws.Set(i, v)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return types.NewOpError(opInterpolate, types.ErrCodeComputationCancelled,
				"interpolation cancelled", ctx.Err())
		}
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return appErr.WithOp(opInterpolate)
		}
		return types.NewOpError(opInterpolate, types.ErrCodeComputationUnexpected, err.Error(), err)
	}
	return nil
}

// Estimate returns the IDW estimate at target, rounded to one decimal.
// When target coincides with one or more stations the result is the mean of
// those stations' values and the remaining stations are ignored.
func Estimate(target orb.Point, stations []Station, power float64) (float64, error) {
	if len(stations) == 0 {
		return 0, types.NewAppError(types.ErrCodeComputationNoStations, "no stations", nil)
	}

	weights := Weights(target, points(stations), power)
	var v float64
	for j, w := range weights {
		if w != 0 {
			v += w * stations[j].Value
		}
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, types.NewAppErrorWithDetails(
			types.ErrCodeComputationNumeric,
			"interpolated value is not finite",
			nil,
			map[string]any{"longitude": target.Lon(), "latitude": target.Lat(), "power": power},
		)
	}
	return roundTenths(v), nil
}

// Weights returns the normalized IDW weights of stations relative to target.
// Coincident stations share the full weight equally.
func Weights(target orb.Point, stations []orb.Point, power float64) []float64 {
	weights := make([]float64, len(stations))
	if len(stations) == 0 {
		return weights
	}

	dists := make([]float64, len(stations))
	coincident := 0
	for j, s := range stations {
		dists[j] = planar.Distance(target, s)
		if dists[j] < Epsilon {
			coincident++
		}
	}

	if coincident > 0 {
		share := 1 / float64(coincident)
		for j, d := range dists {
			if d < Epsilon {
				weights[j] = share
			}
		}
		return weights
	}

	// Scaling by the nearest distance keeps every term in (0, 1] so large
	// powers cannot overflow.
	nearest := dists[0]
	for _, d := range dists[1:] {
		nearest = math.Min(nearest, d)
	}
	var sum float64
	for j, d := range dists {
		weights[j] = math.Pow(nearest/d, power)
		sum += weights[j]
	}
	for j := range weights {
		weights[j] /= sum
	}
	return weights
}

func points(stations []Station) []orb.Point {
	out := make([]orb.Point, len(stations))
	for i, s := range stations {
		out[i] = s.Point
	}
	return out
}

// roundTenths rounds to one decimal place, ties to even.
func roundTenths(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}
