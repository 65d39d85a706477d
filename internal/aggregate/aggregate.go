// Package aggregate reduces raw sensor readings to one observation per
// station over an inclusive window of calendar dates.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"fieldmap/internal/types"
)

const opAggregate = "aggregate"

type accumulator struct {
	sum   float64
	count int
}

// Aggregate filters readings to the window, groups them by station key and
// reduces each group to the mean of the field rounded to a whole number
// (ties to even). Readings without a value for the field are skipped.
//
// The result is sorted by station key. An empty result is an error.
func Aggregate(readings []types.SensorReading, w Window, field types.Field) ([]types.StationObservation, error) {
	if w.Empty() {
		return nil, types.NewOpError(
			opAggregate,
			types.ErrCodeDataUnavailableWindow,
			fmt.Sprintf("start date %s is after end date %s", w.Start.Format(DateLayout), w.End.Format(DateLayout)),
			nil,
		).WithDetails(map[string]any{"window": w.String()})
	}

	groups := make(map[types.StationKey]*accumulator)
	for _, r := range readings {
		if !w.Contains(r.Time) {
			continue
		}
		v, ok := r.Value(field)
		if !ok || math.IsNaN(v) || math.IsNaN(r.Lat) || math.IsNaN(r.Lon) {
			continue
		}
		key := types.StationKey{Lat: r.Lat, Lon: r.Lon, Location: r.Location}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{}
			groups[key] = acc
		}
		acc.sum += v
		acc.count++
	}

	if len(groups) == 0 {
		return nil, types.NewOpError(
			opAggregate,
			types.ErrCodeDataUnavailableWindow,
			"could not find specified data for the period mentioned",
			nil,
		).WithDetails(map[string]any{"window": w.String(), "param": field.Label()})
	}

	out := make([]types.StationObservation, 0, len(groups))
	for key, acc := range groups {
		out = append(out, types.StationObservation{
			Station: key,
			Field:   field,
			Value:   math.RoundToEven(acc.sum / float64(acc.count)),
			Count:   acc.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Station.Less(out[j].Station) })
	return out, nil
}
