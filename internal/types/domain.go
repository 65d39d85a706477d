package types

import (
	"time"
)

// SensorReading is one raw record from a reading source. Values holds one
// entry per field present in the record; a field missing from the source
// row is absent from the map rather than zero.
type SensorReading struct {
	Lat      float64
	Lon      float64
	Location string
	Time     time.Time
	Values   map[Field]float64
}

// Value returns the reading's value for the field and whether it is present.
func (r SensorReading) Value(f Field) (float64, bool) {
	v, ok := r.Values[f]
	return v, ok
}

// StationKey identifies a station after aggregation.
type StationKey struct {
	Lat      float64 `json:"latitude"`
	Lon      float64 `json:"longitude"`
	Location string  `json:"location"`
}

// Less orders station keys by latitude, then longitude, then location.
func (k StationKey) Less(o StationKey) bool {
	if k.Lat != o.Lat {
		return k.Lat < o.Lat
	}
	if k.Lon != o.Lon {
		return k.Lon < o.Lon
	}
	return k.Location < o.Location
}

// StationObservation is the aggregated value of one field at one station
// over a time window.
type StationObservation struct {
	Station StationKey `json:"station"`
	Field   Field      `json:"-"`
	Value   float64    `json:"value"`
	Count   int        `json:"count"`
}
