package spatial

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fieldmap/internal/types"
)

// Output property names appended to every feature.
const (
	PropLatitude  = "latitude"
	PropLongitude = "longitude"
)

// Slot is the request-local value of one unit. Set is false until the
// interpolator writes Value.
type Slot struct {
	Value float64
	Set   bool
}

// WorkingSet is a request-scoped copy of the template. Each unit owns its
// own geometry, properties and value slot, so concurrent writers touching
// distinct indices never share state.
type WorkingSet struct {
	Field  types.Field
	Column string

	units []Unit
	slots []Slot
	extra geojson.Properties
}

// Prepare derives a working copy for the field. Fields without a
// computation path are rejected before any copying happens.
func (t *Template) Prepare(field types.Field) (*WorkingSet, error) {
	column, err := field.Column()
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return nil, appErr.WithOp("prepare")
		}
		return nil, err
	}

	units := make([]Unit, len(t.units))
	for i, u := range t.units {
		units[i] = Unit{
			ID:         u.ID,
			BBox:       append(geojson.BBox(nil), u.BBox...),
			Geometry:   orb.Clone(u.Geometry),
			Properties: u.Properties.Clone(),
			Centroid:   u.Centroid,
		}
	}

	return &WorkingSet{
		Field:  field,
		Column: column,
		units:  units,
		slots:  make([]Slot, len(units)),
		extra:  t.extra.Clone(),
	}, nil
}

// Len returns the number of units.
func (ws *WorkingSet) Len() int { return len(ws.units) }

// Centroid returns the centroid of unit i.
func (ws *WorkingSet) Centroid(i int) orb.Point { return ws.units[i].Centroid }

// Set writes the interpolated value of unit i.
func (ws *WorkingSet) Set(i int, v float64) {
	ws.slots[i] = Slot{Value: v, Set: true}
}

// Slot returns the value slot of unit i.
func (ws *WorkingSet) Slot(i int) Slot { return ws.slots[i] }

// Unit returns the copied unit i.
func (ws *WorkingSet) Unit(i int) Unit { return ws.units[i] }

// FeatureCollection renders the working set. Each feature keeps its
// geometry and properties and gains the field column plus the centroid
// coordinates. Unset slots are rendered as null.
func (ws *WorkingSet) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = ws.extra
	for i, u := range ws.units {
		props := u.Properties.Clone()
		if props == nil {
			props = geojson.Properties{}
		}
		if s := ws.slots[i]; s.Set {
			props[ws.Column] = s.Value
		} else {
			props[ws.Column] = nil
		}
		props[PropLatitude] = u.Centroid.Lat()
		props[PropLongitude] = u.Centroid.Lon()

		f := geojson.NewFeature(u.Geometry)
		f.ID = u.ID
		f.BBox = u.BBox
		f.Properties = props
		fc.Append(f)
	}
	return fc
}
