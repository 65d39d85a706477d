// Package spatial holds the polygon template the service interpolates onto
// and the per-request working copies derived from it.
package spatial

import (
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Unit is one polygon of the template together with its area centroid.
type Unit struct {
	ID         any
	BBox       geojson.BBox
	Geometry   orb.Geometry
	Properties geojson.Properties
	Centroid   orb.Point
}

// Template is the immutable collection of spatial units loaded at startup.
// It is safe for concurrent use; callers never receive a mutable reference
// to its geometry or properties.
type Template struct {
	units []Unit
	extra geojson.Properties
}

// LoadTemplateFile reads a GeoJSON FeatureCollection from disk.
func LoadTemplateFile(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geometry template: %w", err)
	}
	defer f.Close()

	t, err := LoadTemplate(f)
	if err != nil {
		return nil, fmt.Errorf("load geometry template %s: %w", path, err)
	}
	return t, nil
}

// LoadTemplate decodes a GeoJSON FeatureCollection. Every feature must be a
// Polygon or MultiPolygon; centroids are computed once here.
func LoadTemplate(r io.Reader) (*Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geometry: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("feature collection has no features")
	}

	t := &Template{
		units: make([]Unit, 0, len(fc.Features)),
		extra: fc.ExtraMembers,
	}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature %d has no geometry", i)
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("feature %d: unsupported geometry type %s", i, f.Geometry.GeoJSONType())
		}

		centroid, _ := planar.CentroidArea(f.Geometry)
		t.units = append(t.units, Unit{
			ID:         f.ID,
			BBox:       f.BBox,
			Geometry:   f.Geometry,
			Properties: f.Properties,
			Centroid:   centroid,
		})
	}
	return t, nil
}

// Len returns the number of units in the template.
func (t *Template) Len() int { return len(t.units) }

// Bound returns the bounding box covering every unit.
func (t *Template) Bound() orb.Bound {
	b := t.units[0].Geometry.Bound()
	for _, u := range t.units[1:] {
		b = b.Union(u.Geometry.Bound())
	}
	return b
}
