// Package readings loads raw sensor readings from tabular sources and keeps
// them available to the interpolation pipeline.
package readings

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"fieldmap/internal/types"
)

// Column names of the reading table. Header matching is case-insensitive.
const (
	ColLatitude  = "Latitude"
	ColLongitude = "Longitude"
	ColLocation  = "Location"
	ColTime      = "time"
)

// timeLayouts are tried in order for the time column. Values without an
// offset are taken as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a reading timestamp.
func ParseTime(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

type columnIndex struct {
	lat, lon, loc, ts int
	fields            map[types.Field]int
}

func indexHeader(header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		// strip a UTF-8 BOM left by spreadsheet exports
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		pos[strings.ToLower(h)] = i
	}

	idx := columnIndex{fields: make(map[types.Field]int)}
	var missing []string
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{ColLatitude, &idx.lat},
		{ColLongitude, &idx.lon},
		{ColLocation, &idx.loc},
		{ColTime, &idx.ts},
	} {
		i, ok := pos[strings.ToLower(c.name)]
		if !ok {
			missing = append(missing, c.name)
			continue
		}
		*c.dst = i
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	for _, f := range types.AllFields() {
		if i, ok := pos[strings.ToLower(f.DataColumn())]; ok {
			idx.fields[f] = i
		}
	}
	return idx, nil
}

// Decode reads a CSV reading table. Empty and NaN cells are treated as
// missing; rows with missing coordinates are skipped. A malformed cell fails
// the whole decode with the row number in the error details.
func Decode(r io.Reader) ([]types.SensorReading, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, sourceError("reading table is empty", err, nil)
		}
		return nil, sourceError("could not read reading table header", err, nil)
	}
	idx, err := indexHeader(header)
	if err != nil {
		return nil, sourceError(err.Error(), err, nil)
	}

	var out []types.SensorReading
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, sourceError("malformed reading table", err, map[string]any{"row": row})
		}

		reading, ok, err := decodeRow(rec, idx)
		if err != nil {
			return nil, sourceError(err.Error(), err, map[string]any{"row": row})
		}
		if ok {
			out = append(out, reading)
		}
	}
	return out, nil
}

func decodeRow(rec []string, idx columnIndex) (types.SensorReading, bool, error) {
	cell := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	lat, latOK, err := parseNumber(cell(idx.lat))
	if err != nil {
		return types.SensorReading{}, false, fmt.Errorf("column %s: %w", ColLatitude, err)
	}
	lon, lonOK, err := parseNumber(cell(idx.lon))
	if err != nil {
		return types.SensorReading{}, false, fmt.Errorf("column %s: %w", ColLongitude, err)
	}
	if !latOK || !lonOK {
		return types.SensorReading{}, false, nil
	}

	ts, err := ParseTime(cell(idx.ts))
	if err != nil {
		return types.SensorReading{}, false, fmt.Errorf("column %s: %w", ColTime, err)
	}

	values := make(map[types.Field]float64, len(idx.fields))
	for f, i := range idx.fields {
		v, ok, err := parseNumber(cell(i))
		if err != nil {
			return types.SensorReading{}, false, fmt.Errorf("column %s: %w", f.DataColumn(), err)
		}
		if ok {
			values[f] = v
		}
	}

	return types.SensorReading{
		Lat:      lat,
		Lon:      lon,
		Location: cell(idx.loc),
		Time:     ts,
		Values:   values,
	}, true, nil
}

// parseNumber returns ok=false for empty or NaN cells.
func parseNumber(s string) (float64, bool, error) {
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) {
		return 0, false, nil
	}
	return v, true, nil
}

func sourceError(msg string, err error, details map[string]any) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeDataUnavailableSource, msg, err, details)
}
