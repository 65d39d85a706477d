package types

import (
	"fmt"
	"strings"
)

// Field is the closed set of environmental fields the service knows about.
// New fields are added by extending this enumeration and fieldSpecs.
type Field int

const (
	FieldTemperature Field = iota + 1
	FieldAQI
	FieldRainfall
)

type fieldSpec struct {
	label  string
	column string
	// implemented is false for fields that are recognised but have no
	// computation path yet.
	implemented bool
}

var fieldSpecs = map[Field]fieldSpec{
	FieldTemperature: {label: "temp", column: "Temperature", implemented: true},
	FieldAQI:         {label: "aqi", column: "AQI", implemented: true},
	FieldRainfall:    {label: "rainfall", column: "Rainfall", implemented: false},
}

// AllFields returns every known field in declaration order.
func AllFields() []Field {
	return []Field{FieldTemperature, FieldAQI, FieldRainfall}
}

// FieldLabels returns the accepted request labels in declaration order.
func FieldLabels() []string {
	fields := AllFields()
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = f.Label()
	}
	return labels
}

// ParseField resolves a request label ("temp", "aqi", "rainfall") to a Field.
// Labels are matched case-insensitively after trimming whitespace.
func ParseField(label string) (Field, error) {
	norm := strings.ToLower(strings.TrimSpace(label))
	for _, f := range AllFields() {
		if fieldSpecs[f].label == norm {
			return f, nil
		}
	}
	return 0, NewAppErrorWithDetails(
		ErrCodeValidationInvalidParameter,
		fmt.Sprintf("invalid parameter %q, it should be one of %s", label, strings.Join(FieldLabels(), ", ")),
		nil,
		map[string]any{"param": label, "accepted": FieldLabels()},
	)
}

// Label returns the request label of the field.
func (f Field) Label() string {
	return fieldSpecs[f].label
}

// String implements fmt.Stringer.
func (f Field) String() string {
	if s, ok := fieldSpecs[f]; ok {
		return s.label
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Implemented reports whether the field has a computation path.
func (f Field) Implemented() bool {
	return fieldSpecs[f].implemented
}

// DataColumn returns the reading-source column for the field regardless of
// whether it can be computed. Sources use it to map tabular columns to fields.
func (f Field) DataColumn() string {
	return fieldSpecs[f].column
}

// Column returns the column name used both to read the field from a reading
// source and to label the output property. Fields without a computation path
// return a not-implemented error instead of a placeholder.
func (f Field) Column() (string, error) {
	spec, ok := fieldSpecs[f]
	if !ok {
		return "", NewAppError(ErrCodeValidationInvalidParameter, fmt.Sprintf("unknown field %d", int(f)), nil)
	}
	if !spec.implemented {
		return "", NewAppErrorWithDetails(
			ErrCodeNotImplementedParameter,
			fmt.Sprintf("parameter %q is not implemented yet", spec.label),
			nil,
			map[string]any{"param": spec.label},
		)
	}
	return spec.column, nil
}
