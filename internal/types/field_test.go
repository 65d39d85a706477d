package types

import (
	"errors"
	"testing"
)

func TestParseField(t *testing.T) {
	tests := []struct {
		label   string
		want    Field
		wantErr bool
	}{
		{"temp", FieldTemperature, false},
		{"aqi", FieldAQI, false},
		{"rainfall", FieldRainfall, false},
		{"  AQI ", FieldAQI, false},
		{"Temp", FieldTemperature, false},
		{"humidity", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseField(tt.label)
			if tt.wantErr {
				var appErr *AppError
				if !errors.As(err, &appErr) {
					t.Fatalf("ParseField(%q) error = %v, want *AppError", tt.label, err)
				}
				if appErr.Code != ErrCodeValidationInvalidParameter {
					t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeValidationInvalidParameter)
				}
				if _, ok := appErr.Details["accepted"]; !ok {
					t.Error("validation error should name the accepted set")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseField(%q) unexpected error: %v", tt.label, err)
			}
			if got != tt.want {
				t.Errorf("ParseField(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestFieldColumn(t *testing.T) {
	col, err := FieldTemperature.Column()
	if err != nil || col != "Temperature" {
		t.Errorf("Temperature.Column() = (%q, %v), want (\"Temperature\", nil)", col, err)
	}

	col, err = FieldAQI.Column()
	if err != nil || col != "AQI" {
		t.Errorf("AQI.Column() = (%q, %v), want (\"AQI\", nil)", col, err)
	}

	_, err = FieldRainfall.Column()
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Rainfall.Column() error = %v, want *AppError", err)
	}
	if appErr.Kind() != KindNotImplemented {
		t.Errorf("Rainfall.Column() kind = %q, want %q", appErr.Kind(), KindNotImplemented)
	}

	if FieldRainfall.DataColumn() != "Rainfall" {
		t.Errorf("Rainfall.DataColumn() = %q, want %q", FieldRainfall.DataColumn(), "Rainfall")
	}
}

func TestFieldString(t *testing.T) {
	if FieldAQI.String() != "aqi" {
		t.Errorf("String() = %q, want %q", FieldAQI.String(), "aqi")
	}
	if Field(99).String() != "Field(99)" {
		t.Errorf("String() = %q, want %q", Field(99).String(), "Field(99)")
	}
}
