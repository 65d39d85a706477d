package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"fieldmap/internal/aggregate"
	"fieldmap/internal/types"
)

// tagCodes maps a failing validation tag to the error code returned to clients.
var tagCodes = map[string]types.ErrorCode{
	"isodate":    types.ErrCodeValidationInvalidDate,
	"fieldlabel": types.ErrCodeValidationInvalidParameter,
	"posfloat":   types.ErrCodeValidationInvalidPower,
}

// Validator wraps go-playground/validator with the request rules of the API:
//
//	isodate    - a calendar date accepted as a window bound
//	fieldlabel - a known field label (temp, aqi, rainfall)
//	posfloat   - a finite number greater than zero
//
// Field names in errors come from the `query` struct tag.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with the custom tags registered.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("query"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		_, err := aggregate.ParseDate(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "fieldlabel", func(fl validator.FieldLevel) bool {
		_, err := types.ParseField(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "posfloat", func(fl validator.FieldLevel) bool {
		f, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
		return err == nil && f > 0 && !math.IsInf(f, 0)
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %s validation: %v", tag, err))
	}
}

// ValidateStruct validates s and converts the first failure into a
// *types.AppError carrying the field name and rejected value.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fe := verrs[0]
	code, ok := tagCodes[fe.Tag()]
	if !ok {
		code = types.ErrCodeValidationInvalidParameter
	}

	return types.NewAppErrorWithDetails(
		code,
		fmt.Sprintf("invalid value %q for %s", fmt.Sprint(fe.Value()), fe.Field()),
		err,
		map[string]any{"field": fe.Field(), "value": fmt.Sprint(fe.Value()), "rule": fe.Tag()},
	)
}
