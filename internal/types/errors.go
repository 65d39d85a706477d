package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// The prefix of each code determines its Kind and HTTP status.
const (
	// Validation (400)
	ErrCodeValidationInvalidDate      ErrorCode = "validation_invalid_date"
	ErrCodeValidationInvalidParameter ErrorCode = "validation_invalid_parameter"
	ErrCodeValidationInvalidPower     ErrorCode = "validation_invalid_power"

	// Data unavailable (404)
	ErrCodeDataUnavailableSource ErrorCode = "data_unavailable_source"
	ErrCodeDataUnavailableWindow ErrorCode = "data_unavailable_window"

	// Computation (500)
	ErrCodeComputationNoStations ErrorCode = "computation_no_stations"
	ErrCodeComputationNumeric    ErrorCode = "computation_numeric_failure"
	ErrCodeComputationUnexpected ErrorCode = "computation_unexpected"
	ErrCodeComputationCancelled  ErrorCode = "computation_cancelled"

	// Not implemented (501)
	ErrCodeNotImplementedParameter ErrorCode = "not_implemented_parameter"

	// Ambient
	ErrCodeRateLimit          ErrorCode = "rate_limit_exceeded"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// ErrorKind groups error codes into the taxonomy exposed to callers.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindDataUnavailable ErrorKind = "data_unavailable"
	KindComputation     ErrorKind = "computation"
	KindNotImplemented  ErrorKind = "not_implemented"
	KindRateLimited     ErrorKind = "rate_limited"
	KindInternal        ErrorKind = "internal"
)

// Kind returns the taxonomy bucket for the code, derived from its prefix.
func (c ErrorCode) Kind() ErrorKind {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return KindValidation
	case strings.HasPrefix(s, "data_unavailable_"):
		return KindDataUnavailable
	case strings.HasPrefix(s, "computation_"):
		return KindComputation
	case strings.HasPrefix(s, "not_implemented_"):
		return KindNotImplemented
	case c == ErrCodeRateLimit:
		return KindRateLimited
	default:
		return KindInternal
	}
}

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	switch c.Kind() {
	case KindValidation:
		return http.StatusBadRequest // 400
	case KindDataUnavailable:
		return http.StatusNotFound // 404
	case KindNotImplemented:
		return http.StatusNotImplemented // 501
	case KindRateLimited:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type. Every failure that leaves
// the interpolation pipeline is expressed as an AppError so that callers get
// a code, a human-readable message and the name of the operation that failed.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Op      string         `json:"-"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy bucket of the error.
func (e *AppError) Kind() ErrorKind {
	return e.Code.Kind()
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithOp returns a copy of the error tagged with the operation name.
// An operation already set on the error is kept, since it is the more
// specific of the two.
func (e *AppError) WithOp(op string) *AppError {
	cp := *e
	if cp.Op == "" {
		cp.Op = op
	}
	return &cp
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	cp := *e
	cp.Details = merged
	return &cp
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewOpError creates an AppError attributed to a named pipeline operation.
func NewOpError(op string, code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
