package types

import "log/slog"

const redactedPlaceholder = "***REDACTED***"

// SecretString holds a credential (for example a database URL with an
// embedded password) that must never reach logs or JSON output.
// Call Unmask only at the point the raw value is handed to a driver.
type SecretString string

// String implements fmt.Stringer with a redacted value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// LogValue implements slog.LogValuer so structured loggers redact the value.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// MarshalJSON renders the redacted placeholder.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// IsZero reports whether no secret was configured.
func (s SecretString) IsZero() bool { return s == "" }

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}
