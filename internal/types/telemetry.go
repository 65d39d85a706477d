package types

// Telemetry metric names for CloudWatch.
const (
	// Metric Names
	MetricAPILatency            = "APILatency"
	MetricMapBuilt              = "MapBuilt"
	MetricMapFailed             = "MapFailed"
	MetricInterpolationDuration = "InterpolationDuration"
	MetricStationsUsed          = "StationsUsed"

	// Dimension Keys
	DimEndpoint  = "Endpoint"
	DimField     = "Field"
	DimErrorKind = "ErrorKind"

	// Metric Namespace
	MetricNamespace = "FieldMap"
)
