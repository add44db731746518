package telemetry

// Config selects whether and where traces are exported.
type Config struct {
	// Enabled turns tracing on. Off, every span is a noop.
	Enabled bool

	// ServiceName identifies this binary in the trace backend.
	ServiceName string

	// ServiceVersion is the build version stamped on the resource.
	ServiceVersion string

	// Endpoint is the OTLP/gRPC collector address, host:port.
	Endpoint string

	// Insecure disables TLS on the collector connection.
	Insecure bool

	// SampleRate is the fraction of traces kept, 0.0 through 1.0. A child
	// span follows its parent's decision regardless.
	SampleRate float64
}

// DefaultConfig returns the config used when a run has no telemetry section:
// disabled, pointed at a local collector.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "regsweep",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
