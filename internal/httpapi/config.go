package httpapi

import (
	"time"

	"doclingd/internal/config"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is set. Page
// images are large, so it sits well above a typical JSON API.
const DefaultMaxBodyBytes int64 = 32 << 20

// CORSOptions enables cross-origin access for browser clients.
type CORSOptions struct {
	Enabled bool
	Origins []string
	Methods []string
	Headers []string
}

// Options are the process-wide knobs of the API.
type Options struct {
	// MaxBodyBytes caps /infer bodies; larger requests get 413.
	MaxBodyBytes int64
	// InferTimeout bounds a whole /infer call including initialization.
	// Zero disables it.
	InferTimeout time.Duration
	CORS         CORSOptions
}

var opts = Options{MaxBodyBytes: DefaultMaxBodyBytes}

// Configure replaces the API options. A non-positive body limit selects
// DefaultMaxBodyBytes and a negative timeout disables it.
func Configure(o Options) {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if o.InferTimeout < 0 {
		o.InferTimeout = 0
	}
	o.CORS.Origins = append([]string(nil), o.CORS.Origins...)
	o.CORS.Methods = append([]string(nil), o.CORS.Methods...)
	o.CORS.Headers = append([]string(nil), o.CORS.Headers...)
	opts = o
}

// OptionsFromConfig maps daemon configuration onto API options.
func OptionsFromConfig(c config.Config) Options {
	return Options{
		MaxBodyBytes: c.MaxBodyBytes,
		InferTimeout: time.Duration(c.InferTimeoutSeconds) * time.Second,
		CORS: CORSOptions{
			Enabled: c.CORSEnabled,
			Origins: c.CORSAllowedOrigins,
			Methods: c.CORSAllowedMethods,
			Headers: c.CORSAllowedHeaders,
		},
	}
}
