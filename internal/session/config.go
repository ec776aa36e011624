package session

import (
	"time"

	"github.com/rs/zerolog"

	"doclingd/internal/backend"
	"doclingd/internal/engine"
)

// DefaultModelID is the Granite Docling ONNX export.
const DefaultModelID = "onnx-community/granite-docling-258M-ONNX"

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
)

// Config encapsulates all tunables for Session construction.
type Config struct {
	ModelID string
	Engine  engine.Engine
	// Backend is decided once by the caller, normally via backend.Select.
	Backend backend.ComputeBackend
	// Precision defaults to engine.DefaultPrecision.
	Precision    engine.PrecisionTable
	MaxNewTokens int

	MaxQueueDepth int
	MaxWait       time.Duration

	Publisher EventPublisher
	Log       zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.ModelID == "" {
		c.ModelID = DefaultModelID
	}
	if c.Precision == nil {
		c.Precision = engine.DefaultPrecision()
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultMaxWait
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
}
