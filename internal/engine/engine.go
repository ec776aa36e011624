// Package engine defines the contract between the orchestration layer and
// the inference engine that owns model numerics.
package engine

import (
	"context"
	"image"

	"doclingd/internal/assets"
	"doclingd/internal/backend"
)

// Content part types of a chat turn.
const (
	PartImage = "image"
	PartText  = "text"
)

// Part is one element of a chat turn's content.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message is one structured chat turn.
type Message struct {
	Role    string `json:"role"`
	Content []Part `json:"content"`
}

// PackOptions controls how text and images are packed into a payload.
type PackOptions struct {
	// SplitImage enables sub-image tiling of large inputs.
	SplitImage bool
}

// Payload is the packed model input consumed by a Generator.
type Payload struct {
	// Prompt is the rendered chat text, holding one placeholder per image.
	Prompt string
	// Expanded is Prompt with each placeholder replaced by the per-tile token layout.
	Expanded string
	// Tiles holds the image tiles in row-major order followed by the global view.
	Tiles []*image.RGBA
	Rows  int
	Cols  int
}

// Preprocessor turns chat turns and images into a Payload.
type Preprocessor interface {
	// ApplyChatTemplate renders messages into the model's linear prompt format.
	ApplyChatTemplate(messages []Message, addGenerationPrompt bool) (string, error)
	// Pack combines rendered text and images into a payload.
	Pack(text string, images []*image.RGBA, opts PackOptions) (*Payload, error)
}

// Generator streams decoded text for a payload.
type Generator interface {
	// Generate decodes up to maxNewTokens tokens, calling onToken with each
	// decoded fragment in order. It returns when generation halts, when
	// onToken returns an error, or when ctx is done.
	Generate(ctx context.Context, p *Payload, maxNewTokens int, onToken func(string) error) error
	// Close releases runtime resources.
	Close() error
}

// GeneratorOptions configures generator construction.
type GeneratorOptions struct {
	Backend   backend.ComputeBackend
	Precision PrecisionTable
	// Progress receives asset acquisition events. It may be nil.
	Progress func(assets.Event)
}

// Engine constructs preprocessors and generators for a model id.
type Engine interface {
	NewPreprocessor(ctx context.Context, modelID string) (Preprocessor, error)
	NewGenerator(ctx context.Context, modelID string, opts GeneratorOptions) (Generator, error)
	// Assets lists the files a generator for table needs, so callers can size
	// progress aggregation before acquisition starts.
	Assets(table PrecisionTable) []string
}
