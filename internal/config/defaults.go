package config

import (
	"fmt"
	"strings"
)

// DefaultModelID is the Granite Docling ONNX export on the Hugging Face hub.
const DefaultModelID = "onnx-community/granite-docling-258M-ONNX"

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Addr:           ":8080",
		ModelID:        DefaultModelID,
		Revision:       "main",
		HubURL:         "https://huggingface.co",
		CacheDir:       "~/.cache/doclingd",
		Device:         "auto",
		MaxNewTokens:   4096,
		MaxQueueDepth:  32,
		MaxWaitSeconds: 30,
		MaxBodyBytes:   32 << 20,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Merge returns base with every non-zero field of over applied.
// Booleans can only be switched on by over.
func Merge(base, over Config) Config {
	out := base
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setStr(&out.Addr, over.Addr)
	setStr(&out.ModelID, over.ModelID)
	setStr(&out.Revision, over.Revision)
	setStr(&out.HubURL, over.HubURL)
	setStr(&out.HubToken, over.HubToken)
	setStr(&out.CacheDir, over.CacheDir)
	setStr(&out.Device, over.Device)
	setStr(&out.RuntimeBin, over.RuntimeBin)
	setStr(&out.RuntimeURL, over.RuntimeURL)
	setStr(&out.LogLevel, over.LogLevel)
	setStr(&out.LogFormat, over.LogFormat)
	if over.MaxNewTokens != 0 {
		out.MaxNewTokens = over.MaxNewTokens
	}
	if over.MaxQueueDepth != 0 {
		out.MaxQueueDepth = over.MaxQueueDepth
	}
	if over.MaxWaitSeconds != 0 {
		out.MaxWaitSeconds = over.MaxWaitSeconds
	}
	if over.InferTimeoutSeconds != 0 {
		out.InferTimeoutSeconds = over.InferTimeoutSeconds
	}
	if over.MaxBodyBytes != 0 {
		out.MaxBodyBytes = over.MaxBodyBytes
	}
	if len(over.RuntimeArgs) > 0 {
		out.RuntimeArgs = append([]string(nil), over.RuntimeArgs...)
	}
	if len(over.CORSAllowedOrigins) > 0 {
		out.CORSAllowedOrigins = append([]string(nil), over.CORSAllowedOrigins...)
	}
	if len(over.CORSAllowedMethods) > 0 {
		out.CORSAllowedMethods = append([]string(nil), over.CORSAllowedMethods...)
	}
	if len(over.CORSAllowedHeaders) > 0 {
		out.CORSAllowedHeaders = append([]string(nil), over.CORSAllowedHeaders...)
	}
	out.CORSEnabled = out.CORSEnabled || over.CORSEnabled
	out.EagerLoad = out.EagerLoad || over.EagerLoad
	return out
}

// Validate rejects values no component can use.
func (c Config) Validate() error {
	switch strings.ToLower(c.Device) {
	case "", "auto", "accelerated", "gpu", "webgpu", "cpu", "wasm":
	default:
		return fmt.Errorf("device: unknown value %q (want auto, accelerated or cpu)", c.Device)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format: unknown value %q (want console or json)", c.LogFormat)
	}
	if strings.TrimSpace(c.ModelID) == "" {
		return fmt.Errorf("model_id is required")
	}
	if c.MaxNewTokens < 0 || c.MaxQueueDepth < 0 || c.MaxWaitSeconds < 0 || c.InferTimeoutSeconds < 0 || c.MaxBodyBytes < 0 {
		return fmt.Errorf("numeric settings must not be negative")
	}
	return nil
}
