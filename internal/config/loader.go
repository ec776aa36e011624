package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified"; Merge onto Defaults() to fill them.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	ModelID  string `json:"model_id" yaml:"model_id" toml:"model_id"`
	Revision string `json:"revision" yaml:"revision" toml:"revision"`
	HubURL   string `json:"hub_url" yaml:"hub_url" toml:"hub_url"`
	HubToken string `json:"hub_token" yaml:"hub_token" toml:"hub_token"`
	CacheDir string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	// Device is auto, accelerated (gpu) or cpu (wasm).
	Device       string `json:"device" yaml:"device" toml:"device"`
	MaxNewTokens int    `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`

	RuntimeBin  string   `json:"runtime_bin" yaml:"runtime_bin" toml:"runtime_bin"`
	RuntimeURL  string   `json:"runtime_url" yaml:"runtime_url" toml:"runtime_url"`
	RuntimeArgs []string `json:"runtime_args" yaml:"runtime_args" toml:"runtime_args"`

	MaxQueueDepth       int   `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds      int   `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	InferTimeoutSeconds int64 `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`
	MaxBodyBytes        int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`

	// EagerLoad starts model initialization at server start instead of on
	// the first request.
	EagerLoad bool `json:"eager_load" yaml:"eager_load" toml:"eager_load"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
