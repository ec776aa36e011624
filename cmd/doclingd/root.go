package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"doclingd/internal/config"
)

var (
	cfgFile string
	// Version is set at build time.
	Version = "dev"
	// flags holds command-line overrides. Zero values mean unset.
	flags config.Config
)

var rootCmd = &cobra.Command{
	Use:   "doclingd",
	Short: "Local Granite Docling page transcription",
	Long: `Run Granite Docling locally: download the model once, then turn page
images into DocTags, Markdown or HTML.

Examples:
  # Serve the HTTP API
  doclingd serve --addr :8080

  # Transcribe one page to Markdown
  doclingd transcribe page.png --format markdown

  # Show the compute backend that would be used
  doclingd probe

  # Download the model into the cache
  doclingd fetch`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", os.Getenv("DOCLINGD_CONFIG"), "config file (.yaml, .json or .toml)")
	pf.StringVar(&flags.LogLevel, "log-level", os.Getenv("DOCLINGD_LOG_LEVEL"), "log level (debug, info, warn, error)")
	pf.StringVar(&flags.LogFormat, "log-format", os.Getenv("DOCLINGD_LOG_FORMAT"), "log format (console or json)")
	pf.StringVar(&flags.ModelID, "model", os.Getenv("DOCLINGD_MODEL"), "model id on the hub")
	pf.StringVar(&flags.Revision, "revision", os.Getenv("DOCLINGD_REVISION"), "model revision")
	pf.StringVar(&flags.HubURL, "hub-url", os.Getenv("DOCLINGD_HUB_URL"), "Hugging Face compatible hub base URL")
	pf.StringVar(&flags.CacheDir, "cache-dir", os.Getenv("DOCLINGD_CACHE_DIR"), "model cache directory")
	pf.StringVar(&flags.Device, "device", os.Getenv("DOCLINGD_DEVICE"), "compute device (auto, accelerated or cpu)")
	pf.IntVar(&flags.MaxNewTokens, "max-new-tokens", envInt("DOCLINGD_MAX_NEW_TOKENS"), "generation limit per page")
	pf.StringVar(&flags.RuntimeURL, "runtime-url", os.Getenv("DOCLINGD_RUNTIME_URL"), "URL of a running inference runtime")
	pf.StringVar(&flags.RuntimeBin, "runtime-bin", os.Getenv("DOCLINGD_RUNTIME_BIN"), "inference runtime executable to spawn")
	pf.StringSliceVar(&flags.RuntimeArgs, "runtime-arg", splitCSV(os.Getenv("DOCLINGD_RUNTIME_ARGS")), "extra runtime argument (repeatable)")

	flags.HubToken = os.Getenv("DOCLINGD_HUB_TOKEN")
	if flags.HubToken == "" {
		flags.HubToken = os.Getenv("HF_TOKEN")
	}
}

// loadConfig layers defaults, the config file and flags, in that order.
func loadConfig() (config.Config, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		fc, err := config.Load(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", cfgFile, err)
		}
		cfg = config.Merge(cfg, fc)
	}
	cfg = config.Merge(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envInt(key string) int {
	n, _ := strconv.Atoi(os.Getenv(key))
	return n
}

func envInt64(key string) int64 {
	n, _ := strconv.ParseInt(os.Getenv(key), 10, 64)
	return n
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

// splitCSV splits a comma separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
