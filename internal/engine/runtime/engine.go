// Package runtime implements engine.Engine on top of an external inference
// runtime process reached over HTTP. Model assets are acquired through the
// asset fetcher; the runtime is either already listening at a configured URL
// or spawned as a child process pointed at the snapshot directory.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"doclingd/internal/assets"
	"doclingd/internal/engine"
	"doclingd/internal/engine/docling"
)

const defaultReadyTimeout = 60 * time.Second

// Config wires the engine to the asset cache and the runtime.
type Config struct {
	Fetcher  *assets.Fetcher
	Revision string

	// URL of an already running runtime. Takes precedence over Bin.
	URL string
	// Bin is the runtime executable spawned per generator.
	Bin  string
	Args []string
	Host string
	// ReadyTimeout bounds the wait for /health after spawn or connect.
	ReadyTimeout time.Duration

	Client *http.Client
	Log    zerolog.Logger
}

// Engine implements engine.Engine.
type Engine struct {
	cfg Config
}

var _ engine.Engine = (*Engine)(nil)

// New returns an Engine. A nil Fetcher or Client is replaced by a default.
func New(cfg Config) *Engine {
	if cfg.Fetcher == nil {
		cfg.Fetcher = &assets.Fetcher{Log: cfg.Log}
	}
	if cfg.Client == nil {
		// no client timeout; every request carries a context deadline
		cfg.Client = &http.Client{Timeout: 0}
	}
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	return &Engine{cfg: cfg}
}

// Assets returns the manifest for table.
func (e *Engine) Assets(table engine.PrecisionTable) []string {
	return engine.Manifest(table)
}

// NewPreprocessor fetches the model's metadata files and builds a Granite
// Docling preprocessor from them.
func (e *Engine) NewPreprocessor(ctx context.Context, modelID string) (engine.Preprocessor, error) {
	dir, err := e.cfg.Fetcher.Fetch(ctx, modelID, e.cfg.Revision, engine.MetadataFiles, nil)
	if err != nil {
		return nil, err
	}
	cfg, err := docling.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	return docling.New(cfg), nil
}

// NewGenerator fetches every weight file, then connects to or spawns the
// runtime and waits until it reports healthy.
func (e *Engine) NewGenerator(ctx context.Context, modelID string, opts engine.GeneratorOptions) (engine.Generator, error) {
	table := opts.Precision
	if table == nil {
		table = engine.DefaultPrecision()
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	dir, err := e.cfg.Fetcher.Fetch(ctx, modelID, e.cfg.Revision, e.Assets(table), opts.Progress)
	if err != nil {
		return nil, err
	}

	log := e.cfg.Log.With().Str("model", modelID).Logger()
	g := &Generator{client: e.cfg.Client, log: log}
	switch {
	case strings.TrimSpace(e.cfg.URL) != "":
		g.baseURL = strings.TrimRight(e.cfg.URL, "/")
		if err := waitHealthy(ctx, e.cfg.Client, g.baseURL, e.cfg.ReadyTimeout, nil); err != nil {
			return nil, err
		}
		log.Info().Str("url", g.baseURL).Msg("runtime_connected")
	case strings.TrimSpace(e.cfg.Bin) != "":
		args := []string{
			"--model-dir", dir,
			"--device", opts.Backend.Device(),
			"--dtype", table.String(),
		}
		p, err := spawn(ctx, spawnConfig{
			bin:          e.cfg.Bin,
			args:         append(args, e.cfg.Args...),
			host:         e.cfg.Host,
			readyTimeout: e.cfg.ReadyTimeout,
			client:       e.cfg.Client,
			log:          log,
		})
		if err != nil {
			return nil, err
		}
		g.proc = p
		g.baseURL = p.baseURL
	default:
		return nil, errors.New("no runtime configured: set runtime_url or runtime_bin")
	}
	return g, nil
}

// waitHealthy polls baseURL/health until it answers 2xx, the timeout elapses,
// ctx is done or exited reports a process exit.
func waitHealthy(ctx context.Context, client *http.Client, baseURL string, timeout time.Duration, exited <-chan error) error {
	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("runtime not ready in time: %s", baseURL)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case werr := <-exited:
			if werr != nil {
				return fmt.Errorf("runtime exited early: %w", werr)
			}
			return fmt.Errorf("runtime exited before ready: %s", baseURL)
		default:
		}
		if healthy(ctx, client, baseURL) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func healthy(ctx context.Context, client *http.Client, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
