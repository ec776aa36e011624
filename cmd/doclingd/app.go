package main

import (
	"time"

	"github.com/rs/zerolog"

	"doclingd/internal/assets"
	"doclingd/internal/backend"
	"doclingd/internal/common/fsutil"
	"doclingd/internal/config"
	"doclingd/internal/engine/runtime"
	"doclingd/internal/session"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	cacheDir string
	backend  backend.ComputeBackend
	fetcher  *assets.Fetcher
	session  *session.Session
}

// detectGPU is replaced in tests.
var detectGPU backend.Probe = backend.DetectGPU

// newApp selects the backend once and wires fetcher, engine and session.
func newApp(cfg config.Config, log zerolog.Logger) (*app, error) {
	cacheDir, err := fsutil.ExpandHome(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	probe, err := backend.ParseMode(cfg.Device, detectGPU)
	if err != nil {
		return nil, err
	}
	be := backend.Select(probe)
	log.Info().Str("backend", be.String()).Str("device", cfg.Device).Msg("backend_selected")

	fetcher := &assets.Fetcher{
		BaseURL:  cfg.HubURL,
		CacheDir: cacheDir,
		Token:    cfg.HubToken,
		Log:      log.With().Str("component", "assets").Logger(),
	}
	eng := runtime.New(runtime.Config{
		Fetcher:  fetcher,
		Revision: cfg.Revision,
		URL:      cfg.RuntimeURL,
		Bin:      cfg.RuntimeBin,
		Args:     cfg.RuntimeArgs,
		Log:      log.With().Str("component", "runtime").Logger(),
	})
	sess := session.New(session.Config{
		ModelID:       cfg.ModelID,
		Engine:        eng,
		Backend:       be,
		MaxNewTokens:  cfg.MaxNewTokens,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       time.Duration(cfg.MaxWaitSeconds) * time.Second,
		Publisher:     logPublisher{log: log},
		Log:           log.With().Str("component", "session").Logger(),
	})
	return &app{
		cfg:      cfg,
		log:      log,
		cacheDir: cacheDir,
		backend:  be,
		fetcher:  fetcher,
		session:  sess,
	}, nil
}

func (a *app) Close() error { return a.session.Close() }
