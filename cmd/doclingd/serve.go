package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"doclingd/internal/config"
	"doclingd/internal/httpapi"
	"doclingd/internal/registry"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return err
		}
		return serve(ctx, cfg, ln)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.StringVar(&flags.Addr, "addr", os.Getenv("DOCLINGD_ADDR"), "HTTP listen address, e.g. :8080")
	f.IntVar(&flags.MaxQueueDepth, "max-queue-depth", envInt("DOCLINGD_MAX_QUEUE_DEPTH"), "runs allowed to wait for the generation slot")
	f.IntVar(&flags.MaxWaitSeconds, "max-wait-seconds", envInt("DOCLINGD_MAX_WAIT_SECONDS"), "longest wait for the generation slot")
	f.Int64Var(&flags.InferTimeoutSeconds, "infer-timeout-seconds", envInt64("DOCLINGD_INFER_TIMEOUT_SECONDS"), "per-request /infer timeout (0 disables)")
	f.Int64Var(&flags.MaxBodyBytes, "max-body-bytes", envInt64("DOCLINGD_MAX_BODY_BYTES"), "request body limit")
	f.BoolVar(&flags.EagerLoad, "eager-load", envBool("DOCLINGD_EAGER_LOAD"), "initialize the model at startup")
	f.BoolVar(&flags.CORSEnabled, "cors", envBool("DOCLINGD_CORS_ENABLED"), "enable CORS")
	f.StringSliceVar(&flags.CORSAllowedOrigins, "cors-origins", splitCSV(os.Getenv("DOCLINGD_CORS_ORIGINS")), "allowed CORS origins")
	f.StringSliceVar(&flags.CORSAllowedMethods, "cors-methods", splitCSV(os.Getenv("DOCLINGD_CORS_METHODS")), "allowed CORS methods")
	f.StringSliceVar(&flags.CORSAllowedHeaders, "cors-headers", splitCSV(os.Getenv("DOCLINGD_CORS_HEADERS")), "allowed CORS headers")
}

// serve runs the HTTP API on ln until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, cfg config.Config, ln net.Listener) error {
	log := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetBaseContext(ctx)
	httpapi.Configure(httpapi.OptionsFromConfig(cfg))

	svc := &httpapi.SessionService{
		Session:  a.session,
		Scanner:  registry.NewSnapshotScanner(cfg.ModelID),
		CacheDir: a.cacheDir,
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.EagerLoad {
		go func() {
			if err := a.session.EnsureReady(ctx); err != nil {
				log.Error().Err(err).Msg("eager load failed")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Str("model", cfg.ModelID).Msg("doclingd listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
		return err
	}
	return nil
}
