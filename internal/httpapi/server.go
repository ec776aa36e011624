package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"doclingd/internal/session"
	"doclingd/pkg/types"
)

// NewMux builds the HTTP router around svc.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if opts.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORS.Origins,
			AllowedMethods: opts.CORS.Methods,
			AllowedHeaders: opts.CORS.Headers,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", handleModels(svc))
	r.Get("/status", handleStatus(svc))
	r.Post("/ensure", handleEnsure(svc))
	r.Post("/infer", handleInfer(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// handleModels lists cached model snapshots.
//
//	@Summary	List cached models
//	@Tags		models
//	@Produce	json
//	@Success	200	{object}	types.ModelsResponse
//	@Router		/models [get]
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.ListModels()})
	}
}

// handleStatus reports session state and admission counters.
//
//	@Summary	Session status
//	@Tags		status
//	@Produce	json
//	@Success	200	{object}	types.StatusResponse
//	@Router		/status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	}
}

// handleEnsure makes the model ready, retrying a failed initialization.
// With ?progress=1 the response is NDJSON progress lines followed by a
// final done line.
//
//	@Summary	Make the model ready
//	@Tags		models
//	@Produce	json
//	@Param		progress	query		string	false	"stream NDJSON progress when 1"
//	@Success	200			{object}	types.EnsureResponse
//	@Failure	503			{object}	types.ErrorResponse
//	@Router		/ensure [post]
func handleEnsure(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
		defer cancel()
		start := time.Now()

		var sink *ndjsonSink
		if r.URL.Query().Get("progress") == "1" {
			sink = newNDJSONSink(w, nil)
			defer sink.close()
		}
		var err error
		if sink != nil {
			err = svc.EnsureReady(ctx, sink)
		} else {
			err = svc.EnsureReady(ctx, nil)
		}
		if err != nil && (r.Context().Err() != nil || serverBaseCtx.Err() != nil) {
			return
		}
		st := svc.Status()
		finish(r, "ensure", statusOrOK(err), start, err)
		switch {
		case err != nil && (sink == nil || !sink.hasStarted()):
			if sink != nil {
				sink.close()
			}
			writeJSONError(w, statusFor(err), err.Error())
		case err != nil:
			_ = sink.write(types.InferChunk{Done: true, Error: err.Error()})
		case sink != nil:
			_ = sink.write(types.InferChunk{Done: true, Content: st.State})
		default:
			writeJSON(w, types.EnsureResponse{State: st.State, ModelID: st.ModelID})
		}
	}
}

func statusOrOK(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return statusFor(err)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// finish records backpressure and logs the end of a request.
func finish(r *http.Request, op string, status int, start time.Time, err error) {
	if session.IsTooBusy(err) {
		IncrementBackpressure("queue_full")
	}
	lvl := requestLogLevel(r)
	if lvl < LevelInfo && !(lvl >= LevelError && err != nil) {
		return
	}
	z := zlog.Info()
	if err != nil {
		z = zlog.Error().Err(err)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Int("status", status).Dur("dur", time.Since(start)).Msg(op + " end")
}
