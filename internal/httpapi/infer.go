package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"doclingd/internal/doctags"
	"doclingd/pkg/types"
)

// inferInput is a parsed /infer request.
type inferInput struct {
	image       []byte
	instruction string
	format      doctags.Format
	// kind is the body encoding: multipart, json or raw.
	kind string
}

// multipart parts beyond this are spooled to disk by net/http.
const multipartMemory = 8 << 20

// handleInfer transcribes one page image and streams NDJSON.
//
// Lines carry a run_id, progress percentages while the model downloads,
// fragments as they decode, and a final done line with the rendered
// content. Errors before the first line are JSON error responses; later
// errors arrive as a done line with an error field.
//
//	@Summary	Transcribe a page image
//	@Tags		infer
//	@Accept		multipart/form-data
//	@Accept		json
//	@Produce	application/x-ndjson
//	@Param		image		formData	file				false	"page image"
//	@Param		instruction	formData	string				false	"instruction"
//	@Param		format		formData	string				false	"doctags, markdown or html"
//	@Param		request		body		types.InferRequest	false	"JSON form"
//	@Success	200			{object}	types.InferChunk
//	@Failure	400			{object}	types.ErrorResponse
//	@Failure	413			{object}	types.ErrorResponse
//	@Failure	415			{object}	types.ErrorResponse
//	@Failure	429			{object}	types.ErrorResponse
//	@Failure	503			{object}	types.ErrorResponse
//	@Router		/infer [post]
func handleInfer(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		in, err := readInferInput(w, r)
		if err != nil {
			status := statusFor(err)
			finish(r, "infer", status, start, err)
			writeJSONError(w, status, err.Error())
			return
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
		defer cancel()
		if opts.InferTimeout > 0 {
			var cancelT context.CancelFunc
			ctx, cancelT = context.WithTimeout(ctx, opts.InferTimeout)
			defer cancelT()
		}
		countInfer(in)

		lvl := requestLogLevel(r)
		var tee io.Writer
		if lvl >= LevelDebug {
			tee = &loggingLineWriter{log: zlog}
		}
		if lvl >= LevelInfo {
			z := zlog.Info().Str("format", string(in.format)).Int("bytes", len(in.image))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("infer start")
		}

		sink := newNDJSONSink(w, tee)
		defer sink.close()
		out, err := svc.Transcribe(ctx, in.image, in.instruction, sink)
		if err == nil {
			var content string
			content, err = doctags.Render(out, in.format)
			if err == nil {
				finish(r, "infer", http.StatusOK, start, nil)
				_ = sink.write(types.InferChunk{Done: true, Content: content, Format: string(in.format), RunID: sink.id()})
				return
			}
		}
		// If context was canceled (client disconnect or shutdown), just return.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := statusFor(err)
		finish(r, "infer", status, start, err)
		if !sink.hasStarted() {
			sink.close()
			writeJSONError(w, status, err.Error())
			return
		}
		_ = sink.write(types.InferChunk{Done: true, Error: err.Error(), RunID: sink.id()})
	}
}

func readInferInput(w http.ResponseWriter, r *http.Request) (inferInput, error) {
	var in inferInput
	r.Body = http.MaxBytesReader(w, r.Body, opts.MaxBodyBytes)
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return in, statusError{http.StatusUnsupportedMediaType, "Content-Type must be multipart/form-data, application/json or image/*"}
	}
	var format string
	switch {
	case mt == "multipart/form-data":
		in.kind = "multipart"
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return in, bodyError(err, "invalid multipart body")
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			return in, statusError{http.StatusBadRequest, "image is required"}
		}
		defer f.Close()
		if in.image, err = io.ReadAll(f); err != nil {
			return in, bodyError(err, "read image")
		}
		in.instruction = r.FormValue("instruction")
		format = r.FormValue("format")
	case mt == "application/json":
		in.kind = "json"
		var req types.InferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return in, bodyError(err, "invalid JSON body")
		}
		if in.image, err = decodeImageBase64(req.ImageBase64); err != nil {
			return in, statusError{http.StatusBadRequest, "invalid image_base64"}
		}
		in.instruction = req.Instruction
		format = req.Format
	case strings.HasPrefix(mt, "image/"):
		in.kind = "raw"
		if in.image, err = io.ReadAll(r.Body); err != nil {
			return in, bodyError(err, "read image")
		}
		in.instruction = r.URL.Query().Get("instruction")
		format = r.URL.Query().Get("format")
	default:
		return in, statusError{http.StatusUnsupportedMediaType, "Content-Type must be multipart/form-data, application/json or image/*"}
	}
	if len(in.image) == 0 {
		return in, statusError{http.StatusBadRequest, "image is required"}
	}
	if in.format, err = doctags.ParseFormat(format); err != nil {
		return in, statusError{http.StatusBadRequest, err.Error()}
	}
	return in, nil
}

// decodeImageBase64 accepts plain base64 or a data URL.
func decodeImageBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}

func bodyError(err error, msg string) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return statusError{http.StatusRequestEntityTooLarge, "request body too large"}
	}
	return statusError{http.StatusBadRequest, msg}
}

// ndjsonSink streams chunks as NDJSON lines. It receives fragments, download
// progress and the run id. Writes after close are dropped since progress can
// arrive from the initialization goroutine.
type ndjsonSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	out     io.Writer
	flush   func()
	started bool
	closed  bool
	runID   string
}

var errSinkClosed = errors.New("response closed")

func newNDJSONSink(w http.ResponseWriter, tee io.Writer) *ndjsonSink {
	s := &ndjsonSink{w: w, out: w}
	if tee != nil {
		s.out = io.MultiWriter(w, tee)
	}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	return s
}

func (s *ndjsonSink) write(c types.InferChunk) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	if !s.started {
		s.w.Header().Set("Content-Type", "application/x-ndjson")
		s.started = true
	}
	if _, err := s.out.Write(buf.Bytes()); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	streamLinesTotal.WithLabelValues(lineKind(c)).Inc()
	return nil
}

func (s *ndjsonSink) Fragment(f string) error {
	return s.write(types.InferChunk{Fragment: f})
}

func (s *ndjsonSink) Progress(percent int) {
	_ = s.write(types.InferChunk{Progress: &percent})
}

func (s *ndjsonSink) RunStarted(runID string) {
	s.mu.Lock()
	s.runID = runID
	s.mu.Unlock()
	_ = s.write(types.InferChunk{RunID: runID})
}

func (s *ndjsonSink) id() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

func (s *ndjsonSink) hasStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *ndjsonSink) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
