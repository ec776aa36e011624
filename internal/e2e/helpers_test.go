package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"doclingd/internal/assets"
	"doclingd/internal/backend"
	"doclingd/internal/engine/runtime"
	"doclingd/internal/httpapi"
	"doclingd/internal/registry"
	"doclingd/internal/session"
	"doclingd/pkg/types"
)

const modelID = "org/granite-docling-test"

// newHub serves every file the fetcher asks for.
func newHub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/resolve/") {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".json") {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write(bytes.Repeat([]byte("w"), 256))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fakeRuntime streams a fixed completion. When gate is set each completion
// waits for a value on it.
type fakeRuntime struct {
	lines  []string
	gate   chan struct{}
	active atomic.Int32
}

func (f *fakeRuntime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		w.WriteHeader(http.StatusOK)
	case "/completion":
		_, _ = io.Copy(io.Discard, r.Body)
		f.active.Add(1)
		defer f.active.Add(-1)
		if f.gate != nil {
			select {
			case <-f.gate:
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range f.lines {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", l)
			w.(http.Flusher).Flush()
		}
	default:
		http.NotFound(w, r)
	}
}

var pageLines = []string{
	`{"content":"<doctag>","stop":false}`,
	`{"content":"<title>Quarterly Report</title>","stop":false}`,
	`{"content":"<text>Revenue grew.</text>","stop":false}`,
	`{"content":"</doctag><|end_of_text|>","stop":true}`,
}

type stack struct {
	srv      *httptest.Server
	session  *session.Session
	runtime  *fakeRuntime
	cacheDir string
}

// newStack wires hub, runtime engine, session and HTTP API the way serve does.
func newStack(t *testing.T, rt *fakeRuntime, depth int, wait time.Duration) *stack {
	t.Helper()
	hub := newHub(t)
	cacheDir := t.TempDir()
	runtimeURL := ""
	if rt != nil {
		rts := httptest.NewServer(rt)
		t.Cleanup(rts.Close)
		runtimeURL = rts.URL
	}
	eng := runtime.New(runtime.Config{
		Fetcher:      &assets.Fetcher{BaseURL: hub.URL, CacheDir: cacheDir},
		URL:          runtimeURL,
		ReadyTimeout: 2 * time.Second,
	})
	sess := session.New(session.Config{
		ModelID:       modelID,
		Engine:        eng,
		Backend:       backend.CPUFallback,
		MaxQueueDepth: depth,
		MaxWait:       wait,
	})
	t.Cleanup(func() { _ = sess.Close() })
	svc := &httpapi.SessionService{
		Session:  sess,
		Scanner:  registry.NewSnapshotScanner(modelID),
		CacheDir: cacheDir,
	}
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, session: sess, runtime: rt, cacheDir: cacheDir}
}

func pagePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48))))
	return buf.Bytes()
}

// postInfer uploads img as multipart and returns status and body.
func postInfer(t *testing.T, url string, img []byte, format string) (int, []byte) {
	t.Helper()
	status, body, err := tryInfer(url, img, format)
	require.NoError(t, err, "post /infer")
	return status, body
}

// tryInfer is postInfer for use off the test goroutine.
func tryInfer(url string, img []byte, format string) (int, []byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "page.png")
	if err != nil {
		return 0, nil, err
	}
	_, _ = fw.Write(img)
	_ = mw.WriteField("format", format)
	_ = mw.Close()
	resp, err := http.Post(url+"/infer", mw.FormDataContentType(), &body)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

func parseChunks(t *testing.T, body []byte) []types.InferChunk {
	t.Helper()
	var out []types.InferChunk
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var c types.InferChunk
		require.NoError(t, json.Unmarshal(sc.Bytes(), &c), sc.Text())
		out = append(out, c)
	}
	return out
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err, url)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v), url)
	}
	return resp.StatusCode
}

// newRealStack serves the default model from the real hub through a runtime
// already listening at runtimeURL.
func newRealStack(t *testing.T, runtimeURL string) *httptest.Server {
	t.Helper()
	cacheDir := os.Getenv("DOCLINGD_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = t.TempDir()
	}
	eng := runtime.New(runtime.Config{
		Fetcher: &assets.Fetcher{CacheDir: cacheDir},
		URL:     runtimeURL,
	})
	sess := session.New(session.Config{Engine: eng, Backend: backend.Select(backend.DetectGPU), MaxWait: time.Minute})
	t.Cleanup(func() { _ = sess.Close() })
	srv := httptest.NewServer(httpapi.NewMux(&httpapi.SessionService{Session: sess}))
	t.Cleanup(srv.Close)
	return srv
}
