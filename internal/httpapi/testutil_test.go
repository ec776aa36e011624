package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"doclingd/internal/assets"
	"doclingd/internal/stream"
	"doclingd/pkg/types"
)

// fakeService scripts Transcribe and EnsureReady.
type fakeService struct {
	ready     bool
	models    []types.Model
	status    types.StatusResponse
	ensureErr error
	progress  []int

	frags []string
	runID string
	err   error
	// errAfter emits this many fragments before returning err.
	errAfter int

	gotImage       []byte
	gotInstruction string
}

func (f *fakeService) ListModels() []types.Model    { return f.models }
func (f *fakeService) Status() types.StatusResponse { return f.status }
func (f *fakeService) Ready() bool                  { return f.ready }

func (f *fakeService) EnsureReady(ctx context.Context, sink assets.ProgressSink) error {
	if sink != nil {
		for _, p := range f.progress {
			sink.Progress(p)
		}
	}
	return f.ensureErr
}

func (f *fakeService) Transcribe(ctx context.Context, image []byte, instruction string, sink stream.Sink) (string, error) {
	f.gotImage = append([]byte(nil), image...)
	f.gotInstruction = instruction
	if ps, ok := sink.(assets.ProgressSink); ok {
		for _, p := range f.progress {
			ps.Progress(p)
		}
	}
	if f.err != nil && f.errAfter == 0 {
		return "", f.err
	}
	if ro, ok := sink.(interface{ RunStarted(string) }); ok && f.runID != "" {
		ro.RunStarted(f.runID)
	}
	var out string
	for i, s := range f.frags {
		if f.err != nil && i == f.errAfter {
			return "", f.err
		}
		if err := sink.Fragment(s); err != nil {
			return "", err
		}
		out += s
	}
	if f.err != nil {
		return "", f.err
	}
	return stream.Trim(out), nil
}

func multipartBody(t *testing.T, image []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "page.png")
		require.NoError(t, err)
		_, _ = fw.Write(image)
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func serve(svc Service, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(rr, req)
	return rr
}

func chunks(t *testing.T, body []byte) []types.InferChunk {
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

func decodeError(t *testing.T, body []byte) types.ErrorResponse {
	t.Helper()
	var e types.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e), string(body))
	return e
}
