package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"doclingd/internal/common/fsutil"
)

const (
	defaultBaseURL     = "https://huggingface.co"
	defaultRevision    = "main"
	defaultParallelism = 4
	copyBufferSize     = 256 * 1024
)

// Fetcher downloads model files from a Hugging Face compatible hub into a
// local snapshot directory, reporting per-file progress events.
type Fetcher struct {
	BaseURL     string
	CacheDir    string
	Token       string
	Parallelism int
	Client      *http.Client
	Log         zerolog.Logger
}

// fetchError names the file that failed.
type fetchError struct {
	file string
	err  error
}

func (e *fetchError) Error() string { return "fetch " + e.file + ": " + e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// SnapshotDir returns the local directory holding files for modelID at revision.
func (f *Fetcher) SnapshotDir(modelID, revision string) string {
	if revision == "" {
		revision = defaultRevision
	}
	name := "models--" + strings.ReplaceAll(modelID, "/", "--")
	return filepath.Join(f.CacheDir, name, "snapshots", revision)
}

// Fetch ensures every file is present in the snapshot directory and returns
// that directory. Files already on disk are reported as complete without
// network access. The first failure cancels the remaining downloads.
// onEvent calls are serialized.
func (f *Fetcher) Fetch(ctx context.Context, modelID, revision string, files []string, onEvent func(Event)) (string, error) {
	if strings.TrimSpace(modelID) == "" {
		return "", errors.New("empty model id")
	}
	if revision == "" {
		revision = defaultRevision
	}
	dir := f.SnapshotDir(modelID, revision)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	var emitMu sync.Mutex
	emit := func(ev Event) {
		if onEvent == nil {
			return
		}
		emitMu.Lock()
		onEvent(ev)
		emitMu.Unlock()
	}

	par := f.Parallelism
	if par <= 0 {
		par = defaultParallelism
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(par)
	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := f.fetchOne(gctx, modelID, revision, dir, file, emit); err != nil {
				return &fetchError{file: file, err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return dir, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, modelID, revision, dir, file string, emit func(Event)) error {
	dst := filepath.Join(dir, filepath.FromSlash(file))
	emit(Event{Status: StatusInitiate, File: file})

	if fi, err := os.Stat(dst); err == nil && !fi.IsDir() {
		emit(Event{Status: StatusProgress, File: file, Loaded: fi.Size(), Total: fi.Size()})
		emit(Event{Status: StatusDone, File: file, Loaded: fi.Size(), Total: fi.Size()})
		f.Log.Debug().Str("file", file).Msg("asset_cached")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.fileURL(modelID, revision, file), nil)
	if err != nil {
		return err
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	total := resp.ContentLength
	emit(Event{Status: StatusDownload, File: file, Total: total})

	tmp := dst + fsutil.PartialSuffix
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	pw := &progressWriter{w: out, file: file, total: total, emit: emit}
	buf := make([]byte, copyBufferSize)
	_, copyErr := io.CopyBuffer(pw, resp.Body, buf)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(tmp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return closeErr
	}
	if total >= 0 && pw.loaded != total {
		_ = os.Remove(tmp)
		return fmt.Errorf("short body: got %d of %d bytes", pw.loaded, total)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return err
	}
	downloadedBytes.Add(float64(pw.loaded))
	if total < 0 {
		// the size is known only now
		emit(Event{Status: StatusProgress, File: file, Loaded: pw.loaded, Total: pw.loaded})
	}
	emit(Event{Status: StatusDone, File: file, Loaded: pw.loaded, Total: pw.loaded})
	f.Log.Info().
		Str("file", file).
		Str("size", units.HumanSize(float64(pw.loaded))).
		Dur("dur", time.Since(start)).
		Msg("asset_done")
	return nil
}

func (f *Fetcher) fileURL(modelID, revision, file string) string {
	base := strings.TrimRight(f.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/" + modelID + "/resolve/" + url.PathEscape(revision) + "/" + file
}

// progressWriter reports a progress event after every write. Total is -1
// while the response length is unknown.
type progressWriter struct {
	w      io.Writer
	file   string
	loaded int64
	total  int64
	emit   func(Event)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.loaded += int64(n)
	p.emit(Event{Status: StatusProgress, File: p.file, Loaded: p.loaded, Total: p.total})
	return n, err
}
