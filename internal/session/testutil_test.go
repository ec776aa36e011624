package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"doclingd/internal/assets"
	"doclingd/internal/engine"
	"doclingd/internal/engine/docling"
)

// fakeEngine counts constructions and reports shard progress a=5/10,
// b=10/10, a=10/10 during NewGenerator.
type fakeEngine struct {
	preCalls atomic.Int32
	genCalls atomic.Int32

	// gate, when non-nil, blocks NewGenerator until closed.
	gate chan struct{}

	mu       sync.Mutex
	failInit int
	gen      *fakeGen
}

func (e *fakeEngine) Assets(engine.PrecisionTable) []string {
	return []string{"config.json", "onnx/a.onnx", "onnx/a.onnx_data", "onnx/b.onnx", "onnx/b.onnx_data"}
}

func (e *fakeEngine) NewPreprocessor(ctx context.Context, modelID string) (engine.Preprocessor, error) {
	e.preCalls.Add(1)
	return docling.New(docling.Config{TileSize: 16, LongestEdge: 32, ImageSeqLen: 1}), nil
}

func (e *fakeEngine) NewGenerator(ctx context.Context, modelID string, opts engine.GeneratorOptions) (engine.Generator, error) {
	e.genCalls.Add(1)
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if opts.Progress != nil {
		opts.Progress(assets.Event{Status: assets.StatusInitiate, File: "onnx/a.onnx_data"})
		opts.Progress(assets.Event{Status: assets.StatusProgress, File: "onnx/a.onnx_data", Loaded: 5, Total: 10})
		opts.Progress(assets.Event{Status: assets.StatusProgress, File: "config.json", Loaded: 1, Total: 1})
		opts.Progress(assets.Event{Status: assets.StatusProgress, File: "onnx/b.onnx_data", Loaded: 10, Total: 10})
		opts.Progress(assets.Event{Status: assets.StatusProgress, File: "onnx/a.onnx_data", Loaded: 10, Total: 10})
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failInit > 0 {
		e.failInit--
		return nil, errors.New("hub unreachable")
	}
	if e.gen == nil {
		e.gen = &fakeGen{}
	}
	return e.gen, nil
}

type fakeGen struct {
	frags []string
	calls atomic.Int32
	// block, when non-nil, holds Generate until closed or ctx is done.
	block  chan struct{}
	failAt int
	err    error
	closed atomic.Bool
}

func (g *fakeGen) Generate(ctx context.Context, p *engine.Payload, maxNewTokens int, onToken func(string) error) error {
	g.calls.Add(1)
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i, f := range g.frags {
		if g.err != nil && i == g.failAt {
			return g.err
		}
		if err := onToken(f); err != nil {
			return err
		}
	}
	return nil
}

func (g *fakeGen) Close() error {
	g.closed.Store(true)
	return nil
}

// recorder is a sink that also observes progress and the run id.
type recorder struct {
	mu       sync.Mutex
	frags    []string
	progress []int
	runID    string
	onFrag   func(n int)
}

func (r *recorder) Fragment(s string) error {
	r.mu.Lock()
	r.frags = append(r.frags, s)
	n := len(r.frags)
	r.mu.Unlock()
	if r.onFrag != nil {
		r.onFrag(n)
	}
	return nil
}

func (r *recorder) Progress(p int) {
	r.mu.Lock()
	r.progress = append(r.progress, p)
	r.mu.Unlock()
}

func (r *recorder) RunStarted(id string) { r.runID = id }

func page() *image.RGBA { return image.NewRGBA(image.Rect(0, 0, 40, 20)) }
