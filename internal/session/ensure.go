package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"doclingd/internal/assets"
	"doclingd/internal/engine"
)

// flight is one initialization attempt shared by every caller that arrives
// while it runs.
type flight struct {
	done      chan struct{}
	err       error
	nextID    int
	seq       int
	listeners map[int]*listener
}

// listener forwards percentages to one sink in update order. An update
// older than one already delivered is dropped.
type listener struct {
	sink assets.ProgressSink
	mu   sync.Mutex
	seen int
}

func (l *listener) deliver(percent, seq int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq <= l.seen {
		return
	}
	l.seen = seq
	l.sink.Progress(percent)
}

// EnsureReady makes the model ready, starting initialization if none is in
// flight and joining it otherwise. It is idempotent once ready. On a failed
// session it starts a new attempt.
func (s *Session) EnsureReady(ctx context.Context) error {
	return s.EnsureReadyProgress(ctx, nil)
}

// EnsureReadyProgress is EnsureReady with a sink for aggregate download
// progress. A sink joining late first receives the last emitted percentage.
func (s *Session) EnsureReadyProgress(ctx context.Context, sink assets.ProgressSink) error {
	return s.ensure(ctx, sink, true)
}

// ensure waits for the shared flight. With retry false a failed session
// returns its stored error without a new attempt.
func (s *Session) ensure(ctx context.Context, sink assets.ProgressSink, retry bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return InitializationError{ModelID: s.cfg.ModelID, Err: errClosed}
	}
	switch s.state {
	case StateReady:
		s.mu.Unlock()
		return nil
	case StateFailed:
		if !retry {
			err := s.err
			s.mu.Unlock()
			return err
		}
	}
	f := s.flight
	joined := f != nil
	if !joined {
		f = &flight{done: make(chan struct{}), listeners: map[int]*listener{}}
		s.flight = f
		s.err = nil
		s.progress = -1
		s.setStateLocked(StateLoading)
		go s.acquire(f)
	}
	id := -1
	last, lastSeq := s.progress, f.seq
	var l *listener
	if sink != nil {
		id = f.nextID
		f.nextID++
		l = &listener{sink: sink}
		f.listeners[id] = l
	}
	s.mu.Unlock()

	if joined {
		s.log.Debug().Msg("ensure_join")
		s.cfg.Publisher.Publish(Event{Name: EventEnsureJoin, ModelID: s.cfg.ModelID})
	}
	if l != nil && last >= 0 {
		l.deliver(last, lastSeq)
	}

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		if id >= 0 {
			s.mu.Lock()
			delete(f.listeners, id)
			s.mu.Unlock()
		}
		return CancelledError{Err: ctx.Err()}
	}
}

// acquire builds the preprocessor and generator and settles f.
func (s *Session) acquire(f *flight) {
	start := time.Now()
	modelID := s.cfg.ModelID
	s.log.Info().
		Str("backend", s.cfg.Backend.String()).
		Str("precision", s.cfg.Precision.String()).
		Msg("ensure_start")
	s.cfg.Publisher.Publish(Event{Name: EventEnsureStart, ModelID: modelID, Fields: map[string]any{
		"backend":   s.cfg.Backend.String(),
		"precision": s.cfg.Precision.String(),
	}})

	pre, gen, err := s.build(f)

	s.mu.Lock()
	if err == nil && s.closed {
		err = errClosed
		if gen != nil {
			_ = gen.Close()
		}
	}
	if err != nil {
		ie := InitializationError{ModelID: modelID, Err: err}
		s.err = ie
		f.err = ie
		s.setStateLocked(StateFailed)
	} else {
		s.pre, s.gen = pre, gen
		s.setStateLocked(StateReady)
	}
	s.flight = nil
	s.mu.Unlock()
	close(f.done)

	dur := time.Since(start)
	if err != nil {
		ensureTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Dur("dur", dur).Msg("ensure_error")
		s.cfg.Publisher.Publish(Event{Name: EventEnsureError, ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
		return
	}
	ensureTotal.WithLabelValues("ok").Inc()
	ensureDuration.Observe(dur.Seconds())
	s.log.Info().Dur("dur", dur).Msg("ensure_ready")
	s.cfg.Publisher.Publish(Event{Name: EventEnsureReady, ModelID: modelID, Fields: map[string]any{"dur_ms": dur.Milliseconds()}})
}

func (s *Session) build(f *flight) (engine.Preprocessor, engine.Generator, error) {
	if s.cfg.Engine == nil {
		return nil, nil, errors.New("no engine configured")
	}
	ctx := s.baseCtx
	n := engine.CountShards(s.cfg.Engine.Assets(s.cfg.Precision))
	agg := assets.NewAggregator(n, engine.IsShard, assets.ProgressFunc(func(p int) {
		s.onProgress(f, p)
	}))

	pre, err := s.cfg.Engine.NewPreprocessor(ctx, s.cfg.ModelID)
	if err != nil {
		return nil, nil, err
	}
	gen, err := s.cfg.Engine.NewGenerator(ctx, s.cfg.ModelID, engine.GeneratorOptions{
		Backend:   s.cfg.Backend,
		Precision: s.cfg.Precision,
		Progress:  func(ev assets.Event) { agg.Observe(ev) },
	})
	if err != nil {
		return nil, nil, err
	}
	return pre, gen, nil
}

// onProgress fans an aggregate percentage out to the flight's listeners.
func (s *Session) onProgress(f *flight, percent int) {
	s.mu.Lock()
	s.progress = percent
	f.seq++
	seq := f.seq
	sinks := make([]*listener, 0, len(f.listeners))
	for _, l := range f.listeners {
		sinks = append(sinks, l)
	}
	s.mu.Unlock()

	progressGauge.Set(float64(percent))
	s.log.Debug().Int("percent", percent).Msg("asset_progress")
	s.cfg.Publisher.Publish(Event{Name: EventAssetProgress, ModelID: s.cfg.ModelID, Fields: map[string]any{"percent": percent}})
	for _, l := range sinks {
		l.deliver(percent, seq)
	}
}
