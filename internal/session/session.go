package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"doclingd/internal/backend"
	"doclingd/internal/engine"
)

// State is the lifecycle state of the model handle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

var allStates = []State{StateIdle, StateLoading, StateReady, StateFailed}

var errClosed = errors.New("session closed")

// Session is the lazily initialized handle to one model. It owns the
// Preprocessor and Generator once ready.
type Session struct {
	cfg Config
	log zerolog.Logger

	// baseCtx scopes initialization to the session rather than to whichever
	// caller started it.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	state     State
	err       error
	pre       engine.Preprocessor
	gen       engine.Generator
	flight    *flight
	progress  int
	lastRunID string
	runs      uint64
	closed    bool

	queueCh   chan struct{}
	genCh     chan struct{}
	startTime time.Time
}

// New constructs an idle Session from cfg. Nothing is fetched until the
// first EnsureReady or Run.
func New(cfg Config) *Session {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:       cfg,
		log:       cfg.Log.With().Str("model", cfg.ModelID).Logger(),
		baseCtx:   ctx,
		cancel:    cancel,
		state:     StateIdle,
		progress:  -1,
		queueCh:   make(chan struct{}, cfg.MaxQueueDepth),
		genCh:     make(chan struct{}, 1),
		startTime: time.Now(),
	}
	setStateGauge(StateIdle)
	return s
}

// ModelID returns the model this session serves.
func (s *Session) ModelID() string { return s.cfg.ModelID }

// Backend returns the compute backend the session was configured with.
func (s *Session) Backend() backend.ComputeBackend { return s.cfg.Backend }

// Ready reports whether the model is loaded.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateReady
}

// Close aborts an in-flight initialization and releases the generator.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	gen := s.gen
	s.gen, s.pre = nil, nil
	s.mu.Unlock()
	s.cancel()
	if gen != nil {
		return gen.Close()
	}
	return nil
}

// setStateLocked must be called with s.mu held.
func (s *Session) setStateLocked(st State) {
	s.state = st
	setStateGauge(st)
}
