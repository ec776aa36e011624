package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclingd/internal/backend"
	"doclingd/internal/engine/docling"
	"doclingd/internal/stream"
)

func newTestSession(e *fakeEngine, pub EventPublisher) *Session {
	return New(Config{Engine: e, Backend: backend.CPUFallback, Publisher: pub, MaxWait: 100 * time.Millisecond})
}

func count(names []string, name string) int {
	n := 0
	for _, x := range names {
		if x == name {
			n++
		}
	}
	return n
}

func TestNewIsIdle(t *testing.T) {
	s := newTestSession(&fakeEngine{}, nil)
	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, -1, snap.Progress)
	assert.Equal(t, DefaultModelID, s.ModelID())
	assert.False(t, s.Ready())
}

func TestConcurrentEnsureReadySharesOneAcquisition(t *testing.T) {
	e := &fakeEngine{gate: make(chan struct{})}
	pub := NewMemoryPublisher()
	s := newTestSession(e, pub)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.EnsureReady(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return e.genCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateLoading, s.Snapshot().State)
	close(e.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.EqualValues(t, 1, e.preCalls.Load())
	assert.EqualValues(t, 1, e.genCalls.Load())
	assert.True(t, s.Ready())
	assert.Equal(t, 1, count(pub.Names(), EventEnsureStart))
	assert.Equal(t, 1, count(pub.Names(), EventEnsureReady))

	// cached: no further acquisition
	require.NoError(t, s.EnsureReady(context.Background()))
	assert.EqualValues(t, 1, e.genCalls.Load())
}

func TestEnsureReadyProgress(t *testing.T) {
	s := newTestSession(&fakeEngine{}, nil)
	rec := &recorder{}
	require.NoError(t, s.EnsureReadyProgress(context.Background(), rec))
	// a=5/10 alone emits nothing; a+b = 15/20; a done = 20/20
	assert.Equal(t, []int{75, 100}, rec.progress)
	assert.Equal(t, 100, s.Snapshot().Progress)
	assert.Equal(t, 100, s.Status().Progress)
}

func TestEnsureFailureThenExplicitRetry(t *testing.T) {
	e := &fakeEngine{failInit: 1}
	pub := NewMemoryPublisher()
	s := newTestSession(e, pub)

	err := s.EnsureReady(context.Background())
	require.Error(t, err)
	assert.True(t, IsInitialization(err))
	assert.Contains(t, err.Error(), "hub unreachable")
	assert.Equal(t, StateFailed, s.Snapshot().State)
	st := s.Status()
	assert.Equal(t, "failed", st.State)
	assert.Contains(t, st.Error, "hub unreachable")

	// runs are disabled while failed and do not retry on their own
	_, err = s.Run(context.Background(), page(), "", nil)
	assert.True(t, IsInitialization(err))
	assert.EqualValues(t, 1, e.genCalls.Load())

	require.NoError(t, s.EnsureReady(context.Background()))
	assert.EqualValues(t, 2, e.genCalls.Load())
	assert.Equal(t, StateReady, s.Snapshot().State)
	assert.Empty(t, s.Status().Error)
	assert.Equal(t, 1, count(pub.Names(), EventEnsureError))
}

func TestEnsureCallerCancelDoesNotAbortFlight(t *testing.T) {
	e := &fakeEngine{gate: make(chan struct{})}
	s := newTestSession(e, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.EnsureReady(ctx) }()
	require.Eventually(t, func() bool { return e.genCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	err := <-done
	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)

	close(e.gate)
	require.NoError(t, s.EnsureReady(context.Background()))
	assert.EqualValues(t, 1, e.genCalls.Load())
}

func TestRunBytesInvalidInputDoesNoWork(t *testing.T) {
	e := &fakeEngine{}
	s := newTestSession(e, nil)

	for _, data := range [][]byte{nil, {}, []byte("not an image")} {
		_, err := s.RunBytes(context.Background(), data, "x", nil)
		require.Error(t, err)
		assert.True(t, IsInvalidInput(err))
	}
	assert.Zero(t, e.preCalls.Load())
	assert.Zero(t, e.genCalls.Load())
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestRunImageTokenInInstructionIsInvalidInput(t *testing.T) {
	g := &fakeGen{frags: []string{"x"}}
	s := newTestSession(&fakeEngine{gen: g}, nil)

	_, err := s.Run(context.Background(), page(), "describe the <image> tag", nil)
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.ErrorIs(t, err, docling.ErrImageCount)
	assert.Zero(t, g.calls.Load())
	assert.True(t, s.Ready())
}

func TestRunStreamsAndTrims(t *testing.T) {
	e := &fakeEngine{gen: &fakeGen{frags: []string{"<doctag>", "<text>hi</text>", "</doctag>", stream.EndMarker}}}
	pub := NewMemoryPublisher()
	s := newTestSession(e, pub)

	rec := &recorder{}
	out, err := s.Run(context.Background(), page(), "Convert this page to docling.", rec)
	require.NoError(t, err)
	assert.Equal(t, "<doctag><text>hi</text></doctag>", out)
	assert.Equal(t, []string{"<doctag>", "<text>hi</text>", "</doctag>", stream.EndMarker}, rec.frags)
	assert.Equal(t, []int{75, 100}, rec.progress, "first run triggers initialization")
	assert.NotEmpty(t, rec.runID)
	assert.Equal(t, rec.runID, s.Status().LastRunID)
	assert.EqualValues(t, 1, s.Status().RunsTotal)

	names := pub.Names()
	assert.Equal(t, 1, count(names, EventRunStart))
	assert.Equal(t, 1, count(names, EventRunEnd))
}

func TestRunCancelled(t *testing.T) {
	e := &fakeEngine{gen: &fakeGen{frags: []string{"a", "b", "c"}}}
	pub := NewMemoryPublisher()
	s := newTestSession(e, pub)
	require.NoError(t, s.EnsureReady(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{onFrag: func(n int) {
		if n == 1 {
			cancel()
		}
	}}
	_, err := s.Run(ctx, page(), "", rec)
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Equal(t, []string{"a"}, rec.frags)
	assert.Equal(t, 1, count(pub.Names(), EventRunCancelled))
	assert.True(t, s.Ready())
}

func TestRunGenerationErrorKeepsSessionUsable(t *testing.T) {
	g := &fakeGen{frags: []string{"a", "b"}, failAt: 1, err: errors.New("decoder crashed")}
	e := &fakeEngine{gen: g}
	s := newTestSession(e, nil)

	_, err := s.Run(context.Background(), page(), "", nil)
	require.Error(t, err)
	assert.True(t, IsGeneration(err))
	assert.True(t, s.Ready())

	g.err = nil
	out, err := s.Run(context.Background(), page(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
	assert.EqualValues(t, 1, e.genCalls.Load())
}

func TestRunTooBusy(t *testing.T) {
	g := &fakeGen{frags: []string{"a"}, block: make(chan struct{})}
	s := newTestSession(&fakeEngine{gen: g}, nil)
	require.NoError(t, s.EnsureReady(context.Background()))

	first := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), page(), "", nil)
		first <- err
	}()
	require.Eventually(t, func() bool { return s.Status().Inflight == 1 }, time.Second, 5*time.Millisecond)

	_, err := s.Run(context.Background(), page(), "", nil)
	require.Error(t, err)
	assert.True(t, IsTooBusy(err))

	close(g.block)
	require.NoError(t, <-first)
	assert.Equal(t, 0, s.Status().Inflight)
	assert.Equal(t, 0, s.Status().QueueLen)
}

func TestCloseReleasesGenerator(t *testing.T) {
	e := &fakeEngine{}
	s := newTestSession(e, nil)
	require.NoError(t, s.EnsureReady(context.Background()))
	require.NoError(t, s.Close())
	assert.True(t, e.gen.closed.Load())

	err := s.EnsureReady(context.Background())
	assert.True(t, IsInitialization(err))
	require.NoError(t, s.Close())
}

func TestResultFor(t *testing.T) {
	assert.Equal(t, resultOK, resultFor(nil))
	assert.Equal(t, resultInvalid, resultFor(InvalidInputError{Err: errors.New("x")}))
	assert.Equal(t, resultInit, resultFor(InitializationError{ModelID: "m", Err: errors.New("x")}))
	assert.Equal(t, resultCancelled, resultFor(CancelledError{Err: context.Canceled}))
	assert.Equal(t, resultGen, resultFor(GenerationError{Err: errors.New("x")}))
	assert.Equal(t, resultBusy, resultFor(tooBusyError{modelID: "m"}))
	assert.Equal(t, resultOther, resultFor(errors.New("x")))
}

func TestLateJoinReplayNeverFollowsNewerProgress(t *testing.T) {
	s := newTestSession(&fakeEngine{}, nil)
	f := &flight{done: make(chan struct{}), listeners: map[int]*listener{}}

	rec := &recorder{}
	s.onProgress(f, 30)
	// joiner registers after 30 and captures it for replay
	s.mu.Lock()
	last, lastSeq := s.progress, f.seq
	l := &listener{sink: rec}
	f.listeners[0] = l
	s.mu.Unlock()

	// a newer update reaches the joiner before its replay
	s.onProgress(f, 60)
	l.deliver(last, lastSeq)
	s.onProgress(f, 100)

	assert.Equal(t, []int{60, 100}, rec.progress)
}

func TestLateJoinReplaysLastProgress(t *testing.T) {
	s := newTestSession(&fakeEngine{}, nil)
	f := &flight{done: make(chan struct{}), listeners: map[int]*listener{}}
	s.onProgress(f, 30)

	rec := &recorder{}
	l := &listener{sink: rec}
	l.deliver(s.progress, f.seq)
	l.deliver(s.progress, f.seq)

	assert.Equal(t, []int{30}, rec.progress)
}
