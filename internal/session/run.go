package session

import (
	"context"
	"image"

	"github.com/google/uuid"

	"doclingd/internal/assets"
	"doclingd/internal/input"
	"doclingd/internal/stream"
)

// RunObserver is implemented by sinks that want the run id before the
// first fragment.
type RunObserver interface {
	RunStarted(runID string)
}

// RunBytes decodes data and runs it. Undecodable input fails with
// InvalidInputError before any initialization or generation work.
func (s *Session) RunBytes(ctx context.Context, data []byte, instruction string, sink stream.Sink) (string, error) {
	raster, err := input.Decode(data)
	if err != nil {
		runsTotal.WithLabelValues(resultInvalid).Inc()
		return "", InvalidInputError{Err: err}
	}
	return s.Run(ctx, raster, instruction, sink)
}

// Run transcribes one page. It makes the model ready if needed, waits for
// the single generation slot, prepares the payload and streams fragments to
// sink. A sink implementing assets.ProgressSink also receives download
// progress when this call waits on initialization.
//
// Errors: InvalidInputError, InitializationError, CancelledError,
// GenerationError, or a too-busy error (IsTooBusy).
func (s *Session) Run(ctx context.Context, raster *image.RGBA, instruction string, sink stream.Sink) (string, error) {
	if raster == nil || raster.Bounds().Empty() {
		runsTotal.WithLabelValues(resultInvalid).Inc()
		return "", InvalidInputError{Err: input.ErrEmptyImage}
	}
	if err := ctx.Err(); err != nil {
		return "", CancelledError{Err: err}
	}
	progress, _ := sink.(assets.ProgressSink)
	if err := s.ensure(ctx, progress, false); err != nil {
		runsTotal.WithLabelValues(resultFor(err)).Inc()
		return "", err
	}

	release, err := s.beginGeneration(ctx)
	if err != nil {
		if ctx.Err() != nil {
			err = CancelledError{Err: ctx.Err()}
		}
		runsTotal.WithLabelValues(resultFor(err)).Inc()
		return "", err
	}
	defer release()

	s.mu.Lock()
	pre, gen := s.pre, s.gen
	s.mu.Unlock()
	if gen == nil {
		return "", InitializationError{ModelID: s.cfg.ModelID, Err: errClosed}
	}

	payload, err := input.Prepare(pre, raster, instruction)
	if err != nil {
		runsTotal.WithLabelValues(resultInvalid).Inc()
		return "", InvalidInputError{Err: err}
	}

	runID := uuid.NewString()
	s.mu.Lock()
	s.lastRunID = runID
	s.runs++
	s.mu.Unlock()
	if o, ok := sink.(RunObserver); ok {
		o.RunStarted(runID)
	}

	log := s.log.With().Str("run_id", runID).Logger()
	b := raster.Bounds()
	log.Info().Int("width", b.Dx()).Int("height", b.Dy()).Int("tiles", len(payload.Tiles)).Msg("run_start")
	s.cfg.Publisher.Publish(Event{Name: EventRunStart, ModelID: s.cfg.ModelID, Fields: map[string]any{
		"run_id": runID,
		"tiles":  len(payload.Tiles),
	}})

	dec := stream.Decoder{MaxNewTokens: s.cfg.MaxNewTokens, Log: log}
	out, err := dec.Generate(ctx, gen, payload, sink)
	result := resultFor(err)
	runsTotal.WithLabelValues(result).Inc()
	switch {
	case IsCancelled(err):
		log.Info().Msg("run_cancelled")
		s.cfg.Publisher.Publish(Event{Name: EventRunCancelled, ModelID: s.cfg.ModelID, Fields: map[string]any{"run_id": runID}})
	default:
		fields := map[string]any{"run_id": runID, "result": result, "chars": len(out)}
		if err != nil {
			fields["error"] = err.Error()
			log.Warn().Err(err).Msg("run_end")
		} else {
			log.Info().Int("chars", len(out)).Msg("run_end")
		}
		s.cfg.Publisher.Publish(Event{Name: EventRunEnd, ModelID: s.cfg.ModelID, Fields: fields})
	}
	return out, err
}
