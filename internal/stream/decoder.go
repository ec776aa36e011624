// Package stream drives incremental generation and delivers fragments to a
// sink as they are produced.
package stream

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"doclingd/internal/engine"
)

// DefaultMaxNewTokens is the generation budget when none is configured.
const DefaultMaxNewTokens = 4096

// Decoder runs one generation at a time against a Generator.
type Decoder struct {
	MaxNewTokens int
	Log          zerolog.Logger
}

// Generate streams fragments of gen's output for p to sink, synchronously and
// in order, and returns the concatenation with a trailing EndMarker removed.
//
// If ctx is done, no further fragment reaches sink and the error is a
// CancelledError. Engine failures are returned as GenerationError. A sink
// error stops generation and is returned unchanged.
func (d Decoder) Generate(ctx context.Context, gen engine.Generator, p *engine.Payload, sink Sink) (string, error) {
	if sink == nil {
		sink = Discard
	}
	budget := d.MaxNewTokens
	if budget <= 0 {
		budget = DefaultMaxNewTokens
	}
	if err := ctx.Err(); err != nil {
		generationDuration.WithLabelValues(resultCancelled).Observe(0)
		return "", CancelledError{Err: err}
	}

	var out Output
	var sinkErr error
	start := time.Now()
	err := gen.Generate(ctx, p, budget, func(frag string) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		out.Append(frag)
		fragmentsTotal.Inc()
		if serr := sink.Fragment(frag); serr != nil {
			sinkErr = serr
			return serr
		}
		return nil
	})
	dur := time.Since(start)
	n := len(out.Fragments())

	switch {
	case ctx.Err() != nil:
		generationDuration.WithLabelValues(resultCancelled).Observe(dur.Seconds())
		d.Log.Info().Int("fragments", n).Dur("dur", dur).Msg("generate_cancelled")
		return "", CancelledError{Err: ctx.Err()}
	case sinkErr != nil && errors.Is(err, sinkErr):
		generationDuration.WithLabelValues(resultError).Observe(dur.Seconds())
		d.Log.Warn().Err(sinkErr).Int("fragments", n).Msg("generate_sink_error")
		return "", sinkErr
	case err != nil:
		generationDuration.WithLabelValues(resultError).Observe(dur.Seconds())
		d.Log.Warn().Err(err).Int("fragments", n).Msg("generate_error")
		return "", GenerationError{Err: err}
	}
	result := out.Finalize()
	generationDuration.WithLabelValues(resultOK).Observe(dur.Seconds())
	d.Log.Debug().Int("fragments", n).Int("chars", len(result)).Dur("dur", dur).Msg("generate_end")
	return result, nil
}
