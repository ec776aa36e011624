package session

import (
	"errors"

	"doclingd/internal/stream"
)

// InitializationError reports that the model could not be made ready.
type InitializationError struct {
	ModelID string
	Err     error
}

func (e InitializationError) Error() string {
	return "initialize " + e.ModelID + ": " + e.Err.Error()
}

func (e InitializationError) Unwrap() error { return e.Err }

// IsInitialization reports whether err is an InitializationError (503).
func IsInitialization(err error) bool {
	var ie InitializationError
	return errors.As(err, &ie)
}

// InvalidInputError reports an empty or undecodable image.
type InvalidInputError struct{ Err error }

func (e InvalidInputError) Error() string { return "invalid input: " + e.Err.Error() }
func (e InvalidInputError) Unwrap() error { return e.Err }

// IsInvalidInput reports whether err is an InvalidInputError (400).
func IsInvalidInput(err error) bool {
	var ie InvalidInputError
	return errors.As(err, &ie)
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// Generation and cancellation errors come from the decoder.
type (
	GenerationError = stream.GenerationError
	CancelledError  = stream.CancelledError
)

// IsGeneration reports whether err is a GenerationError (502).
func IsGeneration(err error) bool { return stream.IsGeneration(err) }

// IsCancelled reports whether err is a CancelledError.
func IsCancelled(err error) bool { return stream.IsCancelled(err) }
