package stream

import "errors"

// CancelledError reports that generation stopped because the caller's
// context was done. Fragments delivered before that stay delivered.
type CancelledError struct{ Err error }

func (e CancelledError) Error() string { return "generation cancelled: " + e.Err.Error() }
func (e CancelledError) Unwrap() error { return e.Err }

// IsCancelled reports whether err is a CancelledError.
func IsCancelled(err error) bool {
	var c CancelledError
	return errors.As(err, &c)
}

// GenerationError wraps a failure raised by the engine mid-generation.
type GenerationError struct{ Err error }

func (e GenerationError) Error() string { return "generation failed: " + e.Err.Error() }
func (e GenerationError) Unwrap() error { return e.Err }

// IsGeneration reports whether err is a GenerationError.
func IsGeneration(err error) bool {
	var g GenerationError
	return errors.As(err, &g)
}
