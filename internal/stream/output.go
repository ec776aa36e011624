package stream

import (
	"strings"
	"sync"
)

// EndMarker is the end-of-sequence token the decoder keeps in its output.
const EndMarker = "<|end_of_text|>"

// Sink receives decoded fragments in generation order.
type Sink interface {
	Fragment(s string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(string) error

func (f SinkFunc) Fragment(s string) error { return f(s) }

// Discard drops every fragment.
var Discard Sink = SinkFunc(func(string) error { return nil })

// Output accumulates fragments and produces the final transcription once.
type Output struct {
	mu        sync.Mutex
	fragments []string
	b         strings.Builder
	final     string
	finalized bool
}

// Append records a fragment. Appends after Finalize are ignored.
func (o *Output) Append(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finalized {
		return
	}
	o.fragments = append(o.fragments, s)
	o.b.WriteString(s)
}

// Fragments returns a copy of the fragments in arrival order.
func (o *Output) Fragments() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.fragments...)
}

// String returns the untrimmed concatenation.
func (o *Output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.String()
}

// Finalize trims one trailing EndMarker from the concatenation and freezes
// the output. Later calls return the same value.
func (o *Output) Finalize() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.finalized {
		o.final = Trim(o.b.String())
		o.finalized = true
	}
	return o.final
}

// Trim removes a single EndMarker at the very end of s.
func Trim(s string) string {
	return strings.TrimSuffix(s, EndMarker)
}
