package main

import (
	"fmt"
	"io"
	"sync"
)

// progressPrinter writes aggregate download progress on one terminal line.
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last int
	done bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, last: -1}
}

func (p *progressPrinter) Progress(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || percent == p.last {
		return
	}
	p.last = percent
	fmt.Fprintf(p.w, "\rdownloading model: %3d%%", percent)
	if percent >= 100 {
		fmt.Fprintln(p.w)
		p.done = true
	}
}

// cliSink streams fragments to out and progress to the printer.
type cliSink struct {
	out      io.Writer
	progress *progressPrinter
}

func (s cliSink) Fragment(f string) error {
	_, err := io.WriteString(s.out, f)
	return err
}

func (s cliSink) Progress(percent int) { s.progress.Progress(percent) }
