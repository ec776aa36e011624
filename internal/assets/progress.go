// Package assets acquires the files a model needs and folds per-file
// download progress into a single percentage.
package assets

import (
	"strings"
	"sync"
)

// Event statuses emitted while acquiring assets.
const (
	StatusInitiate = "initiate"
	StatusDownload = "download"
	StatusProgress = "progress"
	StatusDone     = "done"
)

// Event is one progress notification for a single asset.
type Event struct {
	Status string `json:"status"`
	File   string `json:"file"`
	Loaded int64  `json:"loaded"`
	Total  int64  `json:"total"`
}

// ProgressSink receives aggregate percentages.
type ProgressSink interface {
	Progress(percent int)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(percent int)

func (f ProgressFunc) Progress(percent int) { f(percent) }

// Entry is the latest known state of one asset download.
type Entry struct {
	Loaded int64
	Total  int64
}

// Aggregator combines progress events for a fixed number of expected shard
// assets. No percentage is reported until every expected asset has reported
// at least once with a known total (Total >= 0).
type Aggregator struct {
	mu       sync.Mutex
	expected int
	match    func(file string) bool
	entries  map[string]Entry
	sink     ProgressSink
	last     int
	emitted  bool
}

// NewAggregator returns an aggregator expecting n assets whose names satisfy
// match. A nil match accepts every asset; a nil sink drops percentages.
func NewAggregator(n int, match func(file string) bool, sink ProgressSink) *Aggregator {
	return &Aggregator{
		expected: n,
		match:    match,
		entries:  make(map[string]Entry, n),
		sink:     sink,
	}
}

// SuffixMatcher matches asset names ending in suffix.
func SuffixMatcher(suffix string) func(string) bool {
	return func(file string) bool { return strings.HasSuffix(file, suffix) }
}

// Observe records ev and returns the aggregate percentage when one is
// emitted. Events of other kinds and for non-matching assets are ignored.
func (a *Aggregator) Observe(ev Event) (int, bool) {
	if ev.Status != StatusProgress {
		return 0, false
	}
	if a.match != nil && !a.match(ev.File) {
		return 0, false
	}
	a.mu.Lock()
	a.entries[ev.File] = Entry{Loaded: ev.Loaded, Total: ev.Total}
	if a.expected <= 0 || len(a.entries) != a.expected {
		a.mu.Unlock()
		return 0, false
	}
	var loaded, total int64
	for _, e := range a.entries {
		if e.Total < 0 {
			a.mu.Unlock()
			return 0, false
		}
		loaded += e.Loaded
		total += e.Total
	}
	pct := 100
	if total > 0 {
		pct = int(100 * loaded / total)
	}
	a.last = pct
	a.emitted = true
	sink := a.sink
	a.mu.Unlock()

	if sink != nil {
		sink.Progress(pct)
	}
	return pct, true
}

// Last returns the most recently emitted percentage, if any.
func (a *Aggregator) Last() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last, a.emitted
}

// Seen returns the number of distinct assets that have reported progress.
func (a *Aggregator) Seen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
