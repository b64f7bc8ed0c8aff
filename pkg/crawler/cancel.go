package crawler

import "sync/atomic"

// StopToken carries the two-stage stop request into a running crawl. The
// first request drains: the unit in flight finishes and its results are
// merged, then no new unit starts. The second request aborts: the crawl
// returns at the next check without merging partial unit state.
//
// Safe for concurrent use; RequestStop is typically called from a signal
// handler goroutine.
type StopToken struct {
	stops atomic.Int32
}

// NewStopToken returns a token with no stop requested.
func NewStopToken() *StopToken { return &StopToken{} }

// RequestStop escalates the stop stage and returns the new stage count.
func (t *StopToken) RequestStop() int {
	return int(t.stops.Add(1))
}

// Stopping reports whether any stop was requested. Checked at unit
// boundaries.
func (t *StopToken) Stopping() bool {
	return t.stops.Load() >= 1
}

// Aborted reports whether a second stop was requested. Checked mid-unit,
// between comment pages, where a drain would keep going.
func (t *StopToken) Aborted() bool {
	return t.stops.Load() >= 2
}
