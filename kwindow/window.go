// Package kwindow provides the windowing building blocks: windows, window
// assigners, triggers and evictors.
package kwindow

import (
	"fmt"
	"math"
	"time"
)

// Window is a finite or global bucket of elements per key.
// Implementations must be comparable so they can key per-window state.
type Window interface {
	// MaxTimestamp is the largest timestamp still belonging to the window.
	MaxTimestamp() time.Time
	String() string
}

// TimeWindow covers the half-open interval [Start, End).
//
// The bounds are kept as Unix nanoseconds so that equal windows compare
// equal with == regardless of location or monotonic clock readings.
type TimeWindow struct {
	start int64
	end   int64
}

func NewTimeWindow(start, end time.Time) TimeWindow {
	return TimeWindow{start: start.UnixNano(), end: end.UnixNano()}
}

func (w TimeWindow) Start() time.Time {
	return time.Unix(0, w.start).UTC()
}

func (w TimeWindow) End() time.Time {
	return time.Unix(0, w.end).UTC()
}

func (w TimeWindow) MaxTimestamp() time.Time {
	return time.Unix(0, w.end-1).UTC()
}

func (w TimeWindow) Contains(ts time.Time) bool {
	n := ts.UnixNano()
	return n >= w.start && n < w.end
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("TimeWindow{start=%s, end=%s}", w.Start().Format(time.RFC3339Nano), w.End().Format(time.RFC3339Nano))
}

// GlobalWindow is the single window all elements of a key belong to. It
// only fires through a custom trigger, typically a count trigger.
type GlobalWindow struct{}

func (GlobalWindow) MaxTimestamp() time.Time {
	return time.Unix(0, math.MaxInt64).UTC()
}

func (GlobalWindow) String() string {
	return "GlobalWindow"
}

// windowStart returns the start of the window of the given size and offset
// that contains ts. All values are nanoseconds; ts may be negative.
func windowStart(ts, offset, size int64) int64 {
	rem := (ts - offset) % size
	if rem < 0 {
		rem += size
	}
	return ts - rem
}
