package execution

import (
	"math"
	"time"

	"github.com/birdayz/kcogroup/kprocessor"
)

type eventKind int

const (
	eventElement eventKind = iota
	eventWatermark
	eventEnd
)

// event is what flows between node instances. record holds a
// kprocessor.Record of the receiving node's input type.
type event struct {
	kind      eventKind
	producer  int
	record    any
	watermark kprocessor.Watermark
}

// inputTracker combines the watermarks of all producers feeding one
// instance. The combined watermark is the minimum over producers; finished
// producers no longer hold it back.
type inputTracker struct {
	watermarks []int64
	finished   []bool
	remaining  int
	current    int64
}

func newInputTracker(producers int) *inputTracker {
	wms := make([]int64, producers)
	for i := range wms {
		wms[i] = math.MinInt64
	}
	return &inputTracker{
		watermarks: wms,
		finished:   make([]bool, producers),
		remaining:  producers,
		current:    math.MinInt64,
	}
}

// advance records a producer watermark and reports the new combined
// watermark if it moved forward.
func (t *inputTracker) advance(producer int, wm kprocessor.Watermark) (kprocessor.Watermark, bool) {
	if t.finished[producer] {
		return kprocessor.Watermark{}, false
	}
	if ns := wm.Time.UnixNano(); ns > t.watermarks[producer] {
		t.watermarks[producer] = ns
	}
	return t.recompute()
}

// finish marks a producer as done. done reports whether all producers are.
func (t *inputTracker) finish(producer int) (wm kprocessor.Watermark, advanced, done bool) {
	if !t.finished[producer] {
		t.finished[producer] = true
		t.watermarks[producer] = math.MaxInt64
		t.remaining--
	}
	wm, advanced = t.recompute()
	return wm, advanced, t.remaining == 0
}

func (t *inputTracker) done() bool {
	return t.remaining == 0
}

func (t *inputTracker) watermark() kprocessor.Watermark {
	return kprocessor.Watermark{Time: time.Unix(0, t.current)}
}

func (t *inputTracker) recompute() (kprocessor.Watermark, bool) {
	lowest := int64(math.MaxInt64)
	for _, wm := range t.watermarks {
		lowest = min(lowest, wm)
	}
	if lowest <= t.current {
		return kprocessor.Watermark{}, false
	}
	t.current = lowest
	return t.watermark(), true
}
