package koperator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zoobzio/clockz"

	"github.com/birdayz/kcogroup/kmetrics"
	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kwindow"
)

type event struct {
	key   string
	value int
}

type testContext[T any] struct {
	records    []kprocessor.Record[T]
	watermarks []kprocessor.Watermark
	clock      clockz.Clock
}

func newTestContext[T any]() *testContext[T] {
	return &testContext[T]{clock: clockz.NewFakeClock()}
}

func (c *testContext[T]) Emit(_ context.Context, r kprocessor.Record[T]) {
	c.records = append(c.records, r)
}

func (c *testContext[T]) EmitWatermark(_ context.Context, wm kprocessor.Watermark) {
	c.watermarks = append(c.watermarks, wm)
}

func (c *testContext[T]) CurrentWatermark() kprocessor.Watermark { return kprocessor.MinWatermark }

func (c *testContext[T]) ProcessingTime() time.Time { return c.clock.Now() }

func (c *testContext[T]) Info() kprocessor.TaskInfo {
	return kprocessor.TaskInfo{OperatorName: "test", Parallelism: 1}
}

func (c *testContext[T]) Logger() logr.Logger { return logr.Discard() }

func (c *testContext[T]) values() []T {
	out := make([]T, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.Value)
	}
	return out
}

func byKey(e event) (string, error) {
	return e.key, nil
}

// listValues renders a fired window as "key:[v1 v2 ...]".
func listValues(ctx context.Context, key string, _ kwindow.Window, elements []kprocessor.Record[event], out kprocessor.Collector[string]) error {
	vals := make([]int, 0, len(elements))
	for _, e := range elements {
		vals = append(vals, e.Value.value)
	}
	out.Collect(ctx, fmt.Sprintf("%s:%v", key, vals))
	return nil
}

func at(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func wm(ms int64) kprocessor.Watermark {
	return kprocessor.Watermark{Time: at(ms)}
}

func element(key string, value int, tsMs int64) kprocessor.Record[event] {
	return kprocessor.NewRecord(event{key: key, value: value}, at(tsMs))
}

type harness struct {
	op   *WindowOperator[string, event, string]
	octx *testContext[string]
}

func newHarness(t *testing.T, cfg Config[string, event], fn WindowFunction[string, event, string]) *harness {
	t.Helper()
	if cfg.KeySelector == nil {
		cfg.KeySelector = byKey
	}
	if fn == nil {
		fn = listValues
	}
	build, err := New(cfg, fn)
	assert.NoError(t, err)

	op := build().(*WindowOperator[string, event, string])
	octx := newTestContext[string]()
	assert.NoError(t, op.Open(octx))
	return &harness{op: op, octx: octx}
}

func (h *harness) process(t *testing.T, recs ...kprocessor.Record[event]) {
	t.Helper()
	for _, r := range recs {
		assert.NoError(t, h.op.ProcessElement(context.Background(), r))
	}
}

func (h *harness) watermark(t *testing.T, w kprocessor.Watermark) {
	t.Helper()
	assert.NoError(t, h.op.ProcessWatermark(context.Background(), w))
}

func (h *harness) openWindows() int {
	n := 0
	for range h.op.store.Windows(context.Background()) {
		n++
	}
	return n
}

func TestTumblingEventTime(t *testing.T) {
	h := newHarness(t, Config[string, event]{
		Name:     "tumbling-event-time",
		Assigner: kwindow.TumblingEventTimeWindows(10 * time.Millisecond),
	}, nil)

	h.process(t,
		element("A", 1, 0),
		element("B", 2, 3),
		element("A", 3, 9),
		element("A", 4, 12),
	)
	assert.Equal(t, 0, len(h.octx.records))

	h.watermark(t, wm(9))
	assert.Equal(t, 0, len(h.octx.records))

	h.watermark(t, wm(10))
	assert.Equal(t, []string{"A:[1 3]", "B:[2]"}, h.octx.values())
	assert.Equal(t, at(10).Add(-time.Nanosecond).UnixNano(), h.octx.records[0].Metadata.Timestamp.UnixNano())
	assert.Equal(t, 1, h.openWindows())

	h.watermark(t, kprocessor.MaxWatermark)
	assert.Equal(t, []string{"A:[1 3]", "B:[2]", "A:[4]"}, h.octx.values())
	assert.Equal(t, 0, h.openWindows())

	assert.Equal(t, []kprocessor.Watermark{wm(9), wm(10), kprocessor.MaxWatermark}, h.octx.watermarks)
	assert.Equal(t, 3.0, testutil.ToFloat64(kmetrics.WindowsFired.WithLabelValues("tumbling-event-time", "0")))
	assert.Equal(t, 4.0, testutil.ToFloat64(kmetrics.ElementsProcessed.WithLabelValues("tumbling-event-time", "0")))
}

func TestSlidingEventTime(t *testing.T) {
	h := newHarness(t, Config[string, event]{
		Name:     "sliding-event-time",
		Assigner: kwindow.SlidingEventTimeWindows(10*time.Millisecond, 5*time.Millisecond),
	}, nil)

	h.process(t, element("A", 1, 2), element("A", 2, 7))
	h.watermark(t, kprocessor.MaxWatermark)

	// windows [-5,5) [0,10) [5,15)
	assert.Equal(t, []string{"A:[1]", "A:[1 2]", "A:[2]"}, h.octx.values())
}

func TestLateElements(t *testing.T) {
	t.Run("dropped after cleanup", func(t *testing.T) {
		h := newHarness(t, Config[string, event]{
			Name:     "late-dropped",
			Assigner: kwindow.TumblingEventTimeWindows(10 * time.Millisecond),
		}, nil)

		h.process(t, element("A", 1, 1))
		h.watermark(t, wm(20))
		h.process(t, element("A", 2, 5))
		h.watermark(t, kprocessor.MaxWatermark)

		assert.Equal(t, []string{"A:[1]"}, h.octx.values())
		assert.Equal(t, 1.0, testutil.ToFloat64(kmetrics.LateElementsDropped.WithLabelValues("late-dropped", "0")))
	})

	t.Run("allowed lateness refires", func(t *testing.T) {
		h := newHarness(t, Config[string, event]{
			Name:            "late-allowed",
			Assigner:        kwindow.TumblingEventTimeWindows(10 * time.Millisecond),
			AllowedLateness: 5 * time.Millisecond,
		}, nil)

		h.process(t, element("A", 1, 1))
		h.watermark(t, wm(10))
		assert.Equal(t, []string{"A:[1]"}, h.octx.values())
		assert.Equal(t, 1, h.openWindows())

		h.process(t, element("A", 2, 5))
		assert.Equal(t, []string{"A:[1]", "A:[1 2]"}, h.octx.values())

		h.watermark(t, wm(15))
		assert.Equal(t, 0, h.openWindows())

		h.process(t, element("A", 3, 6))
		assert.Equal(t, 2, len(h.octx.records))
		assert.Equal(t, 1.0, testutil.ToFloat64(kmetrics.LateElementsDropped.WithLabelValues("late-allowed", "0")))
	})
}

func TestCountWindows(t *testing.T) {
	h := newHarness(t, Config[string, event]{
		Name:     "count-windows",
		Assigner: kwindow.GlobalWindows{},
		Trigger:  kwindow.PurgingTrigger(kwindow.CountTrigger(2)),
	}, nil)

	h.process(t,
		element("A", 1, 0),
		element("B", 2, 0),
		element("A", 3, 0),
		element("A", 4, 0),
		element("B", 5, 0),
		element("A", 6, 0),
	)
	assert.Equal(t, []string{"A:[1 3]", "B:[2 5]", "A:[4 6]"}, h.octx.values())
	assert.Equal(t, 0, h.openWindows())

	// global windows never fire on watermarks
	h.process(t, element("A", 7, 0))
	h.watermark(t, kprocessor.MaxWatermark)
	assert.Equal(t, 3, len(h.octx.records))
	assert.Equal(t, 3.0, testutil.ToFloat64(kmetrics.WindowsPurged.WithLabelValues("count-windows", "0")))
}

// purgeEvery clears a window every n elements without firing it.
type purgeEvery struct {
	n int64
}

func (p purgeEvery) OnElement(_ time.Time, _ kwindow.Window, ctx kwindow.TriggerContext) kwindow.TriggerResult {
	c := ctx.Counter("seen")
	if c.Add(1) >= p.n {
		c.Clear()
		return kwindow.Purge
	}
	return kwindow.Continue
}

func (purgeEvery) OnEventTime(time.Time, kwindow.Window, kwindow.TriggerContext) kwindow.TriggerResult {
	return kwindow.Continue
}

func (purgeEvery) OnProcessingTime(time.Time, kwindow.Window, kwindow.TriggerContext) kwindow.TriggerResult {
	return kwindow.Continue
}

func (purgeEvery) Clear(_ kwindow.Window, ctx kwindow.TriggerContext) {
	ctx.Counter("seen").Clear()
}

func (purgeEvery) String() string {
	return "purgeEvery"
}

func TestPurgeWithoutFire(t *testing.T) {
	calls := 0
	h := newHarness(t, Config[string, event]{
		Name:     "purge-only",
		Assigner: kwindow.GlobalWindows{},
		Trigger:  purgeEvery{n: 2},
	}, func(context.Context, string, kwindow.Window, []kprocessor.Record[event], kprocessor.Collector[string]) error {
		calls++
		return nil
	})

	h.process(t, element("A", 1, 0))
	assert.Equal(t, 1, h.openWindows())

	h.process(t, element("A", 2, 0))
	assert.Equal(t, 0, h.openWindows())
	assert.Equal(t, 1.0, testutil.ToFloat64(kmetrics.WindowsPurged.WithLabelValues("purge-only", "0")))
	assert.Equal(t, 0.0, testutil.ToFloat64(kmetrics.WindowsFired.WithLabelValues("purge-only", "0")))

	h.watermark(t, kprocessor.MaxWatermark)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, len(h.octx.records))
}

type evictAll struct{}

func (evictAll) EvictBefore([]kprocessor.Record[event], kwindow.Window, kwindow.EvictorContext) []kprocessor.Record[event] {
	return nil
}

func (evictAll) EvictAfter(elements []kprocessor.Record[event], _ kwindow.Window, _ kwindow.EvictorContext) []kprocessor.Record[event] {
	return elements
}

func TestEvictors(t *testing.T) {
	t.Run("evicting everything skips the function", func(t *testing.T) {
		calls := 0
		h := newHarness(t, Config[string, event]{
			Name:     "evict-all",
			Assigner: kwindow.TumblingEventTimeWindows(10 * time.Millisecond),
			Evictor:  evictAll{},
		}, func(context.Context, string, kwindow.Window, []kprocessor.Record[event], kprocessor.Collector[string]) error {
			calls++
			return nil
		})

		h.process(t, element("A", 1, 1), element("A", 2, 2))
		h.watermark(t, kprocessor.MaxWatermark)
		assert.Equal(t, 0, calls)
		assert.Equal(t, 0, len(h.octx.records))
	})

	t.Run("count evictor keeps newest", func(t *testing.T) {
		h := newHarness(t, Config[string, event]{
			Name:     "evict-count",
			Assigner: kwindow.GlobalWindows{},
			Trigger:  kwindow.CountTrigger(2),
			Evictor:  kwindow.NewCountEvictor[event](3),
		}, nil)

		for i := 1; i <= 6; i++ {
			h.process(t, element("A", i, 0))
		}
		assert.Equal(t, []string{"A:[1 2]", "A:[2 3 4]", "A:[4 5 6]"}, h.octx.values())
	})
}

func TestProcessingTimeWindows(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, Config[string, event]{
		Name:     "processing-time",
		Assigner: kwindow.TumblingProcessingTimeWindows(time.Second),
	}, nil)
	h.octx.clock = clock

	h.process(t, element("A", 1, 0), element("A", 2, 999_999))
	assert.NoError(t, h.op.OnProcessingTime(context.Background(), clock.Now()))
	assert.Equal(t, 0, len(h.octx.records))

	// event-time watermarks do not fire processing-time windows
	h.watermark(t, kprocessor.MaxWatermark)
	assert.Equal(t, 0, len(h.octx.records))

	clock.Advance(time.Second)
	assert.NoError(t, h.op.OnProcessingTime(context.Background(), clock.Now()))
	assert.Equal(t, []string{"A:[1 2]"}, h.octx.values())
	assert.Equal(t, 0, h.openWindows())
}

func TestFailures(t *testing.T) {
	t.Run("window function error is fatal", func(t *testing.T) {
		boom := errors.New("boom")
		h := newHarness(t, Config[string, event]{
			Name:     "failing-function",
			Assigner: kwindow.TumblingEventTimeWindows(10 * time.Millisecond),
		}, func(context.Context, string, kwindow.Window, []kprocessor.Record[event], kprocessor.Collector[string]) error {
			return boom
		})

		h.process(t, element("A", 1, 1))
		err := h.op.ProcessWatermark(context.Background(), wm(10))
		assert.True(t, errors.Is(err, ErrWindowFunction))
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("key selector error", func(t *testing.T) {
		h := newHarness(t, Config[string, event]{
			Name:     "failing-selector",
			Assigner: kwindow.TumblingEventTimeWindows(10 * time.Millisecond),
			KeySelector: func(e event) (string, error) {
				return "", fmt.Errorf("no key in %v", e)
			},
		}, nil)

		err := h.op.ProcessElement(context.Background(), element("A", 1, 1))
		assert.True(t, errors.Is(err, ErrKeySelector))
	})
}

func TestClose(t *testing.T) {
	h := newHarness(t, Config[string, event]{
		Name:     "close-discards",
		Assigner: kwindow.TumblingEventTimeWindows(10 * time.Millisecond),
	}, nil)

	h.process(t, element("A", 1, 1), element("B", 1, 15))
	assert.Equal(t, 2, h.openWindows())

	assert.NoError(t, h.op.Close())
	assert.Equal(t, 0, len(h.octx.records))
	assert.Equal(t, 0, h.op.eventTimers.len())

	// idempotent
	assert.NoError(t, h.op.Close())
}

func TestConfigValidation(t *testing.T) {
	valid := Config[string, event]{
		Name:        "valid",
		KeySelector: byKey,
		Assigner:    kwindow.TumblingEventTimeWindows(time.Second),
	}

	tests := []struct {
		name   string
		modify func(c *Config[string, event])
		fn     WindowFunction[string, event, string]
	}{
		{name: "missing name", modify: func(c *Config[string, event]) { c.Name = "" }, fn: listValues},
		{name: "missing selector", modify: func(c *Config[string, event]) { c.KeySelector = nil }, fn: listValues},
		{name: "missing assigner", modify: func(c *Config[string, event]) { c.Assigner = nil }, fn: listValues},
		{name: "negative lateness", modify: func(c *Config[string, event]) { c.AllowedLateness = -time.Second }, fn: listValues},
		{name: "invalid assigner", modify: func(c *Config[string, event]) { c.Assigner = kwindow.TumblingEventTimeWindows(0) }, fn: listValues},
		{name: "missing function", modify: func(*Config[string, event]) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			_, err := New(cfg, tt.fn)
			assert.Error(t, err)
		})
	}

	_, err := New(valid, listValues)
	assert.NoError(t, err)
}
