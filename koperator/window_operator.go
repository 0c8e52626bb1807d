// Package koperator implements the keyed window operator: it assigns
// elements to windows, buffers them per (key, window), evaluates triggers
// and evictors and hands fired windows to a window function.
package koperator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/birdayz/kcogroup/kmetrics"
	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kstate"
	"github.com/birdayz/kcogroup/kwindow"
)

var (
	ErrInvalidConfig  = errors.New("invalid window operator config")
	ErrKeySelector    = errors.New("key selector failed")
	ErrWindowFunction = errors.New("window function failed")
)

// WindowFunction is called with the buffered elements of a fired window in
// arrival order. Results go to out and carry the window's max timestamp.
type WindowFunction[K comparable, T, OUT any] func(
	ctx context.Context,
	key K,
	w kwindow.Window,
	elements []kprocessor.Record[T],
	out kprocessor.Collector[OUT],
) error

// Config describes a window operator.
type Config[K comparable, T any] struct {
	Name        string
	KeySelector func(T) (K, error)
	Assigner    kwindow.Assigner
	// Trigger defaults to Assigner.DefaultTrigger().
	Trigger kwindow.Trigger
	// Evictor is optional.
	Evictor kwindow.Evictor[T]
	// AllowedLateness keeps event-time windows around after they fired so
	// that late elements refire them.
	AllowedLateness time.Duration
	// Store defaults to kstate.InMemory.
	Store kstate.StoreBuilder[K, T]
}

func (c Config[K, T]) validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	case c.KeySelector == nil:
		return fmt.Errorf("%w: key selector is required", ErrInvalidConfig)
	case c.Assigner == nil:
		return fmt.Errorf("%w: window assigner is required", ErrInvalidConfig)
	case c.AllowedLateness < 0:
		return fmt.Errorf("%w: allowed lateness %s is negative", ErrInvalidConfig, c.AllowedLateness)
	}
	return c.Assigner.Validate()
}

// New validates cfg and returns a builder creating one WindowOperator per
// slot.
func New[K comparable, T, OUT any](cfg Config[K, T], fn WindowFunction[K, T, OUT]) (kprocessor.OperatorBuilder[T, OUT], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: window function is required", ErrInvalidConfig)
	}
	if cfg.Trigger == nil {
		cfg.Trigger = cfg.Assigner.DefaultTrigger()
	}
	if cfg.Store == nil {
		cfg.Store = kstate.InMemory[K, T]()
	}

	return func() kprocessor.OneInputOperator[T, OUT] {
		return &WindowOperator[K, T, OUT]{
			cfg:         cfg,
			fn:          fn,
			eventTimers: newTimerQueue[K](),
			procTimers:  newTimerQueue[K](),
			counters:    make(map[windowKey[K]]map[string]int64),
		}
	}, nil
}

type windowKey[K comparable] struct {
	key    K
	window kwindow.Window
}

// WindowOperator is the per-slot instance. It is driven by a single
// goroutine.
type WindowOperator[K comparable, T, OUT any] struct {
	cfg Config[K, T]
	fn  WindowFunction[K, T, OUT]

	octx      kprocessor.OperatorContext[OUT]
	collector *kprocessor.TimestampedCollector[OUT]
	store     kstate.WindowStore[K, T]
	log       logr.Logger

	watermark   time.Time
	eventTimers *timerQueue[K]
	procTimers  *timerQueue[K]
	counters    map[windowKey[K]]map[string]int64

	elements prometheus.Counter
	fired    prometheus.Counter
	purged   prometheus.Counter
	late     prometheus.Counter
}

func (op *WindowOperator[K, T, OUT]) Open(octx kprocessor.OperatorContext[OUT]) error {
	info := octx.Info()
	store, err := op.cfg.Store(op.cfg.Name, info.Slot)
	if err != nil {
		return fmt.Errorf("open window store: %w", err)
	}

	op.octx = octx
	op.store = store
	op.collector = kprocessor.NewTimestampedCollector(octx)
	op.watermark = kprocessor.MinWatermark.Time
	op.log = octx.Logger().WithName("window").WithValues("assigner", op.cfg.Assigner.String(), "trigger", op.cfg.Trigger.String())

	slot := kmetrics.Slot(info.Slot)
	op.elements = kmetrics.ElementsProcessed.WithLabelValues(op.cfg.Name, slot)
	op.fired = kmetrics.WindowsFired.WithLabelValues(op.cfg.Name, slot)
	op.purged = kmetrics.WindowsPurged.WithLabelValues(op.cfg.Name, slot)
	op.late = kmetrics.LateElementsDropped.WithLabelValues(op.cfg.Name, slot)
	return nil
}

func (op *WindowOperator[K, T, OUT]) ProcessElement(ctx context.Context, rec kprocessor.Record[T]) error {
	op.elements.Inc()

	key, err := op.cfg.KeySelector(rec.Value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeySelector, err)
	}

	ts := rec.Metadata.Timestamp
	skipped := true
	for _, w := range op.cfg.Assigner.AssignWindows(ts, op) {
		if op.isWindowLate(w) {
			continue
		}
		skipped = false

		if err := op.store.Append(ctx, key, w, rec); err != nil {
			return fmt.Errorf("buffer element: %w", err)
		}

		result := op.cfg.Trigger.OnElement(ts, w, op.windowContext(key, w))
		if err := op.apply(ctx, result, key, w); err != nil {
			return err
		}
		op.registerCleanupTimer(key, w)
	}

	if skipped && op.cfg.Assigner.IsEventTime() {
		op.late.Inc()
		op.log.V(1).Info("Dropping late element", "timestamp", ts, "watermark", op.watermark)
	}
	return nil
}

func (op *WindowOperator[K, T, OUT]) ProcessWatermark(ctx context.Context, wm kprocessor.Watermark) error {
	if wm.Time.After(op.watermark) {
		op.watermark = wm.Time
	}

	for {
		t, ok := op.eventTimers.popUntil(op.watermark.UnixNano())
		if !ok {
			break
		}
		if err := op.onEventTime(ctx, t); err != nil {
			return err
		}
	}

	op.octx.EmitWatermark(ctx, wm)
	return nil
}

func (op *WindowOperator[K, T, OUT]) OnProcessingTime(ctx context.Context, now time.Time) error {
	for {
		t, ok := op.procTimers.popUntil(now.UnixNano())
		if !ok {
			return nil
		}

		w := op.windowContext(t.key, t.window)
		result := op.cfg.Trigger.OnProcessingTime(time.Unix(0, t.at), t.window, w)
		if err := op.apply(ctx, result, t.key, t.window); err != nil {
			return err
		}
		if !op.cfg.Assigner.IsEventTime() && t.at == op.cleanupTime(t.window) {
			if err := op.clearAllState(ctx, t.key, t.window); err != nil {
				return err
			}
		}
	}
}

// Close drops all buffered windows without firing them.
func (op *WindowOperator[K, T, OUT]) Close() error {
	if op.store == nil {
		return nil
	}

	discarded := 0
	for range op.store.Windows(context.Background()) {
		discarded++
	}
	if discarded > 0 {
		op.log.V(1).Info("Discarding unfired windows", "count", discarded)
	}

	op.eventTimers.reset()
	op.procTimers.reset()
	clear(op.counters)

	store := op.store
	op.store = nil
	if err := store.Close(); err != nil {
		return fmt.Errorf("close window store %s: %w", store.Name(), err)
	}
	return nil
}

func (op *WindowOperator[K, T, OUT]) CurrentProcessingTime() time.Time {
	return op.octx.ProcessingTime()
}

func (op *WindowOperator[K, T, OUT]) onEventTime(ctx context.Context, t timer[K]) error {
	w := op.windowContext(t.key, t.window)
	result := op.cfg.Trigger.OnEventTime(time.Unix(0, t.at), t.window, w)
	if err := op.apply(ctx, result, t.key, t.window); err != nil {
		return err
	}
	if op.cfg.Assigner.IsEventTime() && t.at == op.cleanupTime(t.window) {
		return op.clearAllState(ctx, t.key, t.window)
	}
	return nil
}

func (op *WindowOperator[K, T, OUT]) apply(ctx context.Context, result kwindow.TriggerResult, key K, w kwindow.Window) error {
	if result.IsFire() {
		if err := op.emitWindowContents(ctx, key, w); err != nil {
			return err
		}
	}
	if result.IsPurge() {
		if err := op.store.Delete(ctx, key, w); err != nil {
			return fmt.Errorf("purge window: %w", err)
		}
		op.purged.Inc()
	}
	return nil
}

func (op *WindowOperator[K, T, OUT]) emitWindowContents(ctx context.Context, key K, w kwindow.Window) error {
	contents, err := op.store.Get(ctx, key, w)
	if err != nil {
		return fmt.Errorf("read window: %w", err)
	}
	if len(contents) == 0 {
		return nil
	}

	evictor := op.cfg.Evictor
	wctx := op.windowContext(key, w)
	if evictor != nil {
		contents = evictor.EvictBefore(contents, w, wctx)
	}

	if len(contents) > 0 {
		op.fired.Inc()
		op.collector.SetTimestamp(w.MaxTimestamp())
		if err := op.fn(ctx, key, w, contents, op.collector); err != nil {
			return fmt.Errorf("%w: operator %s, window %s: %w", ErrWindowFunction, op.cfg.Name, w, err)
		}
	}

	if evictor != nil {
		contents = evictor.EvictAfter(contents, w, wctx)
		if err := op.store.Replace(ctx, key, w, contents); err != nil {
			return fmt.Errorf("write back evicted window: %w", err)
		}
	}
	return nil
}

func (op *WindowOperator[K, T, OUT]) clearAllState(ctx context.Context, key K, w kwindow.Window) error {
	if err := op.store.Delete(ctx, key, w); err != nil {
		return fmt.Errorf("clean up window: %w", err)
	}
	op.cfg.Trigger.Clear(w, op.windowContext(key, w))
	delete(op.counters, windowKey[K]{key: key, window: w})
	return nil
}

// isWindowLate reports whether an event-time window was already cleaned up.
func (op *WindowOperator[K, T, OUT]) isWindowLate(w kwindow.Window) bool {
	return op.cfg.Assigner.IsEventTime() && op.cleanupTime(w) <= op.watermark.UnixNano()
}

// cleanupTime is the timer at which a window's state is dropped, or
// math.MaxInt64 if it is never dropped.
func (op *WindowOperator[K, T, OUT]) cleanupTime(w kwindow.Window) int64 {
	maxTs := w.MaxTimestamp().UnixNano()
	if !op.cfg.Assigner.IsEventTime() {
		return maxTs
	}
	cleanup := maxTs + int64(op.cfg.AllowedLateness)
	if cleanup < maxTs {
		return math.MaxInt64
	}
	return cleanup
}

func (op *WindowOperator[K, T, OUT]) registerCleanupTimer(key K, w kwindow.Window) {
	at := op.cleanupTime(w)
	if at == math.MaxInt64 {
		return
	}
	t := timer[K]{at: at, key: key, window: w}
	if op.cfg.Assigner.IsEventTime() {
		op.eventTimers.register(t)
	} else {
		op.procTimers.register(t)
	}
}

func (op *WindowOperator[K, T, OUT]) windowContext(key K, w kwindow.Window) *windowContext[K, T, OUT] {
	return &windowContext[K, T, OUT]{op: op, key: key, window: w}
}

var _ kprocessor.ProcessingTimeAware = (*WindowOperator[string, string, string])(nil)
