package kstream

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/birdayz/kcogroup/internal/execution"
	"github.com/birdayz/kcogroup/kdag"
	"github.com/birdayz/kcogroup/kprocessor"
)

// SourceOption configures watermark generation of the built-in sources.
type SourceOption func(*sourceConfig)

type sourceConfig struct {
	outOfOrderness time.Duration
	noWatermarks   bool
}

// WithOutOfOrderness lets records arrive up to d behind the highest
// timestamp seen so far without being late.
var WithOutOfOrderness = func(d time.Duration) SourceOption {
	return func(c *sourceConfig) {
		c.outOfOrderness = d
	}
}

// WithoutWatermarks disables watermark emission. Event-time windows then
// only fire once the source is exhausted.
var WithoutWatermarks = func() SourceOption {
	return func(c *sourceConfig) {
		c.noWatermarks = true
	}
}

// watermarker emits bounded out-of-orderness watermarks: the highest
// timestamp seen minus the allowed delay minus one nanosecond.
type watermarker struct {
	cfg     sourceConfig
	maxSeen int64
	emitted int64
}

func newWatermarker(opts []SourceOption) *watermarker {
	w := &watermarker{maxSeen: math.MinInt64, emitted: math.MinInt64}
	for _, opt := range opts {
		opt(&w.cfg)
	}
	return w
}

func (w *watermarker) observe(ts time.Time) (kprocessor.Watermark, bool) {
	if w.cfg.noWatermarks {
		return kprocessor.Watermark{}, false
	}
	w.maxSeen = max(w.maxSeen, ts.UnixNano())
	next := w.maxSeen - int64(w.cfg.outOfOrderness) - 1
	if next <= w.emitted || next > w.maxSeen {
		return kprocessor.Watermark{}, false
	}
	w.emitted = next
	return kprocessor.Watermark{Time: time.Unix(0, next)}, true
}

func emitWithWatermark[T any](ctx context.Context, out execution.SourceOutput[T], wm *watermarker, r kprocessor.Record[T]) error {
	if err := out.Emit(ctx, r); err != nil {
		return err
	}
	if next, ok := wm.observe(r.Metadata.Timestamp); ok {
		return out.EmitWatermark(ctx, next)
	}
	return nil
}

// FromSource adds a source node running fn.
func FromSource[T any](env *Env, name string, fn execution.SourceFunc[T]) (Stream[T], error) {
	if err := env.checkOpen(); err != nil {
		return Stream[T]{}, err
	}
	if fn == nil {
		return Stream[T]{}, fmt.Errorf("source %s: source function is nil", name)
	}
	if err := env.builder.AddSourceNode(name, typeOf[T](), execution.NewSource(fn)); err != nil {
		return Stream[T]{}, err
	}
	return Stream[T]{env: env, node: kdag.NodeID(name)}, nil
}

// FromRecords emits records in order and then ends.
func FromRecords[T any](env *Env, name string, records []kprocessor.Record[T], opts ...SourceOption) (Stream[T], error) {
	return FromSource(env, name, func(ctx context.Context, out execution.SourceOutput[T]) error {
		wm := newWatermarker(opts)
		for _, r := range records {
			if r.Metadata.Source == "" {
				r.Metadata.Source = name
			}
			if err := emitWithWatermark(ctx, out, wm, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// FromChannel emits records received on ch until it is closed.
func FromChannel[T any](env *Env, name string, ch <-chan kprocessor.Record[T], opts ...SourceOption) (Stream[T], error) {
	return FromSource(env, name, func(ctx context.Context, out execution.SourceOutput[T]) error {
		wm := newWatermarker(opts)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case r, ok := <-ch:
				if !ok {
					return nil
				}
				if err := emitWithWatermark(ctx, out, wm, r); err != nil {
					return err
				}
			}
		}
	})
}
