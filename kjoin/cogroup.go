package kjoin

import (
	"context"
	"fmt"

	"github.com/birdayz/kcogroup/kdag"
	"github.com/birdayz/kcogroup/kmetrics"
	"github.com/birdayz/kcogroup/koperator"
	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kserde"
	"github.com/birdayz/kcogroup/kstream"
	"github.com/birdayz/kcogroup/kwindow"
)

// JoinFunction is called once per (left, right) pair of a fired window.
type JoinFunction[T1, T2, OUT any] func(left T1, right T2) (OUT, error)

// FlatJoinFunction is called once per (left, right) pair and may emit any
// number of results.
type FlatJoinFunction[T1, T2, OUT any] func(ctx context.Context, left T1, right T2, out kprocessor.Collector[OUT]) error

// CoGroupFunction receives the complete left and right groups of a fired
// window, each in arrival order. Either group may be empty.
type CoGroupFunction[T1, T2, OUT any] func(ctx context.Context, left []T1, right []T2, out kprocessor.Collector[OUT]) error

// Apply emits fn(l, r) for every pair of left and right elements sharing key
// and window. Windows where one side is empty produce nothing.
func Apply[T1, T2 any, K comparable, OUT any](w WithWindow[T1, T2, K], fn JoinFunction[T1, T2, OUT], resultType kserde.TypeInfo[OUT]) (kstream.Stream[OUT], error) {
	if fn == nil {
		return kstream.Stream[OUT]{}, ErrNilFunction
	}
	return ApplyFlat(w, func(ctx context.Context, l T1, r T2, out kprocessor.Collector[OUT]) error {
		v, err := fn(l, r)
		if err != nil {
			return err
		}
		out.Collect(ctx, v)
		return nil
	}, resultType)
}

// ApplyFlat is Apply for functions emitting zero or more results per pair.
// Pairs are visited row-major: all right elements for the first left
// element, then for the second, and so on. The first error aborts the
// window.
func ApplyFlat[T1, T2 any, K comparable, OUT any](w WithWindow[T1, T2, K], fn FlatJoinFunction[T1, T2, OUT], resultType kserde.TypeInfo[OUT]) (kstream.Stream[OUT], error) {
	if fn == nil {
		return kstream.Stream[OUT]{}, ErrNilFunction
	}
	pairs := kmetrics.JoinPairs.WithLabelValues(w.operatorName())
	return apply(w, func(ctx context.Context, left []T1, right []T2, out kprocessor.Collector[OUT]) error {
		for _, l := range left {
			for _, r := range right {
				pairs.Inc()
				if err := fn(ctx, l, r, out); err != nil {
					return err
				}
			}
		}
		return nil
	}, resultType)
}

// ApplyCoGroup calls fn once per fired window with both groups.
func ApplyCoGroup[T1, T2 any, K comparable, OUT any](w WithWindow[T1, T2, K], fn CoGroupFunction[T1, T2, OUT], resultType kserde.TypeInfo[OUT]) (kstream.Stream[OUT], error) {
	if fn == nil {
		return kstream.Stream[OUT]{}, ErrNilFunction
	}
	return apply(w, fn, resultType)
}

func apply[T1, T2 any, K comparable, OUT any](w WithWindow[T1, T2, K], fn CoGroupFunction[T1, T2, OUT], resultType kserde.TypeInfo[OUT]) (kstream.Stream[OUT], error) {
	if w.consumed == nil {
		return kstream.Stream[OUT]{}, ErrPrecondition
	}
	if *w.consumed {
		return kstream.Stream[OUT]{}, ErrBuilderConsumed
	}

	// Everything that can be rejected is checked before the first node is
	// added, so a failed apply leaves the graph untouched.
	name := w.operatorName()
	build, err := koperator.New(koperator.Config[K, Envelope[K, T1, T2]]{
		Name:            name,
		KeySelector:     envelopeKey[K, T1, T2],
		Assigner:        w.assigner,
		Trigger:         w.trigger,
		Evictor:         w.evictor,
		AllowedLateness: w.allowedLateness,
		Store:           w.store,
	}, coGroupWindowFunction[K](fn))
	if err != nil {
		return kstream.Stream[OUT]{}, fmt.Errorf("cogroup %s: %w", name, err)
	}
	env := w.keys.left.Env()
	for _, node := range []string{name + "-left", name + "-right", name + "-union", name} {
		if env.HasNode(node) {
			return kstream.Stream[OUT]{}, fmt.Errorf("cogroup %s: %w: %s", name, kdag.ErrNodeAlreadyExists, node)
		}
	}

	merged, err := Merge(w.keys.left, w.keys.right, w.keys.leftKey, w.keys.rightKey, name)
	if err != nil {
		return kstream.Stream[OUT]{}, fmt.Errorf("cogroup %s: %w", name, err)
	}
	out, err := kstream.KeyedTransform(merged, name, envelopeKey[K, T1, T2], w.keys.leftKey.KeyType(), build)
	if err != nil {
		return kstream.Stream[OUT]{}, fmt.Errorf("cogroup %s: %w", name, err)
	}
	*w.consumed = true

	if !resultType.IsZero() {
		out = out.Returns(resultType)
	}
	return out, nil
}

func envelopeKey[K comparable, T1, T2 any](e Envelope[K, T1, T2]) (K, error) {
	return e.key, nil
}

// coGroupWindowFunction splits a window buffer by origin, keeping arrival
// order within each side.
func coGroupWindowFunction[K comparable, T1, T2, OUT any](fn CoGroupFunction[T1, T2, OUT]) koperator.WindowFunction[K, Envelope[K, T1, T2], OUT] {
	return func(ctx context.Context, _ K, _ kwindow.Window, elements []kprocessor.Record[Envelope[K, T1, T2]], out kprocessor.Collector[OUT]) error {
		left, right := split(elements)
		return fn(ctx, left, right, out)
	}
}

func split[K comparable, T1, T2 any](elements []kprocessor.Record[Envelope[K, T1, T2]]) ([]T1, []T2) {
	var (
		left  []T1
		right []T2
	)
	for _, rec := range elements {
		switch p := rec.Value.payload; p.origin {
		case Left:
			left = append(left, p.left)
		case Right:
			right = append(right, p.right)
		}
	}
	return left, right
}
