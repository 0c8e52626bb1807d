// Package kjoin builds windowed joins and co-groups of two streams.
//
// Both inputs are wrapped into Envelopes tagged with their origin, merged
// into one stream and windowed by a single keyed window operator. When a
// window fires its buffer is split by origin again and handed to the user
// function.
//
//	joined, err := kjoin.CoGroup[Order, Payment, string](orders, payments).
//	    Where(kjoin.KeyBy(kserde.StringType, Order.ID)).
//	    EqualTo(kjoin.KeyBy(kserde.StringType, Payment.OrderID)).
//	    Window(kwindow.TumblingEventTimeWindows(time.Minute))
//	...
//	out, err := kjoin.Apply(joined, matchPayment, resultType)
//
// Every step returns a new value; none of them changes the graph until one
// of Apply, ApplyFlat or ApplyCoGroup is called.
package kjoin

import (
	"errors"
	"fmt"
	"time"

	"github.com/birdayz/kcogroup/koperator"
	"github.com/birdayz/kcogroup/kstate"
	"github.com/birdayz/kcogroup/kstream"
	"github.com/birdayz/kcogroup/kwindow"
)

var (
	ErrPrecondition    = errors.New("both key selectors required")
	ErrKeyTypeMismatch = errors.New("key types of join inputs differ")
	ErrNilFunction     = errors.New("join function is nil")
	ErrBuilderConsumed = errors.New("windowed join already applied")
)

// Unspecified is a co-group of two streams without key selectors.
type Unspecified[T1, T2 any, K comparable] struct {
	left  kstream.Stream[T1]
	right kstream.Stream[T2]
}

// CoGroup starts a join or co-group of left and right on keys of type K.
func CoGroup[T1, T2 any, K comparable](left kstream.Stream[T1], right kstream.Stream[T2]) Unspecified[T1, T2, K] {
	return Unspecified[T1, T2, K]{left: left, right: right}
}

// Where sets the key selector of the left input.
func (u Unspecified[T1, T2, K]) Where(sel KeySelector[T1, K]) WithKey[T1, T2, K] {
	return WithKey[T1, T2, K]{left: u.left, right: u.right, leftKey: sel}
}

// EqualTo sets the key selector of the right input.
func (u Unspecified[T1, T2, K]) EqualTo(sel KeySelector[T2, K]) WithKey[T1, T2, K] {
	return WithKey[T1, T2, K]{left: u.left, right: u.right, rightKey: sel}
}

// WithKey is a co-group with at least one key selector.
type WithKey[T1, T2 any, K comparable] struct {
	left     kstream.Stream[T1]
	right    kstream.Stream[T2]
	leftKey  KeySelector[T1, K]
	rightKey KeySelector[T2, K]
}

// Where replaces the key selector of the left input.
func (w WithKey[T1, T2, K]) Where(sel KeySelector[T1, K]) (WithKey[T1, T2, K], error) {
	if w.rightKey.valid() && !sel.KeyType().Compatible(w.rightKey.KeyType()) {
		return w, fmt.Errorf("%w: left %s, right %s", ErrKeyTypeMismatch, sel.KeyType(), w.rightKey.KeyType())
	}
	w.leftKey = sel
	return w, nil
}

// EqualTo replaces the key selector of the right input.
func (w WithKey[T1, T2, K]) EqualTo(sel KeySelector[T2, K]) (WithKey[T1, T2, K], error) {
	if w.leftKey.valid() && !sel.KeyType().Compatible(w.leftKey.KeyType()) {
		return w, fmt.Errorf("%w: left %s, right %s", ErrKeyTypeMismatch, w.leftKey.KeyType(), sel.KeyType())
	}
	w.rightKey = sel
	return w, nil
}

// Window assigns both inputs to the windows of assigner. The trigger
// defaults to the assigner's default trigger.
func (w WithKey[T1, T2, K]) Window(assigner kwindow.Assigner) (WithWindow[T1, T2, K], error) {
	if !w.leftKey.valid() || !w.rightKey.valid() {
		return WithWindow[T1, T2, K]{}, ErrPrecondition
	}
	if assigner == nil {
		return WithWindow[T1, T2, K]{}, errors.New("window assigner is nil")
	}
	if err := assigner.Validate(); err != nil {
		return WithWindow[T1, T2, K]{}, err
	}
	if w.left.Env() != w.right.Env() {
		return WithWindow[T1, T2, K]{}, kstream.ErrForeignStream
	}
	return WithWindow[T1, T2, K]{
		keys:     w,
		assigner: assigner,
		consumed: new(bool),
	}, nil
}

// CountWindow fires and purges every n elements per key, counting both
// inputs together.
func (w WithKey[T1, T2, K]) CountWindow(n int64) (WithWindow[T1, T2, K], error) {
	if n <= 0 {
		return WithWindow[T1, T2, K]{}, fmt.Errorf("%w: count %d", kwindow.ErrInvalidWindowSize, n)
	}
	ww, err := w.Window(kwindow.GlobalWindows{})
	if err != nil {
		return ww, err
	}
	return ww.Trigger(kwindow.PurgingTrigger(kwindow.CountTrigger(n))), nil
}

// SlidingCountWindow fires every slide elements per key over the last size
// elements.
func (w WithKey[T1, T2, K]) SlidingCountWindow(size, slide int64) (WithWindow[T1, T2, K], error) {
	if size <= 0 || slide <= 0 {
		return WithWindow[T1, T2, K]{}, fmt.Errorf("%w: size %d, slide %d", kwindow.ErrInvalidWindowSize, size, slide)
	}
	ww, err := w.Window(kwindow.GlobalWindows{})
	if err != nil {
		return ww, err
	}
	return ww.
		Trigger(kwindow.CountTrigger(slide)).
		Evictor(kwindow.NewCountEvictor[Envelope[K, T1, T2]](int(size))), nil
}

// WithWindow is a fully keyed and windowed co-group ready to be applied.
// A value can be applied once; every setter returns a fresh value.
type WithWindow[T1, T2 any, K comparable] struct {
	keys            WithKey[T1, T2, K]
	assigner        kwindow.Assigner
	trigger         kwindow.Trigger
	evictor         kwindow.Evictor[Envelope[K, T1, T2]]
	allowedLateness time.Duration
	store           kstate.StoreBuilder[K, Envelope[K, T1, T2]]
	name            string
	consumed        *bool
}

func (w WithWindow[T1, T2, K]) Trigger(t kwindow.Trigger) WithWindow[T1, T2, K] {
	w.trigger = t
	return w.fresh()
}

func (w WithWindow[T1, T2, K]) Evictor(e kwindow.Evictor[Envelope[K, T1, T2]]) WithWindow[T1, T2, K] {
	w.evictor = e
	return w.fresh()
}

// AllowedLateness keeps event-time windows for d after they fired. Late
// elements within d fire the window again. d must not be negative.
func (w WithWindow[T1, T2, K]) AllowedLateness(d time.Duration) (WithWindow[T1, T2, K], error) {
	if d < 0 {
		return w, fmt.Errorf("%w: allowed lateness %s is negative", koperator.ErrInvalidConfig, d)
	}
	w.allowedLateness = d
	return w.fresh(), nil
}

// Store sets where window buffers live; defaults to memory.
func (w WithWindow[T1, T2, K]) Store(sb kstate.StoreBuilder[K, Envelope[K, T1, T2]]) WithWindow[T1, T2, K] {
	w.store = sb
	return w.fresh()
}

// Named sets the name of the window operator. Helper nodes derive their
// names from it.
func (w WithWindow[T1, T2, K]) Named(name string) WithWindow[T1, T2, K] {
	w.name = name
	return w.fresh()
}

func (w WithWindow[T1, T2, K]) fresh() WithWindow[T1, T2, K] {
	w.consumed = new(bool)
	return w
}

func (w WithWindow[T1, T2, K]) operatorName() string {
	if w.name != "" {
		return w.name
	}
	return "cogroup-" + w.keys.left.Name() + "-" + w.keys.right.Name()
}
