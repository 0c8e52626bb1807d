package kwindow

import (
	"fmt"
	"time"

	"github.com/birdayz/kcogroup/kprocessor"
)

// EvictorContext exposes time to evictors.
type EvictorContext interface {
	CurrentWatermark() time.Time
	CurrentProcessingTime() time.Time
}

// Evictor removes elements from a window buffer around a firing. Both
// methods return the elements to keep, in their original order.
type Evictor[T any] interface {
	EvictBefore(elements []kprocessor.Record[T], w Window, ctx EvictorContext) []kprocessor.Record[T]
	EvictAfter(elements []kprocessor.Record[T], w Window, ctx EvictorContext) []kprocessor.Record[T]
}

// CountEvictor keeps at most Max elements, dropping the oldest.
type CountEvictor[T any] struct {
	max   int
	after bool
}

func NewCountEvictor[T any](max int) CountEvictor[T] {
	return CountEvictor[T]{max: max}
}

// AfterFire moves eviction to after the window function ran.
func (e CountEvictor[T]) AfterFire() CountEvictor[T] {
	e.after = true
	return e
}

func (e CountEvictor[T]) EvictBefore(elements []kprocessor.Record[T], _ Window, _ EvictorContext) []kprocessor.Record[T] {
	if e.after {
		return elements
	}
	return e.evict(elements)
}

func (e CountEvictor[T]) EvictAfter(elements []kprocessor.Record[T], _ Window, _ EvictorContext) []kprocessor.Record[T] {
	if !e.after {
		return elements
	}
	return e.evict(elements)
}

func (e CountEvictor[T]) evict(elements []kprocessor.Record[T]) []kprocessor.Record[T] {
	if e.max <= 0 {
		return nil
	}
	if len(elements) <= e.max {
		return elements
	}
	return elements[len(elements)-e.max:]
}

func (e CountEvictor[T]) String() string {
	return fmt.Sprintf("CountEvictor(%d)", e.max)
}

// TimeEvictor keeps elements whose timestamp is within Keep of the newest
// element in the buffer.
type TimeEvictor[T any] struct {
	keep  time.Duration
	after bool
}

func NewTimeEvictor[T any](keep time.Duration) TimeEvictor[T] {
	return TimeEvictor[T]{keep: keep}
}

func (e TimeEvictor[T]) AfterFire() TimeEvictor[T] {
	e.after = true
	return e
}

func (e TimeEvictor[T]) EvictBefore(elements []kprocessor.Record[T], _ Window, _ EvictorContext) []kprocessor.Record[T] {
	if e.after {
		return elements
	}
	return e.evict(elements)
}

func (e TimeEvictor[T]) EvictAfter(elements []kprocessor.Record[T], _ Window, _ EvictorContext) []kprocessor.Record[T] {
	if !e.after {
		return elements
	}
	return e.evict(elements)
}

func (e TimeEvictor[T]) evict(elements []kprocessor.Record[T]) []kprocessor.Record[T] {
	if len(elements) == 0 {
		return elements
	}
	newest := elements[0].Metadata.Timestamp
	for _, r := range elements[1:] {
		if r.Metadata.Timestamp.After(newest) {
			newest = r.Metadata.Timestamp
		}
	}
	cutoff := newest.Add(-e.keep)

	kept := make([]kprocessor.Record[T], 0, len(elements))
	for _, r := range elements {
		if r.Metadata.Timestamp.After(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}

func (e TimeEvictor[T]) String() string {
	return fmt.Sprintf("TimeEvictor(%s)", e.keep)
}
