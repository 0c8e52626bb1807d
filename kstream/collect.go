package kstream

import (
	"context"
	"slices"
	"sync"

	"github.com/birdayz/kcogroup/kprocessor"
)

// Collected holds the records that reached a Collect sink.
type Collected[T any] struct {
	mu      sync.Mutex
	records []kprocessor.Record[T]
}

// Records returns a copy of the collected records in arrival order.
func (c *Collected[T]) Records() []kprocessor.Record[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.records)
}

// Values returns the collected values in arrival order.
func (c *Collected[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.Value)
	}
	return out
}

func (c *Collected[T]) add(r kprocessor.Record[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
}

// Collect terminates s with an in-memory sink. Mostly useful in tests and
// for bounded jobs.
func Collect[T any](s Stream[T], name string) (*Collected[T], error) {
	c := &Collected[T]{}
	err := ForEach(s, name, func(_ context.Context, r kprocessor.Record[T]) error {
		c.add(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
