package kprocessor

import (
	"context"
	"time"
)

// Collector receives the results of user functions.
type Collector[T any] interface {
	Collect(ctx context.Context, value T)
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc[T any] func(ctx context.Context, value T)

func (f CollectorFunc[T]) Collect(ctx context.Context, value T) {
	f(ctx, value)
}

// TimestampedCollector stamps every collected value with a fixed timestamp
// before emitting it through the operator context.
type TimestampedCollector[T any] struct {
	out       OperatorContext[T]
	timestamp time.Time
	headers   *Headers
}

func NewTimestampedCollector[T any](out OperatorContext[T]) *TimestampedCollector[T] {
	return &TimestampedCollector[T]{out: out}
}

func (c *TimestampedCollector[T]) SetTimestamp(ts time.Time) {
	c.timestamp = ts
}

func (c *TimestampedCollector[T]) Timestamp() time.Time {
	return c.timestamp
}

// SetHeaders attaches headers to subsequently collected values.
func (c *TimestampedCollector[T]) SetHeaders(h *Headers) {
	c.headers = h
}

func (c *TimestampedCollector[T]) Collect(ctx context.Context, value T) {
	c.CollectOn(ctx, "", value)
}

// CollectOn emits value on the named channel.
func (c *TimestampedCollector[T]) CollectOn(ctx context.Context, channel string, value T) {
	c.out.Emit(ctx, Record[T]{
		Value: value,
		Metadata: RecordMetadata{
			Timestamp: c.timestamp,
			Channel:   channel,
			Headers:   c.headers,
		},
	})
}
