package kprocessor

import (
	"context"
	"time"
)

// OneInputOperator is the unit of work the runtime drives per slot.
//
// The runtime calls Open once, then ProcessElement and ProcessWatermark from
// a single goroutine, and Close exactly once when the input ends, the job
// fails, or it is cancelled. Close must not block teardown.
type OneInputOperator[In, Out any] interface {
	Open(ctx OperatorContext[Out]) error
	ProcessElement(ctx context.Context, record Record[In]) error
	// ProcessWatermark is called when the combined input watermark advances.
	// Operators are responsible for forwarding it with EmitWatermark.
	ProcessWatermark(ctx context.Context, wm Watermark) error
	Close() error
}

// OperatorBuilder creates one operator instance per slot.
type OperatorBuilder[In, Out any] func() OneInputOperator[In, Out]

// ProcessingTimeAware operators receive the runtime's processing-time ticks.
type ProcessingTimeAware interface {
	OnProcessingTime(ctx context.Context, now time.Time) error
}
