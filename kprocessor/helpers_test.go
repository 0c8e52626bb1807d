package kprocessor

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

type recordingContext[T any] struct {
	records    []Record[T]
	watermarks []Watermark
	wm         Watermark
	now        time.Time
}

func (c *recordingContext[T]) Emit(_ context.Context, r Record[T]) {
	c.records = append(c.records, r)
}

func (c *recordingContext[T]) EmitWatermark(_ context.Context, wm Watermark) {
	c.watermarks = append(c.watermarks, wm)
}

func (c *recordingContext[T]) CurrentWatermark() Watermark { return c.wm }

func (c *recordingContext[T]) ProcessingTime() time.Time { return c.now }

func (c *recordingContext[T]) Info() TaskInfo {
	return TaskInfo{OperatorName: "test", Parallelism: 1}
}

func (c *recordingContext[T]) Logger() logr.Logger { return logr.Discard() }

func (c *recordingContext[T]) values() []T {
	out := make([]T, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.Value)
	}
	return out
}
