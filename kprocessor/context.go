package kprocessor

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// OperatorContext is handed to an operator on Open.
type OperatorContext[Out any] interface {
	// Emit sends a record to all downstream nodes. Routing errors are
	// collected and returned by the runtime once the current call returns.
	Emit(ctx context.Context, record Record[Out])
	EmitWatermark(ctx context.Context, wm Watermark)
	CurrentWatermark() Watermark
	ProcessingTime() time.Time
	Info() TaskInfo
	Logger() logr.Logger
}

// TaskInfo describes the slot an operator instance runs in.
type TaskInfo struct {
	OperatorName  string
	Slot          int
	Parallelism   int
	JobParameters map[string]string
}
