package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/zoobzio/clockz"
	"go.uber.org/multierr"

	"github.com/birdayz/kcogroup/kprocessor"
)

// taskEnv is everything a node instance needs from the runner.
type taskEnv struct {
	name        string
	slot        int
	parallelism int

	inbox     <-chan event
	producers int
	router    *router

	clock         clockz.Clock
	tickInterval  time.Duration
	jobParameters map[string]string
	interceptor   kprocessor.Interceptor
	log           logr.Logger
}

type task interface {
	run(ctx context.Context) error
}

type operatorTask[In, Out any] struct {
	env     taskEnv
	op      kprocessor.OneInputOperator[In, Out]
	octx    *operatorContext[Out]
	inputs  *inputTracker
	closed  bool
	timerOp kprocessor.ProcessingTimeAware
}

func newOperatorTask[In, Out any](env taskEnv, op kprocessor.OneInputOperator[In, Out]) *operatorTask[In, Out] {
	inputs := newInputTracker(env.producers)
	t := &operatorTask[In, Out]{
		env:    env,
		op:     op,
		inputs: inputs,
		octx: &operatorContext[Out]{
			env:    env,
			inputs: inputs,
		},
	}
	t.timerOp, _ = op.(kprocessor.ProcessingTimeAware)
	return t
}

func (t *operatorTask[In, Out]) run(ctx context.Context) error {
	if err := t.op.Open(t.octx); err != nil {
		return newProcessingError(err, StageOpen, t.env.name, t.env.slot)
	}
	defer t.close()

	var tick <-chan time.Time
	if t.timerOp != nil && t.env.tickInterval > 0 {
		ticker := t.env.clock.NewTicker(t.env.tickInterval)
		defer ticker.Stop()
		tick = ticker.C()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick:
			if err := t.onProcessingTime(ctx, now); err != nil {
				return err
			}
		case ev := <-t.env.inbox:
			if err := t.handle(ctx, ev); err != nil {
				return err
			}
			if t.inputs.done() {
				return t.finish(ctx)
			}
		}
	}
}

func (t *operatorTask[In, Out]) handle(ctx context.Context, ev event) error {
	switch ev.kind {
	case eventElement:
		return t.processElement(ctx, ev.record)
	case eventWatermark:
		if wm, ok := t.inputs.advance(ev.producer, ev.watermark); ok {
			return t.processWatermark(ctx, wm)
		}
	case eventEnd:
		if wm, ok, _ := t.inputs.finish(ev.producer); ok {
			return t.processWatermark(ctx, wm)
		}
	}
	return nil
}

func (t *operatorTask[In, Out]) processElement(ctx context.Context, boxed any) error {
	record, ok := boxed.(kprocessor.Record[In])
	if !ok {
		return newProcessingError(fmt.Errorf("unexpected record type %T", boxed), StageProcessing, t.env.name, t.env.slot)
	}

	handler := func(ctx context.Context) error {
		return t.op.ProcessElement(ctx, record)
	}
	var err error
	if t.env.interceptor != nil {
		info := kprocessor.ElementInfo{Operator: t.env.name, Slot: t.env.slot, Metadata: record.Metadata}
		err = t.env.interceptor(ctx, info, handler)
	} else {
		err = handler(ctx)
	}
	return t.check(err, StageProcessing)
}

func (t *operatorTask[In, Out]) processWatermark(ctx context.Context, wm kprocessor.Watermark) error {
	return t.check(t.op.ProcessWatermark(ctx, wm), StageWatermark)
}

func (t *operatorTask[In, Out]) onProcessingTime(ctx context.Context, now time.Time) error {
	return t.check(t.timerOp.OnProcessingTime(ctx, now), StageTimer)
}

// check combines a call's error with the forward errors it caused.
func (t *operatorTask[In, Out]) check(err error, stage ProcessingStage) error {
	if err != nil {
		return newProcessingError(err, stage, t.env.name, t.env.slot)
	}
	if errs := t.octx.drainErrors(); len(errs) > 0 {
		return newProcessingError(multierr.Combine(errs...), StageForward, t.env.name, t.env.slot)
	}
	return nil
}

// finish runs once all producers ended: the combined watermark is already
// at max, so the operator is closed before end-of-input moves on.
func (t *operatorTask[In, Out]) finish(ctx context.Context) error {
	t.close()
	return t.env.router.broadcastEnd(ctx)
}

func (t *operatorTask[In, Out]) close() {
	if t.closed {
		return
	}
	t.closed = true
	if err := t.op.Close(); err != nil {
		t.env.log.Error(err, "Failed to close operator")
	}
}

// operatorContext implements kprocessor.OperatorContext on top of a router.
//
// Not safe for concurrent use; each instance is driven by one goroutine.
type operatorContext[Out any] struct {
	env      taskEnv
	inputs   *inputTracker
	emitErrs []error
}

func (c *operatorContext[Out]) Emit(ctx context.Context, record kprocessor.Record[Out]) {
	if err := c.env.router.sendRecord(ctx, record); err != nil {
		c.emitErrs = append(c.emitErrs, err)
	}
}

func (c *operatorContext[Out]) EmitWatermark(ctx context.Context, wm kprocessor.Watermark) {
	if err := c.env.router.broadcastWatermark(ctx, wm); err != nil {
		c.emitErrs = append(c.emitErrs, err)
	}
}

func (c *operatorContext[Out]) CurrentWatermark() kprocessor.Watermark {
	return c.inputs.watermark()
}

func (c *operatorContext[Out]) ProcessingTime() time.Time {
	return c.env.clock.Now()
}

func (c *operatorContext[Out]) Info() kprocessor.TaskInfo {
	return kprocessor.TaskInfo{
		OperatorName:  c.env.name,
		Slot:          c.env.slot,
		Parallelism:   c.env.parallelism,
		JobParameters: c.env.jobParameters,
	}
}

func (c *operatorContext[Out]) Logger() logr.Logger {
	return c.env.log
}

func (c *operatorContext[Out]) drainErrors() []error {
	if len(c.emitErrs) == 0 {
		return nil
	}
	errs := make([]error, len(c.emitErrs))
	copy(errs, c.emitErrs)
	c.emitErrs = c.emitErrs[:0]
	return errs
}

type sourceTask[T any] struct {
	env taskEnv
	fn  SourceFunc[T]
}

func (t *sourceTask[T]) run(ctx context.Context) error {
	if err := t.fn(ctx, &sourceOutput[T]{env: t.env}); err != nil {
		return newProcessingError(err, StageSource, t.env.name, t.env.slot)
	}
	t.env.log.V(1).Info("Source exhausted")
	return t.env.router.broadcastEnd(ctx)
}

type sourceOutput[T any] struct {
	env taskEnv
}

func (o *sourceOutput[T]) Emit(ctx context.Context, record kprocessor.Record[T]) error {
	return o.env.router.sendRecord(ctx, record)
}

func (o *sourceOutput[T]) EmitWatermark(ctx context.Context, wm kprocessor.Watermark) error {
	return o.env.router.broadcastWatermark(ctx, wm)
}

func (o *sourceOutput[T]) Logger() logr.Logger {
	return o.env.log
}
