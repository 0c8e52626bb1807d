package kprocessor

import "context"

// FuncOption configures optional behavior for NewFunc operators.
type FuncOption[In, Out any] func(*funcOperator[In, Out])

// WithOpen adds custom initialization logic to a NewFunc operator.
func WithOpen[In, Out any](fn func(ctx OperatorContext[Out]) error) FuncOption[In, Out] {
	return func(p *funcOperator[In, Out]) {
		p.openFn = fn
	}
}

// WithClose adds custom cleanup logic to a NewFunc operator.
func WithClose[In, Out any](fn func() error) FuncOption[In, Out] {
	return func(p *funcOperator[In, Out]) {
		p.closeFn = fn
	}
}

// NewFunc creates an OperatorBuilder from a per-element function.
// Watermarks are forwarded unchanged.
//
// Example:
//
//	kprocessor.NewFunc(func(octx kprocessor.OperatorContext[int], ctx context.Context, r kprocessor.Record[string]) error {
//	    octx.Emit(ctx, kprocessor.WithValue(r, len(r.Value)))
//	    return nil
//	})
func NewFunc[In, Out any](
	processFn func(octx OperatorContext[Out], ctx context.Context, record Record[In]) error,
	opts ...FuncOption[In, Out],
) OperatorBuilder[In, Out] {
	return func() OneInputOperator[In, Out] {
		p := &funcOperator[In, Out]{
			processFn: processFn,
		}
		for _, opt := range opts {
			opt(p)
		}
		return p
	}
}

type funcOperator[In, Out any] struct {
	octx      OperatorContext[Out]
	processFn func(OperatorContext[Out], context.Context, Record[In]) error
	openFn    func(OperatorContext[Out]) error
	closeFn   func() error
}

func (p *funcOperator[In, Out]) Open(octx OperatorContext[Out]) error {
	p.octx = octx
	if p.openFn != nil {
		return p.openFn(octx)
	}
	return nil
}

func (p *funcOperator[In, Out]) ProcessElement(ctx context.Context, record Record[In]) error {
	return p.processFn(p.octx, ctx, record)
}

func (p *funcOperator[In, Out]) ProcessWatermark(ctx context.Context, wm Watermark) error {
	p.octx.EmitWatermark(ctx, wm)
	return nil
}

func (p *funcOperator[In, Out]) Close() error {
	if p.closeFn != nil {
		return p.closeFn()
	}
	return nil
}
