package kprocessor

import (
	"context"
)

// Map transforms each value, keeping the record metadata.
func Map[In, Out any](mapFunc func(v In) (Out, error)) OperatorBuilder[In, Out] {
	return NewFunc(func(octx OperatorContext[Out], ctx context.Context, r Record[In]) error {
		out, err := mapFunc(r.Value)
		if err != nil {
			return err
		}
		octx.Emit(ctx, WithValue(r, out))
		return nil
	})
}

// FlatMap transforms each value into zero or more values sharing the
// input's metadata.
func FlatMap[In, Out any](flatMapFunc func(v In) ([]Out, error)) OperatorBuilder[In, Out] {
	return NewFunc(func(octx OperatorContext[Out], ctx context.Context, r Record[In]) error {
		outs, err := flatMapFunc(r.Value)
		if err != nil {
			return err
		}
		for _, out := range outs {
			octx.Emit(ctx, WithValue(r, out))
		}
		return nil
	})
}

// Filter forwards records matching predicate.
func Filter[T any](predicate func(r Record[T]) bool) OperatorBuilder[T, T] {
	return NewFunc(func(octx OperatorContext[T], ctx context.Context, r Record[T]) error {
		if predicate(r) {
			octx.Emit(ctx, r)
		}
		return nil
	})
}

// FilterChannel forwards records emitted on channel.
func FilterChannel[T any](channel string) OperatorBuilder[T, T] {
	return Filter(func(r Record[T]) bool {
		return r.Metadata.Channel == channel
	})
}

// Passthrough forwards every record unchanged.
func Passthrough[T any]() OperatorBuilder[T, T] {
	return NewFunc(func(octx OperatorContext[T], ctx context.Context, r Record[T]) error {
		octx.Emit(ctx, r)
		return nil
	})
}

// ForEach invokes fn for each record and emits nothing.
func ForEach[T any](fn func(ctx context.Context, r Record[T]) error) OperatorBuilder[T, T] {
	return NewFunc(func(_ OperatorContext[T], ctx context.Context, r Record[T]) error {
		return fn(ctx, r)
	})
}
