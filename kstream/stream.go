package kstream

import (
	"context"
	"fmt"
	"reflect"

	"github.com/birdayz/kcogroup/internal/execution"
	"github.com/birdayz/kcogroup/kdag"
	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kserde"
)

// Stream is a handle on the output of one graph node. Streams are values;
// deriving a stream never changes the one it was derived from.
type Stream[T any] struct {
	env      *Env
	node     kdag.NodeID
	typeInfo kserde.TypeInfo[T]
}

func (s Stream[T]) Env() *Env {
	return s.env
}

// Name is the ID of the node producing the stream.
func (s Stream[T]) Name() string {
	return string(s.node)
}

// TypeInfo returns the descriptor attached with Returns, if any.
func (s Stream[T]) TypeInfo() kserde.TypeInfo[T] {
	return s.typeInfo
}

// Returns attaches a descriptor to the values of the stream. Sinks that
// serialize values require one.
func (s Stream[T]) Returns(ti kserde.TypeInfo[T]) Stream[T] {
	if node, ok := s.env.builder.GetNode(s.node); ok {
		node.OutputTypeName = ti.Name()
	}
	s.typeInfo = ti
	return s
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Transform appends an unkeyed operator. It runs as a single instance.
func Transform[In, Out any](s Stream[In], name string, build kprocessor.OperatorBuilder[In, Out]) (Stream[Out], error) {
	return addOperator(s.env, name, []Stream[In]{s}, build, nil)
}

// KeyedTransform appends an operator whose input is partitioned by key: all
// records with equal serialized keys are processed by the same instance.
func KeyedTransform[In, Out any, K comparable](
	s Stream[In],
	name string,
	key func(In) (K, error),
	keyType kserde.TypeInfo[K],
	build kprocessor.OperatorBuilder[In, Out],
) (Stream[Out], error) {
	if key == nil {
		return Stream[Out]{}, fmt.Errorf("keyed operator %s: key selector is nil", name)
	}
	if keyType.Serde().Serializer == nil {
		return Stream[Out]{}, fmt.Errorf("keyed operator %s: %w", name, kserde.ErrNoSerde)
	}

	partition := func(v In) (uint64, error) {
		k, err := key(v)
		if err != nil {
			return 0, err
		}
		return keyType.Hash(k)
	}
	return addOperator(s.env, name, []Stream[In]{s}, build, partition)
}

// Map transforms every value, keeping its metadata.
func Map[In, Out any](s Stream[In], name string, fn func(In) (Out, error)) (Stream[Out], error) {
	return Transform(s, name, kprocessor.Map(fn))
}

// Filter keeps records matching predicate.
func Filter[T any](s Stream[T], name string, predicate func(kprocessor.Record[T]) bool) (Stream[T], error) {
	out, err := Transform(s, name, kprocessor.Filter(predicate))
	out.typeInfo = s.typeInfo
	return out, err
}

// SelectChannel keeps the records emitted on channel, e.g. one declared
// output stream of an element adapter.
func SelectChannel[T any](s Stream[T], name, channel string) (Stream[T], error) {
	out, err := Transform(s, name, kprocessor.FilterChannel[T](channel))
	out.typeInfo = s.typeInfo
	return out, err
}

// Union merges streams of the same type. The order of records of each input
// is preserved; how inputs interleave is not specified.
func Union[T any](name string, first Stream[T], rest ...Stream[T]) (Stream[T], error) {
	inputs := append([]Stream[T]{first}, rest...)
	out, err := addOperator(first.env, name, inputs, kprocessor.Passthrough[T](), nil)
	out.typeInfo = first.typeInfo
	return out, err
}

func addOperator[In, Out any](
	env *Env,
	name string,
	inputs []Stream[In],
	build kprocessor.OperatorBuilder[In, Out],
	partition execution.Partitioner[In],
) (Stream[Out], error) {
	if env == nil {
		return Stream[Out]{}, fmt.Errorf("operator %s: stream has no environment", name)
	}
	if err := env.checkOpen(); err != nil {
		return Stream[Out]{}, err
	}

	parents := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if in.env != env {
			return Stream[Out]{}, fmt.Errorf("operator %s: input %s: %w", name, in.node, ErrForeignStream)
		}
		parents = append(parents, string(in.node))
	}

	err := env.builder.AddOperatorNode(kdag.OperatorSpec{
		Name:       name,
		Parents:    parents,
		InputType:  typeOf[In](),
		OutputType: typeOf[Out](),
		Keyed:      partition != nil,
		Builder:    execution.NewOperator(build, partition),
	})
	if err != nil {
		return Stream[Out]{}, err
	}
	return Stream[Out]{env: env, node: kdag.NodeID(name)}, nil
}

// Sink terminates s with an operator producing no output.
func Sink[T any](s Stream[T], name string, build kprocessor.OperatorBuilder[T, struct{}]) error {
	if s.env == nil {
		return fmt.Errorf("sink %s: stream has no environment", name)
	}
	if err := s.env.checkOpen(); err != nil {
		return err
	}
	return s.env.builder.AddSinkNode(name, string(s.node), typeOf[T](), execution.NewSink(build))
}

// ForEach terminates s by calling fn for every record.
func ForEach[T any](s Stream[T], name string, fn func(ctx context.Context, r kprocessor.Record[T]) error) error {
	return Sink(s, name, kprocessor.NewFunc(func(_ kprocessor.OperatorContext[struct{}], ctx context.Context, r kprocessor.Record[T]) error {
		return fn(ctx, r)
	}))
}
