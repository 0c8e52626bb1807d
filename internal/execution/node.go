package execution

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/birdayz/kcogroup/kdag"
	"github.com/birdayz/kcogroup/kprocessor"
)

// Partitioner returns the partition hash of a value, typically the hash of
// its serialized key.
type Partitioner[T any] func(T) (uint64, error)

// SourceOutput is handed to a source function.
type SourceOutput[T any] interface {
	Emit(ctx context.Context, record kprocessor.Record[T]) error
	EmitWatermark(ctx context.Context, wm kprocessor.Watermark) error
	Logger() logr.Logger
}

// SourceFunc produces the records of a source node. Returning nil ends the
// input; a non-nil error fails the job.
type SourceFunc[T any] func(ctx context.Context, out SourceOutput[T]) error

// runtimeNode is implemented by every builder stored in kdag nodes.
type runtimeNode interface {
	kdag.RuntimeBuilder
	newTask(env taskEnv) task
	partitioner() partitionFunc
}

type sourceNode[T any] struct {
	run SourceFunc[T]
}

// NewSource returns the runtime builder of a source node.
func NewSource[T any](run SourceFunc[T]) kdag.RuntimeBuilder {
	return &sourceNode[T]{run: run}
}

func (n *sourceNode[T]) BuilderKind() kdag.NodeType {
	return kdag.NodeTypeSource
}

func (n *sourceNode[T]) newTask(env taskEnv) task {
	return &sourceTask[T]{env: env, fn: n.run}
}

func (n *sourceNode[T]) partitioner() partitionFunc {
	return nil
}

type operatorNode[In, Out any] struct {
	kind      kdag.NodeType
	build     kprocessor.OperatorBuilder[In, Out]
	partition Partitioner[In]
}

// NewOperator returns the runtime builder of an operator node. partition is
// required for keyed nodes and nil otherwise.
func NewOperator[In, Out any](build kprocessor.OperatorBuilder[In, Out], partition Partitioner[In]) kdag.RuntimeBuilder {
	return &operatorNode[In, Out]{kind: kdag.NodeTypeOperator, build: build, partition: partition}
}

// NewSink returns the runtime builder of a terminal node.
func NewSink[In any](build kprocessor.OperatorBuilder[In, struct{}]) kdag.RuntimeBuilder {
	return &operatorNode[In, struct{}]{kind: kdag.NodeTypeSink, build: build}
}

func (n *operatorNode[In, Out]) BuilderKind() kdag.NodeType {
	return n.kind
}

func (n *operatorNode[In, Out]) newTask(env taskEnv) task {
	return newOperatorTask(env, n.build())
}

func (n *operatorNode[In, Out]) partitioner() partitionFunc {
	if n.partition == nil {
		return nil
	}
	return func(record any) (uint64, error) {
		r, ok := record.(kprocessor.Record[In])
		if !ok {
			return 0, fmt.Errorf("unexpected record type %T", record)
		}
		return n.partition(r.Value)
	}
}
