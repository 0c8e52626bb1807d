// Package kdag provides the build-time graph of a streaming job.
//
// # Overview
//
// kstream registers typed nodes; kdag stores them type-erased together with
// their reflect.Type signatures and validates the structure before anything
// runs:
//
//   - every edge connects a parent's output type to an identical child input type
//   - no cycles, no nodes unreachable from a source
//   - sinks have no children
//   - only operators may be keyed
//
// A built DAG exposes a deterministic topological order that the runtime
// uses to wire node instances parents-first.
//
// # Basic Usage
//
//	b := kdag.NewBuilder()
//	_ = b.AddSourceNode("numbers", reflect.TypeFor[int](), sourceBuilder)
//	_ = b.AddOperatorNode(kdag.OperatorSpec{
//	    Name:       "window",
//	    Parents:    []string{"numbers"},
//	    InputType:  reflect.TypeFor[int](),
//	    OutputType: reflect.TypeFor[string](),
//	    Keyed:      true,
//	    Builder:    windowBuilder,
//	})
//	dag, err := b.Build()
//
// # Parallelism
//
// Sources and sinks always run a single instance. Operators run
// Node.Parallelism instances; zero means one instance for unkeyed operators
// and the environment's parallelism for keyed ones.
//
// # Thread Safety
//
// Builder is not safe for concurrent use. A built DAG is immutable.
package kdag
