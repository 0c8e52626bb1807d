package kdag

import (
	"errors"
	"fmt"
	"reflect"
)

// Builder constructs a processing DAG.
//
// Builder is NOT safe for concurrent use. The resulting DAG is immutable.
//
// Typed registration lives in kstream, which creates the runtime builders;
// this package only provides the structural operations.
type Builder struct {
	graph *Graph
}

func NewBuilder() *Builder {
	return &Builder{
		graph: NewGraph(),
	}
}

// Build validates the graph and computes the execution order.
func (b *Builder) Build() (*DAG, error) {
	if err := b.graph.Validate(); err != nil {
		return nil, err
	}

	order, err := b.graph.topologicalSort()
	if err != nil {
		return nil, err
	}

	return &DAG{
		graph: b.graph,
		order: order,
	}, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *DAG {
	dag, err := b.Build()
	if err != nil {
		panic(err)
	}
	return dag
}

func (b *Builder) GetGraph() *Graph {
	return b.graph
}

func (b *Builder) GetNode(id NodeID) (*Node, bool) {
	node, ok := b.graph.Nodes[id]
	return node, ok
}

// AddSourceNode adds a node without inputs.
func (b *Builder) AddSourceNode(name string, outType reflect.Type, builder RuntimeBuilder) error {
	return b.graph.AddNode(&Node{
		ID:             NodeID(name),
		Type:           NodeTypeSource,
		OutputType:     outType,
		Parallelism:    1,
		RuntimeBuilder: builder,
	})
}

// OperatorSpec describes an operator node.
type OperatorSpec struct {
	Name           string
	Parents        []string
	InputType      reflect.Type
	OutputType     reflect.Type
	OutputTypeName string
	Keyed          bool
	Parallelism    int
	Builder        RuntimeBuilder
}

// AddOperatorNode adds an operator reading from all of spec.Parents. The
// node is only added if every edge type-checks.
func (b *Builder) AddOperatorNode(spec OperatorSpec) error {
	if len(spec.Parents) == 0 {
		return fmt.Errorf("%w: operator %q has no parents", ErrInvalidTopology, spec.Name)
	}
	node := &Node{
		ID:             NodeID(spec.Name),
		Type:           NodeTypeOperator,
		InputType:      spec.InputType,
		OutputType:     spec.OutputType,
		OutputTypeName: spec.OutputTypeName,
		Keyed:          spec.Keyed,
		Parallelism:    spec.Parallelism,
		RuntimeBuilder: spec.Builder,
	}
	return b.addWithParents(node, spec.Parents)
}

// AddSinkNode adds a terminal node.
func (b *Builder) AddSinkNode(name, parent string, inType reflect.Type, builder RuntimeBuilder) error {
	node := &Node{
		ID:             NodeID(name),
		Type:           NodeTypeSink,
		InputType:      inType,
		Parallelism:    1,
		RuntimeBuilder: builder,
	}
	return b.addWithParents(node, []string{parent})
}

func (b *Builder) addWithParents(node *Node, parents []string) error {
	if err := node.ID.Validate(); err != nil {
		return err
	}
	if _, exists := b.graph.Nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrNodeAlreadyExists, node.ID)
	}

	parentNodes := make([]*Node, 0, len(parents))
	for _, parent := range parents {
		parentNode, ok := b.graph.Nodes[NodeID(parent)]
		if !ok {
			return fmt.Errorf("%w: parent %s of %s", ErrNodeNotFound, parent, node.ID)
		}
		if err := parentNode.ValidateDownstream(node); err != nil {
			return fmt.Errorf("cannot connect %s -> %s: %w", parent, node.ID, err)
		}
		parentNodes = append(parentNodes, parentNode)
	}

	if err := b.graph.AddNode(node); err != nil {
		return err
	}
	for _, parentNode := range parentNodes {
		parentNode.Children = append(parentNode.Children, node.ID)
		node.Parents = append(node.Parents, parentNode.ID)
	}
	return nil
}

// Sentinel errors for common failure cases.
var (
	ErrNodeAlreadyExists = errors.New("node already exists")
	ErrNodeNotFound      = errors.New("node not found")
	ErrCycleDetected     = errors.New("cycle detected in DAG")
	ErrOrphanedNodes     = errors.New("orphaned nodes found")
	ErrInvalidNodeID     = errors.New("invalid node ID")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrInvalidTopology   = errors.New("invalid topology")
)
