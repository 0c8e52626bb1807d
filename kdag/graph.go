package kdag

import (
	"fmt"
	"reflect"
	"strings"
)

// RuntimeBuilder is implemented by the execution package's node builders.
// Declared here so kdag does not import execution.
type RuntimeBuilder interface {
	BuilderKind() NodeType
}

// NodeID is a strongly-typed identifier for graph nodes.
// NodeIDs must be non-empty and cannot contain whitespace.
type NodeID string

// Validate returns ErrInvalidNodeID if the ID is empty or contains whitespace.
func (id NodeID) Validate() error {
	if id == "" {
		return fmt.Errorf("%w: NodeID cannot be empty", ErrInvalidNodeID)
	}
	if strings.ContainsAny(string(id), " \t\n\r") {
		return fmt.Errorf("%w: NodeID %q cannot contain whitespace", ErrInvalidNodeID, id)
	}
	return nil
}

// NodeType represents the kind of node in the DAG
type NodeType int

const (
	NodeTypeSource NodeType = iota
	NodeTypeOperator
	NodeTypeSink
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeSource:
		return "Source"
	case NodeTypeOperator:
		return "Operator"
	case NodeTypeSink:
		return "Sink"
	default:
		return "Unknown"
	}
}

// Node is the build-time representation of a node in the DAG.
type Node struct {
	ID   NodeID
	Type NodeType

	Parents  []NodeID
	Children []NodeID

	// InputType is nil for sources, OutputType is nil for sinks.
	InputType  reflect.Type
	OutputType reflect.Type

	// Keyed nodes partition their input by key and run with the
	// environment's parallelism unless Parallelism overrides it.
	Keyed       bool
	Parallelism int

	// OutputTypeName is the descriptor name of the produced values, if known.
	OutputTypeName string

	RuntimeBuilder RuntimeBuilder
}

// ValidateDownstream checks if this node can connect to the given child node.
// Returns ErrTypeMismatch if types are incompatible.
func (n *Node) ValidateDownstream(child *Node) error {
	if n.Type == NodeTypeSink {
		return fmt.Errorf("%w: sink nodes cannot have children", ErrInvalidTopology)
	}
	if child.Type == NodeTypeSource {
		return fmt.Errorf("%w: source nodes cannot be children", ErrInvalidTopology)
	}
	if n.OutputType != child.InputType {
		return fmt.Errorf("%w: %s outputs %v but %s expects %v",
			ErrTypeMismatch, n.ID, n.OutputType, child.ID, child.InputType)
	}
	return nil
}

// Graph is the build-time DAG representation. It holds structure only.
type Graph struct {
	Nodes map[NodeID]*Node

	// Insertion order, used wherever iteration must be deterministic.
	NodeOrder []NodeID
}

func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[NodeID]*Node),
		NodeOrder: make([]NodeID, 0),
	}
}

func (g *Graph) AddNode(node *Node) error {
	if err := node.ID.Validate(); err != nil {
		return err
	}
	if _, exists := g.Nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrNodeAlreadyExists, node.ID)
	}
	g.Nodes[node.ID] = node
	g.NodeOrder = append(g.NodeOrder, node.ID)
	return nil
}

// AddEdge adds a directed edge from parent to child after checking type
// compatibility.
func (g *Graph) AddEdge(parentID, childID NodeID) error {
	parent, ok := g.Nodes[parentID]
	if !ok {
		return fmt.Errorf("%w: parent %s", ErrNodeNotFound, parentID)
	}
	child, ok := g.Nodes[childID]
	if !ok {
		return fmt.Errorf("%w: child %s", ErrNodeNotFound, childID)
	}

	if err := parent.ValidateDownstream(child); err != nil {
		return fmt.Errorf("cannot connect %s -> %s: %w", parentID, childID, err)
	}

	parent.Children = append(parent.Children, childID)
	child.Parents = append(child.Parents, parentID)
	return nil
}

// Sources returns the IDs of all source nodes in insertion order.
func (g *Graph) Sources() []NodeID {
	var sources []NodeID
	for _, id := range g.NodeOrder {
		if g.Nodes[id].Type == NodeTypeSource {
			sources = append(sources, id)
		}
	}
	return sources
}
