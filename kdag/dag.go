package kdag

// DAG is a validated, immutable processing graph.
type DAG struct {
	graph *Graph
	order []NodeID
}

// Order returns the nodes in deterministic topological order: every node
// comes after all of its parents.
func (d *DAG) Order() []NodeID {
	return append([]NodeID(nil), d.order...)
}

// Node returns the node with the given ID.
func (d *DAG) Node(id NodeID) (*Node, bool) {
	n, ok := d.graph.Nodes[id]
	return n, ok
}

// GetGraph returns the underlying graph.
func (d *DAG) GetGraph() *Graph {
	return d.graph
}
