package kdag

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Validation limits to prevent pathological cases
const (
	MaxNodesPerDAG     = 10000
	MaxDepth           = 500
	MaxChildrenPerNode = 1000
)

// Validate performs all topology validations and returns the first failure.
func (g *Graph) Validate() error {
	if len(g.Nodes) > MaxNodesPerDAG {
		return fmt.Errorf("%w: node count %d exceeds maximum %d",
			ErrInvalidTopology, len(g.Nodes), MaxNodesPerDAG)
	}
	if len(g.Sources()) == 0 {
		return fmt.Errorf("DAG validation failed: %w: no sources", ErrInvalidTopology)
	}

	if err := g.detectCycles(); err != nil {
		return fmt.Errorf("DAG validation failed: %w", err)
	}
	if err := g.validateNoOrphans(); err != nil {
		return fmt.Errorf("DAG validation failed: %w", err)
	}
	if err := g.validateSinks(); err != nil {
		return fmt.Errorf("DAG validation failed: %w", err)
	}
	if err := g.validateParallelism(); err != nil {
		return fmt.Errorf("DAG validation failed: %w", err)
	}

	return nil
}

// detectCycles uses DFS to find cycles. Time complexity: O(V + E).
func (g *Graph) detectCycles() error {
	visited := make(map[NodeID]bool, len(g.Nodes))
	recStack := make(map[NodeID]bool, len(g.Nodes))

	var dfs func(NodeID, []NodeID, int) error
	dfs = func(nodeID NodeID, path []NodeID, depth int) error {
		if depth > MaxDepth {
			return fmt.Errorf("%w: maximum depth %d exceeded", ErrInvalidTopology, MaxDepth)
		}

		visited[nodeID] = true
		recStack[nodeID] = true
		path = append(path, nodeID)

		node := g.Nodes[nodeID]
		if len(node.Children) > MaxChildrenPerNode {
			return fmt.Errorf("%w: node %s has %d children, exceeds maximum %d",
				ErrInvalidTopology, nodeID, len(node.Children), MaxChildrenPerNode)
		}

		for _, childID := range node.Children {
			if !visited[childID] {
				if err := dfs(childID, path, depth+1); err != nil {
					return err
				}
			} else if recStack[childID] {
				cyclePath := append(path, childID)
				pathStr := make([]string, len(cyclePath))
				for i, id := range cyclePath {
					pathStr[i] = string(id)
				}
				return fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(pathStr, " -> "))
			}
		}

		recStack[nodeID] = false
		return nil
	}

	for _, nodeID := range g.NodeOrder {
		if !visited[nodeID] {
			if err := dfs(nodeID, nil, 0); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateNoOrphans checks that all nodes are reachable from a source.
func (g *Graph) validateNoOrphans() error {
	reachable := make(map[NodeID]bool, len(g.Nodes))
	for _, sourceID := range g.Sources() {
		g.markReachable(sourceID, reachable)
	}

	var orphans []NodeID
	for nodeID := range g.Nodes {
		if !reachable[nodeID] {
			orphans = append(orphans, nodeID)
		}
	}

	if len(orphans) > 0 {
		slices.Sort(orphans)
		orphanStrs := make([]string, len(orphans))
		for i, id := range orphans {
			orphanStrs[i] = string(id)
		}
		return fmt.Errorf("%w (unreachable from sources): %s",
			ErrOrphanedNodes, strings.Join(orphanStrs, ", "))
	}

	return nil
}

func (g *Graph) markReachable(nodeID NodeID, reachable map[NodeID]bool) {
	if reachable[nodeID] {
		return
	}

	reachable[nodeID] = true
	for _, childID := range g.Nodes[nodeID].Children {
		g.markReachable(childID, reachable)
	}
}

func (g *Graph) validateSinks() error {
	for _, nodeID := range g.NodeOrder {
		node := g.Nodes[nodeID]
		if node.Type == NodeTypeSink && len(node.Children) > 0 {
			childStrs := make([]string, len(node.Children))
			for i, id := range node.Children {
				childStrs[i] = string(id)
			}
			return fmt.Errorf("%w: sink node %s has children: %s",
				ErrInvalidTopology, nodeID, strings.Join(childStrs, ", "))
		}
	}
	return nil
}

// validateParallelism rejects negative parallelism and partitioned sources
// or sinks.
func (g *Graph) validateParallelism() error {
	for _, nodeID := range g.NodeOrder {
		node := g.Nodes[nodeID]
		if node.Parallelism < 0 {
			return fmt.Errorf("%w: node %s has negative parallelism %d",
				ErrInvalidTopology, nodeID, node.Parallelism)
		}
		if node.Keyed && node.Type != NodeTypeOperator {
			return fmt.Errorf("%w: %s node %s cannot be keyed",
				ErrInvalidTopology, node.Type, nodeID)
		}
	}
	return nil
}

// insertSorted inserts an item into a sorted slice maintaining sort order.
func insertSorted(slice []NodeID, item NodeID) []NodeID {
	idx := sort.Search(len(slice), func(i int) bool {
		return slice[i] >= item
	})
	return slices.Insert(slice, idx, item)
}

// topologicalSort creates a deterministic topological ordering using Kahn's
// algorithm. Ties are broken by node ID.
func (g *Graph) topologicalSort() ([]NodeID, error) {
	inDegree := make(map[NodeID]int, len(g.Nodes))
	for nodeID := range g.Nodes {
		inDegree[nodeID] = 0
	}
	for _, node := range g.Nodes {
		for _, childID := range node.Children {
			inDegree[childID]++
		}
	}

	queue := make([]NodeID, 0, len(g.Nodes)/4)
	for nodeID, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, nodeID)
		}
	}
	slices.Sort(queue)

	result := make([]NodeID, 0, len(g.Nodes))
	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]
		result = append(result, nodeID)

		children := slices.Clone(g.Nodes[nodeID].Children)
		slices.Sort(children)

		for _, childID := range children {
			inDegree[childID]--
			if inDegree[childID] == 0 {
				queue = insertSorted(queue, childID)
			}
		}
	}

	if len(result) != len(g.Nodes) {
		return nil, fmt.Errorf("%w: topological sort failed", ErrCycleDetected)
	}

	return result, nil
}
