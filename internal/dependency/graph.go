// Package dependency models the start-order relationships between cluster
// services.
package dependency

import (
	"errors"
	"fmt"
	"strings"
)

// NodeID uniquely identifies a node in the graph.
type NodeID string

// NodeKind classifies a node.
type NodeKind string

const (
	KindService NodeKind = "Service"
)

// Node is one vertex of the graph.
type Node struct {
	ID           NodeID
	FriendlyName string
	Kind         NodeKind
	DependsOn    []NodeID
}

var (
	// ErrCycle is returned when the graph cannot be ordered.
	ErrCycle = errors.New("dependency cycle")
	// ErrMissingDependency is returned when a node depends on an unknown node.
	ErrMissingDependency = errors.New("missing dependency")
)

// Graph is a directed graph of nodes; edges point from a node to the nodes it
// depends on. Insertion order is remembered and used to break ties.
type Graph struct {
	nodes map[NodeID]*Node
	order []NodeID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode inserts n, replacing any node with the same ID in place.
func (g *Graph) AddNode(n Node) {
	if _, exists := g.nodes[n.ID]; !exists {
		g.order = append(g.order, n.ID)
	}
	n.DependsOn = append([]NodeID(nil), n.DependsOn...)
	g.nodes[n.ID] = &n
}

// Dependencies returns the direct dependencies of id.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	n := g.nodes[id]
	if n == nil {
		return nil
	}
	return append([]NodeID(nil), n.DependsOn...)
}

// Dependents returns the nodes that directly depend on id, in insertion order.
func (g *Graph) Dependents(id NodeID) []NodeID {
	var out []NodeID
	for _, nid := range g.order {
		for _, dep := range g.nodes[nid].DependsOn {
			if dep == id {
				out = append(out, nid)
				break
			}
		}
	}
	return out
}

// TopologicalOrder returns every node after all of its dependencies. Among
// nodes whose dependencies are satisfied, the one inserted first comes
// first, so the result is deterministic.
func (g *Graph) TopologicalOrder() ([]NodeID, error) {
	for _, id := range g.order {
		for _, dep := range g.nodes[id].DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrMissingDependency, id, dep)
			}
		}
	}

	placed := make(map[NodeID]bool, len(g.order))
	out := make([]NodeID, 0, len(g.order))
	for len(out) < len(g.order) {
		progressed := false
		for _, id := range g.order {
			if placed[id] || !g.ready(id, placed) {
				continue
			}
			placed[id] = true
			out = append(out, id)
			progressed = true
			break
		}
		if !progressed {
			var stuck []string
			for _, id := range g.order {
				if !placed[id] {
					stuck = append(stuck, string(id))
				}
			}
			return nil, fmt.Errorf("%w among %s", ErrCycle, strings.Join(stuck, ", "))
		}
	}
	return out, nil
}

func (g *Graph) ready(id NodeID, placed map[NodeID]bool) bool {
	for _, dep := range g.nodes[id].DependsOn {
		if !placed[dep] {
			return false
		}
	}
	return true
}
