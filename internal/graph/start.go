package graph

import (
	"github.com/google/uuid"

	"github.com/rendis/flowcode/pkg/schema"
)

// ResolveStart returns the node to treat as the execution entry point.
//
// Starting from the first node in document order it walks backwards against
// edge direction until it reaches a node with no incoming edge. When that node
// is not an entry-kind node, a virtual entry node and an edge from it to the
// found node are appended to the working document and the virtual node is
// returned. Run it on a selected subgraph to get that subgraph's own entry.
func (g *Graph) ResolveStart() (*schema.Cell, error) {
	start := g.Nodes[0]
	visited := map[string]bool{start.ID: true}

	for {
		edge := g.Incoming(start.ID)
		if edge == nil {
			break
		}
		if edge.Source == nil {
			return nil, schema.NewErrorf(schema.ErrCodeDanglingEdge, "edge %q has no source", edge.ID)
		}
		prev, ok := g.Node(edge.Source.Cell)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeDanglingEdge,
				"edge %q references missing source node %q", edge.ID, edge.Source.Cell).
				WithNode(start.ID)
		}
		if visited[prev.ID] {
			return nil, schema.NewErrorf(schema.ErrCodeCycleDetected,
				"node %q is reached twice while searching for the entry node", prev.ID).
				WithNode(prev.ID)
		}
		visited[prev.ID] = true
		start = prev
	}

	if start.Shape == schema.EntryShape {
		return start, nil
	}
	return g.insertVirtualEntry(start), nil
}

// insertVirtualEntry links a virtual entry node to target, reusing an existing
// virtual node if the document already has one.
func (g *Graph) insertVirtualEntry(target *schema.Cell) *schema.Cell {
	edge := schema.NewEdge("edge-"+uuid.NewString(), schema.VirtualEntryID, target.ID)

	if existing, ok := g.Node(schema.VirtualEntryID); ok {
		g.append(edge)
		return existing
	}

	virtual := schema.NewVirtualEntry()
	g.append(virtual, edge)
	return virtual
}
