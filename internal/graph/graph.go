// Package graph reads flow graph documents and answers the structural
// questions the compiler asks of them: which node is the entry point and which
// node follows a given one.
package graph

import (
	"github.com/rendis/flowcode/pkg/schema"
)

// Graph is a read view over a working GraphDocument, partitioned into node
// and edge cells. ResolveStart may append cells to the underlying document.
type Graph struct {
	Doc   *schema.GraphDocument
	Nodes []*schema.Cell
	Edges []*schema.Cell

	byID map[string]*schema.Cell
}

// Read partitions a document's cells into nodes and edges by the
// shape == "edge" discriminant. A document without nodes cannot be compiled.
func Read(doc *schema.GraphDocument) (*Graph, error) {
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeEmptyGraph, "graph document is nil")
	}

	g := &Graph{Doc: doc}
	g.index()

	if len(g.Nodes) == 0 {
		return nil, schema.NewError(schema.ErrCodeEmptyGraph, "compile failed, no node is selected")
	}
	return g, nil
}

func (g *Graph) index() {
	g.Nodes = make([]*schema.Cell, 0, len(g.Doc.Cells))
	g.Edges = make([]*schema.Cell, 0, len(g.Doc.Cells))
	g.byID = make(map[string]*schema.Cell, len(g.Doc.Cells))
	for _, c := range g.Doc.Cells {
		if c == nil {
			continue
		}
		if c.IsEdge() {
			g.Edges = append(g.Edges, c)
			continue
		}
		g.Nodes = append(g.Nodes, c)
		g.byID[c.ID] = c
	}
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*schema.Cell, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Incoming returns the first edge whose target is nodeID, or nil.
func (g *Graph) Incoming(nodeID string) *schema.Cell {
	for _, e := range g.Edges {
		if e.Target != nil && e.Target.Cell == nodeID {
			return e
		}
	}
	return nil
}

// Outgoing returns all edges leaving nodeID, in document order.
func (g *Graph) Outgoing(nodeID string) []*schema.Cell {
	var out []*schema.Cell
	for _, e := range g.Edges {
		if e.Source != nil && e.Source.Cell == nodeID {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) append(cells ...*schema.Cell) {
	g.Doc.Cells = append(g.Doc.Cells, cells...)
	g.index()
}
