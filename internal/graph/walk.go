package graph

import "github.com/rendis/flowcode/pkg/schema"

// Next follows the first outgoing edge of node and returns the node it points
// to. When node has no outgoing edge, node itself is returned: callers detect
// the end of a path by comparing the result with the input.
func (g *Graph) Next(node *schema.Cell) (*schema.Cell, error) {
	for _, e := range g.Outgoing(node.ID) {
		if e.Target == nil {
			return nil, schema.NewErrorf(schema.ErrCodeDanglingEdge, "edge %q has no target", e.ID).WithNode(node.ID)
		}
		next, ok := g.Node(e.Target.Cell)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeDanglingEdge,
				"edge %q references missing target node %q", e.ID, e.Target.Cell).
				WithNode(node.ID)
		}
		return next, nil
	}
	return node, nil
}

// Path applies Next from start until it reaches a node without an outgoing
// edge and returns every node visited, start included. An edge leading back
// to a visited node, a self-loop included, is CYCLE_DETECTED.
func (g *Graph) Path(start *schema.Cell) ([]*schema.Cell, error) {
	path := []*schema.Cell{start}
	seen := map[string]bool{start.ID: true}

	cur := start
	for len(g.Outgoing(cur.ID)) > 0 {
		next, err := g.Next(cur)
		if err != nil {
			return nil, err
		}
		if seen[next.ID] {
			return nil, schema.NewErrorf(schema.ErrCodeCycleDetected,
				"path from %q returns to node %q", start.ID, next.ID).
				WithNode(next.ID)
		}
		seen[next.ID] = true
		path = append(path, next)
		cur = next
	}
	return path, nil
}
