package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/flowcode/pkg/schema"
)

// validateDAG runs cycle detection (Kahn's algorithm) and reachability (BFS
// from in-degree-zero nodes) over the node graph. Edges with unknown
// endpoints are skipped; validateCells reports them.
func validateDAG(doc *schema.GraphDocument) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	var order []string
	nodeIDs := make(map[string]bool)
	for _, c := range doc.Cells {
		if c != nil && !c.IsEdge() && !nodeIDs[c.ID] {
			nodeIDs[c.ID] = true
			order = append(order, c.ID)
		}
	}

	succ := make(map[string][]string, len(order))
	inDegree := make(map[string]int, len(order))
	for _, c := range doc.Cells {
		if c == nil || !c.IsEdge() || c.Source == nil || c.Target == nil {
			continue
		}
		from, to := c.Source.Cell, c.Target.Cell
		if !nodeIDs[from] || !nodeIDs[to] {
			continue
		}
		succ[from] = append(succ[from], to)
		inDegree[to]++
	}

	roots := make([]string, 0)
	for _, id := range order {
		if inDegree[id] == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)

	remaining := make(map[string]int, len(inDegree))
	for id, d := range inDegree {
		remaining[id] = d
	}
	queue := append([]string(nil), roots...)
	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range succ[node] {
			remaining[next]--
			if remaining[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(order) {
		result.AddError("cells", schema.ErrCodeCycleDetected, "graph contains a cycle")
		return result
	}

	if len(roots) > 1 {
		result.AddWarning("cells", schema.ErrCodeValidation,
			fmt.Sprintf("graph has %d nodes without incoming edges; the entry node is resolved from the first node in document order", len(roots)))
	}

	hasEntry := false
	for _, c := range doc.Cells {
		if c != nil && c.Shape == schema.EntryShape {
			hasEntry = true
			break
		}
	}
	if !hasEntry {
		result.AddWarning("cells", schema.ErrCodeValidation,
			"graph has no entry node; a virtual entry node will be inserted at compile time")
		return result
	}

	// Nodes not reachable from an entry node never run in a triggered flow.
	reachable := make(map[string]bool, len(order))
	var bfs []string
	for _, c := range doc.Cells {
		if c != nil && c.Shape == schema.EntryShape {
			reachable[c.ID] = true
			bfs = append(bfs, c.ID)
		}
	}
	for len(bfs) > 0 {
		node := bfs[0]
		bfs = bfs[1:]
		for _, next := range succ[node] {
			if !reachable[next] {
				reachable[next] = true
				bfs = append(bfs, next)
			}
		}
	}
	for _, id := range order {
		if !reachable[id] {
			result.AddWarning(fmt.Sprintf("cells[%s]", id), schema.ErrCodeValidation,
				fmt.Sprintf("node %q is unreachable from any entry node", id))
		}
	}
	return result
}
