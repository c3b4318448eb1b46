package validation

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/rendis/flowcode/pkg/schema"
)

var exportDefaultRe = regexp.MustCompile(`\bexport\s+default\b`)

// validateCells checks what the schema cannot express: unique ids, edges
// that point at real nodes, and per-node code and dependency hygiene.
func validateCells(doc *schema.GraphDocument) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	nodes := make(map[string]bool, len(doc.Cells))
	branches := make(map[string]bool)
	seen := make(map[string]bool, len(doc.Cells))
	for i, c := range doc.Cells {
		if c == nil {
			result.AddError(fmt.Sprintf("cells[%d]", i), schema.ErrCodeValidation, "cell is null")
			continue
		}
		if seen[c.ID] {
			result.AddError(cellPath(c), schema.ErrCodeValidation, fmt.Sprintf("duplicate cell id %q", c.ID))
		}
		seen[c.ID] = true
		if !c.IsEdge() {
			nodes[c.ID] = true
			if c.Shape == schema.BranchShape {
				branches[c.ID] = true
			}
		}
	}

	if len(nodes) == 0 {
		result.AddError("cells", schema.ErrCodeEmptyGraph, "graph has no nodes")
	}

	outDegree := make(map[string]int)
	portDegree := make(map[schema.Endpoint]int)
	for _, c := range doc.Cells {
		if c == nil {
			continue
		}
		if c.IsEdge() {
			checkEndpoint(result, c, "source", c.Source, nodes)
			checkEndpoint(result, c, "target", c.Target, nodes)
			if c.Source == nil {
				continue
			}
			outDegree[c.Source.Cell]++
			if branches[c.Source.Cell] {
				portDegree[*c.Source]++
				checkBranchPort(result, c)
			}
			continue
		}
		checkNode(result, c)
	}

	for _, c := range doc.Cells {
		if c == nil || c.IsEdge() {
			continue
		}
		if branches[c.ID] {
			for _, port := range []string{schema.BranchTruePort, schema.BranchFalsePort} {
				if n := portDegree[schema.Endpoint{Cell: c.ID, Port: port}]; n > 1 {
					result.AddWarning(cellPath(c), schema.ErrCodeValidation,
						fmt.Sprintf("branch %q has %d edges leaving port %q; only the first is followed", c.ID, n, port))
				}
			}
			continue
		}
		if outDegree[c.ID] > 1 {
			result.AddWarning(cellPath(c), schema.ErrCodeValidation,
				fmt.Sprintf("node %q has %d outgoing edges; online preview follows only the first", c.ID, outDegree[c.ID]))
		}
	}
	return result
}

func checkEndpoint(result *schema.ValidationResult, edge *schema.Cell, side string, ep *schema.Endpoint, nodes map[string]bool) {
	path := cellPath(edge) + "." + side
	if ep == nil {
		result.AddError(path, schema.ErrCodeDanglingEdge, fmt.Sprintf("edge %q has no %s", edge.ID, side))
		return
	}
	if !nodes[ep.Cell] {
		result.AddError(path, schema.ErrCodeDanglingEdge,
			fmt.Sprintf("edge %q %s references missing node %q", edge.ID, side, ep.Cell))
	}
}

// checkBranchPort flags branch edges no result can select.
func checkBranchPort(result *schema.ValidationResult, edge *schema.Cell) {
	switch edge.Source.Port {
	case schema.BranchTruePort, schema.BranchFalsePort:
		return
	}
	result.AddWarning(cellPath(edge)+".source.port", schema.ErrCodeValidation,
		fmt.Sprintf("edge %q leaves branch %q through port %q; branches follow only %q (true) or %q (false)",
			edge.ID, edge.Source.Cell, edge.Source.Port, schema.BranchTruePort, schema.BranchFalsePort))
}

func checkNode(result *schema.ValidationResult, c *schema.Cell) {
	data := c.DataOrZero()
	if !exportDefaultRe.MatchString(data.Code) {
		result.AddWarning(cellPath(c)+".data.code", schema.ErrCodeValidation,
			fmt.Sprintf("node %q code has no export default", c.ID))
	}
	if data.Dependencies == "" {
		return
	}
	var deps map[string]string
	if err := json.Unmarshal([]byte(data.Dependencies), &deps); err != nil {
		result.AddWarning(cellPath(c)+".data.dependencies", schema.ErrCodeDependencyParse,
			fmt.Sprintf("node %q dependencies are not a JSON object of version ranges: %s", c.ID, err.Error()))
	}
}

func cellPath(c *schema.Cell) string {
	return fmt.Sprintf("cells[%s]", c.ID)
}
