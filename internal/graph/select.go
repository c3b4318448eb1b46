package graph

import (
	"context"
	"encoding/json"

	"github.com/rendis/flowcode/internal/expressions"
	"github.com/rendis/flowcode/pkg/schema"
)

// SelectIDs returns the subgraph made of the named nodes and every edge whose
// two endpoints are both named, mirroring an editor selection export. Cell
// order follows the source document; unknown ids are ignored.
func SelectIDs(doc *schema.GraphDocument, ids []string) *schema.GraphDocument {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	return subgraph(doc, keep)
}

// SelectWhere keeps the nodes for which expression evaluates to true. The
// node is exposed to the predicate as `cell` (its JSON form) and document
// level facts as `graph` (node_count, edge_count).
func SelectWhere(ctx context.Context, doc *schema.GraphDocument, engine expressions.Engine, expression string) (*schema.GraphDocument, error) {
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeEmptyGraph, "graph document is nil")
	}

	var nodes, edges int
	for _, c := range doc.Cells {
		if c == nil {
			continue
		}
		if c.IsEdge() {
			edges++
		} else {
			nodes++
		}
	}
	facts := map[string]any{"node_count": nodes, "edge_count": edges}

	keep := make(map[string]bool)
	for _, c := range doc.Cells {
		if c == nil || c.IsEdge() {
			continue
		}
		cell, err := cellMap(c)
		if err != nil {
			return nil, err
		}
		ok, err := expressions.EvaluateBool(ctx, engine, expression, map[string]any{"cell": cell, "graph": facts})
		if err != nil {
			return nil, err
		}
		if ok {
			keep[c.ID] = true
		}
	}
	return subgraph(doc, keep), nil
}

func subgraph(doc *schema.GraphDocument, keep map[string]bool) *schema.GraphDocument {
	out := &schema.GraphDocument{}
	if doc == nil {
		return out
	}
	for _, c := range doc.Cells {
		if c == nil {
			continue
		}
		if !c.IsEdge() {
			if keep[c.ID] {
				out.Cells = append(out.Cells, c)
			}
			continue
		}
		if c.Source != nil && c.Target != nil && keep[c.Source.Cell] && keep[c.Target.Cell] {
			out.Cells = append(out.Cells, c)
		}
	}
	return out
}

func cellMap(c *schema.Cell) (map[string]any, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression, "encode cell %q: %s", c.ID, err.Error()).WithCause(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression, "decode cell %q: %s", c.ID, err.Error()).WithCause(err)
	}
	return m, nil
}
