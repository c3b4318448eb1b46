package devserver

import (
	"encoding/json"

	"github.com/rendis/flowcode/pkg/schema"
)

// ApplyActions returns a copy of doc with the edits applied in order. Cells
// are edited as raw JSON so editor-only fields survive. Creating an existing
// cell or updating a missing one behaves as an upsert; removing a node also
// removes the edges attached to it.
func ApplyActions(doc *schema.GraphDocument, actions []Action) (*schema.GraphDocument, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "encode graph document").WithCause(err)
	}
	var work struct {
		Cells []map[string]any `json:"cells"`
	}
	if err := json.Unmarshal(raw, &work); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "decode graph document").WithCause(err)
	}

	for _, a := range actions {
		id, _ := a.Data["id"].(string)
		if id == "" {
			continue
		}
		idx := indexOf(work.Cells, id)
		switch a.ActionType {
		case ActionCreate, ActionUpdate:
			if idx < 0 {
				cell := cloneMap(a.Data)
				if a.Type == CellEdge {
					cell["shape"] = schema.ShapeEdge
				}
				work.Cells = append(work.Cells, cell)
				continue
			}
			work.Cells[idx] = deepMerge(work.Cells[idx], a.Data)
		case ActionRemove:
			if idx < 0 {
				continue
			}
			work.Cells = append(work.Cells[:idx], work.Cells[idx+1:]...)
			if a.Type == CellNode {
				work.Cells = dropAttached(work.Cells, id)
			}
		}
	}

	out, err := json.Marshal(work)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "encode edited graph").WithCause(err)
	}
	return schema.ParseGraphDocument(out)
}

func indexOf(cells []map[string]any, id string) int {
	for i, c := range cells {
		if cid, _ := c["id"].(string); cid == id {
			return i
		}
	}
	return -1
}

func dropAttached(cells []map[string]any, nodeID string) []map[string]any {
	kept := cells[:0]
	for _, c := range cells {
		if c["shape"] == schema.ShapeEdge &&
			(endpointCell(c, "source") == nodeID || endpointCell(c, "target") == nodeID) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
