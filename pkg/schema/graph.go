package schema

import (
	"encoding/json"
	"fmt"
)

// Reserved shapes and ids.
const (
	ShapeEdge     = "edge"
	EntryShape    = "flow-start"
	BehaviorShape = "flow-behavior"
	BranchShape   = "flow-branch"

	VirtualEntryID   = "virtual-flow-start"
	VirtualEntryCode = "export default async function(ctx) {\n  \n}"
)

// Ports a branch node's result selects at run time: a truthy result leaves
// through BranchTruePort, anything else through BranchFalsePort.
const (
	BranchTruePort  = "right"
	BranchFalsePort = "bottom"
)

// GraphDocument is the editor's DSL: an ordered list of node and edge cells.
type GraphDocument struct {
	Cells []*Cell `json:"cells"`
}

// Cell is either a node or an edge, discriminated by Shape.
// Fields the compiler does not read (position, size, attrs, ...) are kept in
// Extra and written back unchanged.
type Cell struct {
	ID     string    `json:"id"`
	Shape  string    `json:"shape"`
	Data   *NodeData `json:"data,omitempty"`
	Source *Endpoint `json:"source,omitempty"`
	Target *Endpoint `json:"target,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// NodeData is the payload carried by node cells.
type NodeData struct {
	Label        string          `json:"label"`
	Code         string          `json:"code"`
	Trigger      string          `json:"trigger,omitempty"`
	ConfigData   json.RawMessage `json:"configData,omitempty"`
	Dependencies string          `json:"dependencies,omitempty"` // JSON: package -> version range

	Extra map[string]json.RawMessage `json:"-"`
}

// Endpoint is one end of an edge.
type Endpoint struct {
	Cell string `json:"cell"`
	Port string `json:"port,omitempty"`
}

// IsEdge reports whether the cell is an edge.
func (c *Cell) IsEdge() bool {
	return c.Shape == ShapeEdge
}

// DataOrZero returns the node data, or the zero value when the cell has none.
func (c *Cell) DataOrZero() NodeData {
	if c == nil || c.Data == nil {
		return NodeData{}
	}
	return *c.Data
}

// NewVirtualEntry returns a fresh synthesized entry node.
func NewVirtualEntry() *Cell {
	return &Cell{
		ID:    VirtualEntryID,
		Shape: EntryShape,
		Data: &NodeData{
			Label:      "start",
			Trigger:    VirtualEntryID,
			ConfigData: json.RawMessage(`{}`),
			Code:       VirtualEntryCode,
		},
	}
}

// NewEdge returns an edge cell from source to target.
func NewEdge(id, source, target string) *Cell {
	return &Cell{
		ID:     id,
		Shape:  ShapeEdge,
		Source: &Endpoint{Cell: source},
		Target: &Endpoint{Cell: target},
	}
}

// Clone returns a deep copy of the document.
func (d *GraphDocument) Clone() (*GraphDocument, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	out := &GraphDocument{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	return out, nil
}

// ParseGraphDocument decodes a JSON graph document.
func ParseGraphDocument(data []byte) (*GraphDocument, error) {
	doc := &GraphDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, NewError(ErrCodeValidation, "malformed graph document").WithCause(err)
	}
	return doc, nil
}

// --- JSON with passthrough fields ---

type cellAlias Cell
type nodeDataAlias NodeData

var (
	cellKnown     = []string{"id", "shape", "data", "source", "target"}
	nodeDataKnown = []string{"label", "code", "trigger", "configData", "dependencies"}
)

func (c *Cell) UnmarshalJSON(b []byte) error {
	var a cellAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	extra, err := unknownFields(b, cellKnown)
	if err != nil {
		return err
	}
	*c = Cell(a)
	c.Extra = extra
	return nil
}

func (c Cell) MarshalJSON() ([]byte, error) {
	return withExtra(cellAlias(c), c.Extra)
}

func (d *NodeData) UnmarshalJSON(b []byte) error {
	var a nodeDataAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	extra, err := unknownFields(b, nodeDataKnown)
	if err != nil {
		return err
	}
	*d = NodeData(a)
	d.Extra = extra
	return nil
}

func (d NodeData) MarshalJSON() ([]byte, error) {
	return withExtra(nodeDataAlias(d), d.Extra)
}

func unknownFields(b []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func withExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := fields[k]; !ok {
			fields[k] = raw
		}
	}
	return json.Marshal(fields)
}
