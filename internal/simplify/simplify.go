// Package simplify shrinks a graph document to what generated code needs at
// runtime. The reshaping is a jq program so the kept fields are configuration.
package simplify

import (
	"context"

	"github.com/rendis/flowcode/internal/expressions"
	"github.com/rendis/flowcode/pkg/schema"
)

// DefaultProgram keeps ids, shapes, node label/trigger/configData and edge
// endpoints, and drops null fields. Node code is not needed at runtime
// because it is compiled into the node function map.
const DefaultProgram = `def compact: with_entries(select(.value != null));
{cells: [.cells[] |
  if .shape == "edge" then
    {id, shape,
     source: (.source | {cell, port} | compact),
     target: (.target | {cell, port} | compact)} | compact
  else
    {id, shape, data: ((.data // {}) | {label, trigger, configData} | compact)}
  end]}`

// Simplifier applies a jq program to graph documents. It has no side effects
// and is safe for concurrent use.
type Simplifier struct {
	program string
	jq      *expressions.GoJQEngine
}

// New returns a Simplifier running program, or DefaultProgram when empty.
func New(program string) *Simplifier {
	if program == "" {
		program = DefaultProgram
	}
	return &Simplifier{program: program, jq: expressions.NewGoJQEngine()}
}

// Program returns the jq program in use.
func (s *Simplifier) Program() string {
	return s.program
}

// Simplify returns the reshaped document as a JSON-shaped value.
func (s *Simplifier) Simplify(ctx context.Context, doc *schema.GraphDocument) (any, error) {
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeEmptyGraph, "graph document is nil")
	}
	if doc.Cells == nil {
		doc = &schema.GraphDocument{Cells: []*schema.Cell{}}
	}
	return s.jq.EvaluateValue(ctx, s.program, doc)
}
