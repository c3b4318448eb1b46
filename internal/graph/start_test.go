package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcode/pkg/schema"
)

func TestResolveStart_ExistingEntry(t *testing.T) {
	doc := linearDoc(schema.EntryShape, schema.BehaviorShape, schema.BehaviorShape)
	// Put a non-entry node first so the walk has to go backwards.
	doc.Cells[0], doc.Cells[2] = doc.Cells[2], doc.Cells[0]
	before := len(doc.Cells)

	g, err := Read(doc)
	require.NoError(t, err)
	start, err := g.ResolveStart()
	require.NoError(t, err)

	assert.Equal(t, "a", start.ID)
	assert.Len(t, doc.Cells, before, "no cells appended")
	_, ok := g.Node(schema.VirtualEntryID)
	assert.False(t, ok)
}

func TestResolveStart_InsertsVirtualEntry(t *testing.T) {
	doc := linearDoc(schema.BehaviorShape, schema.BehaviorShape)
	edgesBefore := countEdges(doc)

	g, err := Read(doc)
	require.NoError(t, err)
	start, err := g.ResolveStart()
	require.NoError(t, err)

	assert.Equal(t, schema.VirtualEntryID, start.ID)
	assert.Equal(t, schema.EntryShape, start.Shape)
	assert.Equal(t, schema.VirtualEntryCode, start.Data.Code)
	assert.Equal(t, edgesBefore+1, countEdges(doc))

	var added *schema.Cell
	for _, e := range g.Edges {
		if e.Source.Cell == schema.VirtualEntryID {
			require.Nil(t, added, "exactly one edge from the virtual entry")
			added = e
		}
	}
	require.NotNil(t, added)
	assert.Equal(t, "a", added.Target.Cell)
	assert.True(t, strings.HasPrefix(added.ID, "edge-"))

	next, err := g.Next(start)
	require.NoError(t, err)
	assert.Equal(t, "a", next.ID)
}

func TestResolveStart_ReusesVirtualEntry(t *testing.T) {
	doc := &schema.GraphDocument{Cells: []*schema.Cell{
		node("x", schema.BehaviorShape),
		schema.NewVirtualEntry(),
	}}
	g, err := Read(doc)
	require.NoError(t, err)
	start, err := g.ResolveStart()
	require.NoError(t, err)

	assert.Same(t, doc.Cells[1], start)
	assert.Len(t, g.Nodes, 2)
}

func TestResolveStart_Cycle(t *testing.T) {
	doc := linearDoc(schema.BehaviorShape, schema.BehaviorShape, schema.BehaviorShape)
	doc.Cells = append(doc.Cells, schema.NewEdge("back", "c", "a"))

	g, err := Read(doc)
	require.NoError(t, err)
	_, err = g.ResolveStart()
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeCycleDetected))
}

func TestResolveStart_DanglingSource(t *testing.T) {
	doc := &schema.GraphDocument{Cells: []*schema.Cell{
		node("a", schema.BehaviorShape),
		schema.NewEdge("e", "ghost", "a"),
	}}
	g, err := Read(doc)
	require.NoError(t, err)
	_, err = g.ResolveStart()
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeDanglingEdge))
}

func countEdges(doc *schema.GraphDocument) int {
	n := 0
	for _, c := range doc.Cells {
		if c.IsEdge() {
			n++
		}
	}
	return n
}
