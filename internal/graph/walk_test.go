package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcode/pkg/schema"
)

func TestNext_FixedPoint(t *testing.T) {
	g, err := Read(linearDoc(schema.EntryShape))
	require.NoError(t, err)
	n := g.Nodes[0]

	next, err := g.Next(n)
	require.NoError(t, err)
	assert.Same(t, n, next)
}

func TestNext_FirstOutgoingOnly(t *testing.T) {
	doc := linearDoc(schema.EntryShape, schema.BehaviorShape)
	doc.Cells = append(doc.Cells, node("z", schema.BehaviorShape), schema.NewEdge("az", "a", "z"))
	g, err := Read(doc)
	require.NoError(t, err)

	a, _ := g.Node("a")
	next, err := g.Next(a)
	require.NoError(t, err)
	assert.Equal(t, "b", next.ID)
}

func TestPath_LinearVisitsEveryNodeOnce(t *testing.T) {
	for _, size := range []int{1, 2, 5, 12} {
		shapes := make([]string, size)
		shapes[0] = schema.EntryShape
		for i := 1; i < size; i++ {
			shapes[i] = schema.BehaviorShape
		}
		doc := linearDoc(shapes...)
		// Reverse cell order so the first node is the tail.
		for i, j := 0, len(doc.Cells)-1; i < j; i, j = i+1, j-1 {
			doc.Cells[i], doc.Cells[j] = doc.Cells[j], doc.Cells[i]
		}

		g, err := Read(doc)
		require.NoError(t, err)
		start, err := g.ResolveStart()
		require.NoError(t, err)
		path, err := g.Path(start)
		require.NoError(t, err)

		require.Len(t, path, size)
		seen := map[string]bool{}
		for _, n := range path {
			assert.False(t, seen[n.ID])
			seen[n.ID] = true
		}
		last := path[len(path)-1]
		assert.Empty(t, g.Outgoing(last.ID))
	}
}

func TestPath_DanglingTarget(t *testing.T) {
	doc := &schema.GraphDocument{Cells: []*schema.Cell{
		node("a", schema.EntryShape),
		schema.NewEdge("e", "a", "ghost"),
	}}
	g, err := Read(doc)
	require.NoError(t, err)
	_, err = g.Path(g.Nodes[0])
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeDanglingEdge))
}

func TestPath_Cycle(t *testing.T) {
	doc := linearDoc(schema.EntryShape, schema.BehaviorShape)
	doc.Cells = append(doc.Cells, schema.NewEdge("back", "b", "a"))
	g, err := Read(doc)
	require.NoError(t, err)
	a, _ := g.Node("a")
	_, err = g.Path(a)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeCycleDetected))
}

func TestPath_SelfLoop(t *testing.T) {
	doc := linearDoc(schema.EntryShape, schema.BehaviorShape)
	doc.Cells = append(doc.Cells, schema.NewEdge("loop", "b", "b"))
	g, err := Read(doc)
	require.NoError(t, err)
	a, _ := g.Node("a")

	_, err = g.Path(a)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeCycleDetected))
}
