package devserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeAction(action ActionType, id string, data map[string]any) Action {
	d := map[string]any{"id": id}
	for k, v := range data {
		d[k] = v
	}
	return Action{Type: CellNode, ActionType: action, Data: d}
}

func TestQueue_DedupMergesAndMovesToBack(t *testing.T) {
	q := NewQueue(10)
	for _, a := range []Action{
		nodeAction(ActionUpdate, "a", map[string]any{"position": map[string]any{"x": 1.0, "y": 1.0}}),
		nodeAction(ActionUpdate, "b", nil),
		nodeAction(ActionUpdate, "a", map[string]any{"position": map[string]any{"x": 5.0}}),
	} {
		ok, err := q.Enqueue(a)
		require.NoError(t, err)
		require.True(t, ok)
	}

	items := q.Drain()
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Data["id"])
	assert.Equal(t, "a", items[1].Data["id"])
	assert.Equal(t, map[string]any{"x": 5.0, "y": 1.0}, items[1].Data["position"])
	assert.Zero(t, q.Len())
}

func TestQueue_DifferentActionsDoNotMerge(t *testing.T) {
	q := NewQueue(10)
	_, _ = q.Enqueue(nodeAction(ActionCreate, "a", nil))
	_, _ = q.Enqueue(nodeAction(ActionUpdate, "a", nil))
	assert.Equal(t, 2, q.Len())
}

func TestQueue_SkipsUnconnectedEdges(t *testing.T) {
	q := NewQueue(10)

	ok, err := q.Enqueue(Action{Type: CellEdge, ActionType: ActionCreate, Data: map[string]any{
		"id": "e1", "source": map[string]any{"cell": "a"}, "target": map[string]any{"x": 10.0},
	}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = q.Enqueue(Action{Type: "port", ActionType: ActionCreate, Data: map[string]any{"id": "p"}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = q.Enqueue(Action{Type: CellEdge, ActionType: ActionCreate, Data: map[string]any{
		"id": "e1", "source": map[string]any{"cell": "a"}, "target": map[string]any{"cell": "b"},
	}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQueue_Full(t *testing.T) {
	q := NewQueue(1)
	_, err := q.Enqueue(nodeAction(ActionUpdate, "a", nil))
	require.NoError(t, err)

	_, err = q.Enqueue(nodeAction(ActionUpdate, "b", nil))
	assert.ErrorIs(t, err, ErrQueueFull)

	// Merging into a pending edit does not need room.
	ok, err := q.Enqueue(nodeAction(ActionUpdate, "a", map[string]any{"zIndex": 2.0}))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQueue_RestoreKeepsNewerData(t *testing.T) {
	q := NewQueue(10)
	failed := []Action{
		nodeAction(ActionUpdate, "a", map[string]any{"label": "old", "zIndex": 1.0}),
		nodeAction(ActionRemove, "c", nil),
	}
	_, _ = q.Enqueue(nodeAction(ActionUpdate, "a", map[string]any{"label": "new"}))
	_, _ = q.Enqueue(nodeAction(ActionUpdate, "b", nil))

	q.Restore(failed)

	items := q.Drain()
	require.Len(t, items, 3)
	assert.Equal(t, "c", items[0].Data["id"])
	assert.Equal(t, "a", items[1].Data["id"])
	assert.Equal(t, "new", items[1].Data["label"])
	assert.Equal(t, 1.0, items[1].Data["zIndex"])
	assert.Equal(t, "b", items[2].Data["id"])
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{"a": map[string]any{"x": 1, "y": 2}, "list": []any{1, 2}}
	src := map[string]any{"a": map[string]any{"y": 3}, "list": []any{9}, "b": true}
	got := deepMerge(dst, src)
	assert.Equal(t, map[string]any{
		"a":    map[string]any{"x": 1, "y": 3},
		"list": []any{9},
		"b":    true,
	}, got)
}
