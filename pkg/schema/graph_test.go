package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const editorDoc = `{
  "cells": [
    {"id": "n1", "shape": "flow-start", "position": {"x": 10, "y": 20}, "zIndex": 1,
     "data": {"label": "start", "code": "export default 1;", "trigger": "go", "configSchema": "[]"}},
    {"id": "e1", "shape": "edge", "source": {"cell": "n1", "port": "bottom"}, "target": {"cell": "n2"}},
    {"id": "n2", "shape": "flow-behavior", "data": {"label": "work", "code": "export default 2;"}}
  ]
}`

func TestParseGraphDocument(t *testing.T) {
	doc, err := ParseGraphDocument([]byte(editorDoc))
	require.NoError(t, err)
	require.Len(t, doc.Cells, 3)

	assert.False(t, doc.Cells[0].IsEdge())
	assert.Equal(t, "go", doc.Cells[0].Data.Trigger)
	assert.True(t, doc.Cells[1].IsEdge())
	assert.Equal(t, "bottom", doc.Cells[1].Source.Port)
	assert.Equal(t, "n2", doc.Cells[1].Target.Cell)
	assert.Contains(t, doc.Cells[0].Extra, "position")
	assert.Contains(t, doc.Cells[0].Data.Extra, "configSchema")
}

func TestParseGraphDocument_Malformed(t *testing.T) {
	_, err := ParseGraphDocument([]byte(`{"cells": [`))
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeValidation))
}

func TestCell_PassthroughRoundTrip(t *testing.T) {
	doc, err := ParseGraphDocument([]byte(editorDoc))
	require.NoError(t, err)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, editorDoc, string(out))
}

func TestGraphDocument_Clone(t *testing.T) {
	doc, err := ParseGraphDocument([]byte(editorDoc))
	require.NoError(t, err)

	clone, err := doc.Clone()
	require.NoError(t, err)
	clone.Cells[0].Data.Label = "changed"
	clone.Cells = append(clone.Cells, NewVirtualEntry())

	assert.Equal(t, "start", doc.Cells[0].Data.Label)
	assert.Len(t, doc.Cells, 3)
}

func TestNewVirtualEntry(t *testing.T) {
	v := NewVirtualEntry()
	assert.Equal(t, VirtualEntryID, v.ID)
	assert.Equal(t, EntryShape, v.Shape)
	assert.Equal(t, VirtualEntryID, v.Data.Trigger)
	assert.Equal(t, VirtualEntryCode, v.Data.Code)
}

func TestDataOrZero(t *testing.T) {
	var c *Cell
	assert.Equal(t, NodeData{}, c.DataOrZero())
	assert.Equal(t, "x", (&Cell{Data: &NodeData{Label: "x"}}).DataOrZero().Label)
}
