package diagram

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMermaid(t *testing.T) {
	model, err := Build(branchDoc(), "auth flow")
	require.NoError(t, err)

	out := RenderMermaid(model)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "%% auth flow")
	assert.Contains(t, out, `start(("Start"))`)
	assert.Contains(t, out, `check{"Logged in?"}`)
	assert.Contains(t, out, `home["Go home"]`)
	assert.Contains(t, out, "check -->|right| home")
	assert.Contains(t, out, "start --> check")
	assert.Contains(t, out, "class home path")
	assert.NotContains(t, out, "class login")
}

func TestRenderMermaid_VirtualAndSafeIDs(t *testing.T) {
	model := &DiagramModel{
		Nodes: []*Node{
			{ID: "virtual-flow-start", Label: "start", Kind: NodeKindVirtual},
			{ID: "node.1", Label: `say "hi"`, Kind: NodeKindBehavior},
		},
		Edges: []Edge{{From: "virtual-flow-start", To: "node.1"}},
	}
	out := RenderMermaid(model)
	assert.Contains(t, out, "virtual_flow_start --> node_1")
	assert.Contains(t, out, "class virtual_flow_start virtual")
	assert.Contains(t, out, `node_1["say #quot;hi#quot;"]`)
}

func TestRenderASCII(t *testing.T) {
	model, err := Build(branchDoc(), "auth flow")
	require.NoError(t, err)

	out := RenderASCII(model)
	assert.Contains(t, out, "=== auth flow ===")
	assert.Contains(t, out, "* Start")
	assert.Contains(t, out, "(start)")
	assert.Contains(t, out, "on onLoad")
	assert.Contains(t, out, "<branch>")
	assert.Contains(t, out, "│ Show login │")
	assert.Contains(t, out, "check ─[bottom]→ login")
	assert.Equal(t, 2, strings.Count(out, "▼"))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "one", firstLine("one\ntwo"))
	assert.Equal(t, "single", firstLine("single"))
}

func TestRenderImage(t *testing.T) {
	model, err := Build(branchDoc(), "auth flow")
	require.NoError(t, err)

	png, err := RenderImage(context.Background(), model)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
