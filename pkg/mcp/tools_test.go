package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcode/internal/projectconfig"
	"github.com/rendis/flowcode/internal/store"
	"github.com/rendis/flowcode/pkg/schema"
)

const signupGraph = `{"cells":[
  {"id":"start","shape":"flow-start","data":{"label":"Signup","trigger":"signup","configData":{},"code":"export default async function(ctx) {\n  return ctx.getPayload();\n}"}},
  {"id":"fetch","shape":"flow-behavior","data":{"label":"Fetch user","code":"import axios from 'axios';\nexport default async function(ctx) {\n  return axios.get('/u');\n}","dependencies":"{\"axios\":\"^1.6.0\"}"}},
  {"id":"mail","shape":"flow-behavior","data":{"label":"Mail","code":"export default async function(ctx) {}"}},
  {"id":"e1","shape":"edge","source":{"cell":"start"},"target":{"cell":"fetch"}},
  {"id":"e2","shape":"edge","source":{"cell":"fetch"},"target":{"cell":"mail"}}
]}`

// --- Mock Store ---

type mockStore struct {
	store.Store // embed for unimplemented methods

	latest *store.Snapshot
}

func (m *mockStore) LatestSnapshot(_ context.Context, project string) (*store.Snapshot, error) {
	if m.latest == nil || m.latest.Project != project {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "snapshot for project %q not found", project)
	}
	return m.latest, nil
}

// --- Helpers ---

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func graphArg(t *testing.T, src string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(src), &m))
	return m
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

// --- Tests ---

func TestCompileOnlineTool(t *testing.T) {
	s := newTestServer(t, FlowcodeServerDeps{})

	res, err := s.handleCompileOnline(context.Background(), buildRequest("flowcode.compile_online", map[string]any{
		"graph":      graphArg(t, signupGraph),
		"mock_input": map[string]any{"payload": map[string]any{"id": 7}},
	}))
	require.NoError(t, err)
	out := resultJSON(t, res)

	assert.Equal(t, "start", out["start_id"])
	assert.Equal(t, "fetch", out["mock_node_id"])
	assert.Equal(t, []any{"start", "fetch", "mail"}, out["path"])
	assert.Contains(t, out["code"], `const mockInput = {"payload":{"id":7}};`)
	assert.Contains(t, out["code"], "https://jspm.dev/axios")
}

func TestCompileOnlineTool_Selection(t *testing.T) {
	s := newTestServer(t, FlowcodeServerDeps{})

	tests := []struct {
		name string
		args map[string]any
	}{
		{"by ids", map[string]any{"select": []any{"fetch", "mail"}}},
		{"by cel", map[string]any{"where": `cell.shape == "flow-behavior"`}},
		{"by expr", map[string]any{"where": `cell.shape != "flow-start"`, "engine": "expr"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["graph"] = graphArg(t, signupGraph)
			res, err := s.handleCompileOnline(context.Background(), buildRequest("flowcode.compile_online", tt.args))
			require.NoError(t, err)
			out := resultJSON(t, res)

			assert.Equal(t, schema.VirtualEntryID, out["start_id"])
			assert.Equal(t, []any{schema.VirtualEntryID, "fetch", "mail"}, out["path"])
		})
	}
}

func TestCompileOnlineTool_DOT(t *testing.T) {
	s := newTestServer(t, FlowcodeServerDeps{})

	res, err := s.handleCompileOnline(context.Background(), buildRequest("flowcode.compile_online", map[string]any{
		"dot": `digraph { go [kind="flow-start", trigger="run"]; work; go -> work }`,
	}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, "go", out["start_id"])
	assert.Equal(t, "work", out["mock_node_id"])
}

func TestCompileOnlineTool_Errors(t *testing.T) {
	s := newTestServer(t, FlowcodeServerDeps{})

	res, err := s.handleCompileOnline(context.Background(), buildRequest("flowcode.compile_online", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "graph or dot is required")

	res, err = s.handleCompileOnline(context.Background(), buildRequest("flowcode.compile_online", map[string]any{
		"graph": map[string]any{"cells": []any{}},
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), schema.ErrCodeEmptyGraph)

	res, err = s.handleCompileOnline(context.Background(), buildRequest("flowcode.compile_online", map[string]any{
		"graph": graphArg(t, signupGraph),
		"where": "cell.shape ==",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestCompileProjectTool_Preview(t *testing.T) {
	s := newTestServer(t, FlowcodeServerDeps{
		Project: &projectconfig.Config{ProjectName: "signup", OutputPath: "out", Plugins: []string{"@flowcode/plugin-log"}},
	})

	res, err := s.handleCompileProject(context.Background(), buildRequest("flowcode.compile_project", map[string]any{
		"graph": graphArg(t, signupGraph),
	}))
	require.NoError(t, err)
	out := resultJSON(t, res)

	files, ok := out["files"].(map[string]any)
	require.True(t, ok)
	for _, p := range []string{"index.js", "logic.js", "context.js", "dsl.json", "nodeFns/index.js", "nodeFns/fetch.js"} {
		assert.Contains(t, files, p)
	}
	assert.Contains(t, files["index.js"], "import plugin0 from '@flowcode/plugin-log';")
	assert.Equal(t, map[string]any{"axios": "^1.6.0"}, out["dependencies"])
	assert.Equal(t, "start", out["start_id"])
}

func TestCompileProjectTool_Write(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, FlowcodeServerDeps{
		Project: &projectconfig.Config{ProjectName: "signup", OutputPath: "src/logic"},
		Root:    root,
	})

	res, err := s.handleCompileProject(context.Background(), buildRequest("flowcode.compile_project", map[string]any{
		"graph":   graphArg(t, signupGraph),
		"plugins": []any{"./plugins/trace.js"},
		"write":   true,
	}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, filepath.Join(root, "src", "logic"), out["dir"])

	index, err := os.ReadFile(filepath.Join(root, "src", "logic", "index.js"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "import plugin0 from './plugins/trace.js';")

	manifest, err := os.ReadFile(filepath.Join(root, "package.json"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), `"axios": "^1.6.0"`)
	assert.Contains(t, string(manifest), `"eventemitter3"`)
}

func TestLintTool(t *testing.T) {
	s := newTestServer(t, FlowcodeServerDeps{})

	res, err := s.handleLint(context.Background(), buildRequest("flowcode.lint", map[string]any{
		"graph": graphArg(t, signupGraph),
	}))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, res)["valid"])

	broken := graphArg(t, signupGraph)
	cells := broken["cells"].([]any)
	cells[4].(map[string]any)["target"] = map[string]any{"cell": "ghost"}

	res, err = s.handleLint(context.Background(), buildRequest("flowcode.lint", map[string]any{"graph": broken}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, false, out["valid"])
	errs, ok := out["errors"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, errs)
	assert.Equal(t, schema.ErrCodeDanglingEdge, errs[0].(map[string]any)["code"])
}

func TestDiagramTool(t *testing.T) {
	s := newTestServer(t, FlowcodeServerDeps{})
	graph := graphArg(t, signupGraph)

	res, err := s.handleDiagram(context.Background(), buildRequest("flowcode.diagram", map[string]any{
		"graph": graph, "format": "mermaid",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "start --> fetch")

	res, err = s.handleDiagram(context.Background(), buildRequest("flowcode.diagram", map[string]any{
		"graph": graph, "format": "ascii",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Fetch user")

	res, err = s.handleDiagram(context.Background(), buildRequest("flowcode.diagram", map[string]any{
		"graph": graph, "format": "image",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	png, err := base64.StdEncoding.DecodeString(resultText(t, res))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	res, err = s.handleDiagram(context.Background(), buildRequest("flowcode.diagram", map[string]any{
		"graph": graph, "format": "svg",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleDiagram(context.Background(), buildRequest("flowcode.diagram", map[string]any{"graph": graph}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestConnectTool(t *testing.T) {
	ms := &mockStore{}
	s := newTestServer(t, FlowcodeServerDeps{
		Store:   ms,
		Project: &projectconfig.Config{ProjectName: "signup", OutputPath: "out"},
	})

	res, err := s.handleConnect(context.Background(), buildRequest("flowcode.connect", nil))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, "signup", out["projectName"])
	assert.Nil(t, out["dsl"])

	ms.latest = &store.Snapshot{Project: "signup", Document: json.RawMessage(signupGraph)}
	res, err = s.handleConnect(context.Background(), buildRequest("flowcode.connect", nil))
	require.NoError(t, err)
	dsl, ok := resultJSON(t, res)["dsl"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, dsl["cells"], 5)
}

func TestLoadGraph_FallsBackToSnapshot(t *testing.T) {
	ms := &mockStore{latest: &store.Snapshot{Project: "signup", Document: json.RawMessage(signupGraph)}}
	s := newTestServer(t, FlowcodeServerDeps{
		Store:   ms,
		Project: &projectconfig.Config{ProjectName: "signup", OutputPath: "out"},
	})

	res, err := s.handleCompileOnline(context.Background(), buildRequest("flowcode.compile_online", map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, "start", resultJSON(t, res)["start_id"])
}
